package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stablepay-api/internal/chain"
	"stablepay-api/internal/constant"
	"stablepay-api/internal/dto"
	"stablepay-api/internal/idgen"
	"stablepay-api/internal/logger"
	"stablepay-api/internal/middleware"
	mainmodel "stablepay-api/internal/model/main"
	"stablepay-api/internal/repo/memory"
	"stablepay-api/internal/service"
	"stablepay-api/internal/settlement"
	"stablepay-api/internal/webhook"
)

const (
	testSecret   = "upstream-secret"
	testChain    = "base-usdc"
	merchantA    = uint64(1001)
	merchantFree = uint64(1002)
)

func init() { gin.SetMode(gin.TestMode) }

type envelope[T any] struct {
	Code    int    `json:"code"`
	MsgEN   string `json:"msg_en"`
	Data    T      `json:"data"`
	TraceID string `json:"trace_id"`
}

type testAPI struct {
	t      *testing.T
	store  *memory.Store
	router *gin.Engine
	orders *service.OrderService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	now := time.Now().UTC()
	store.PutMerchant(mainmodel.Merchant{
		MerchantID: merchantA, Plan: mainmodel.PlanPro, NetworkMode: mainmodel.NetworkMainnet, BillingCycleStart: now,
	})
	store.PutWallet(mainmodel.MerchantWallet{MerchantID: merchantA, Chain: testChain, Address: "0xaaaa", IsActive: true})
	store.PutMerchant(mainmodel.Merchant{
		MerchantID: merchantFree, Plan: mainmodel.PlanFree, NetworkMode: mainmodel.NetworkMainnet, BillingCycleStart: now,
		MainnetVolumeUsed: decimal.RequireFromString("990"),
	})
	store.PutWallet(mainmodel.MerchantWallet{MerchantID: merchantFree, Chain: testChain, Address: "0xbbbb", IsActive: true})

	table, err := settlement.NewTierTable([]settlement.Tier{{Name: "starter", Threshold: decimal.Zero, Percent: decimal.RequireFromString("0.5")}}, decimal.RequireFromString("0.1"))
	if err != nil {
		t.Fatal(err)
	}
	registry := chain.NewRegistry(chain.Chain{Name: testChain, Network: "mainnet", Token: "USDC", RequiredConfirms: 3})
	ids := idgen.NewSequence(5000)
	dispatcher := webhook.NewDispatcher(store, ids, webhook.NewSender(5*time.Second), webhook.NewLocalQueue(16, 1))

	orders := service.NewOrderService(store, ids, registry, table, dispatcher)
	h := Handlers{
		Orders:   NewOrderHandler(orders, service.NewTierService(store, table)),
		Refunds:  NewRefundHandler(orders, service.NewRefundService(store, ids, dispatcher)),
		Webhooks: NewWebhookHandler(dispatcher),
	}
	r := gin.New()
	r.Use(middleware.Recover(), middleware.TraceAuditWith(func(*logger.AuditEntry) {}))
	h.Register(r.Group("/api/v1", middleware.AuthHMAC(testSecret, time.Minute)))
	return &testAPI{t: t, store: store, router: r, orders: orders}
}

func (a *testAPI) do(method, path, body string, merchant uint64) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	m := ""
	if merchant != 0 {
		m = strconv.FormatUint(merchant, 10)
		req.Header.Set(middleware.HeaderMerchantID, m)
	}
	req.Header.Set(middleware.HeaderTimestamp, ts)
	req.Header.Set(middleware.HeaderSignature, middleware.SignRequest(testSecret, ts, m, []byte(body)))
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func (a *testAPI) createOrder(merchant uint64, amount string) dto.OrderVO {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/orders", `{"merchantId":"`+strconv.FormatUint(merchant, 10)+`","amount":"`+amount+`","chain":"`+testChain+`"}`, 0)
	if w.Code != http.StatusOK {
		a.t.Fatalf("create order: %d %s", w.Code, w.Body.String())
	}
	return decode[dto.OrderVO](a.t, w).Data
}

func TestCreateConfirmAndGetOrder(t *testing.T) {
	api := newTestAPI(t)
	o := api.createOrder(merchantA, "100")
	if o.Status != "PENDING" || o.PaymentAddress != "0xaaaa" {
		t.Fatalf("unexpected order: %+v", o)
	}

	path := "/api/v1/orders/" + strconv.FormatUint(o.OrderID, 10)
	w := api.do(http.MethodPost, path+"/confirm", `{"txHash":"0xfeed"}`, merchantA)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", w.Code, w.Body.String())
	}
	confirmed := decode[dto.OrderVO](t, w).Data
	if confirmed.Status != "CONFIRMED" || confirmed.FeeAmount == nil || !confirmed.FeeAmount.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("unexpected confirmed order: %+v", confirmed)
	}

	w = api.do(http.MethodGet, path, "", 0)
	env := decode[dto.OrderVO](t, w)
	if w.Code != http.StatusOK || env.Data.TxHash != "0xfeed" || env.TraceID == "" {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}
}

func TestConfirmExpiredOrderConflicts(t *testing.T) {
	api := newTestAPI(t)
	o := api.createOrder(merchantA, "10")
	path := "/api/v1/orders/" + strconv.FormatUint(o.OrderID, 10)

	if w := api.do(http.MethodPost, path+"/expire", "", 0); w.Code != http.StatusOK {
		t.Fatalf("expire: %d %s", w.Code, w.Body.String())
	}
	w := api.do(http.MethodPost, path+"/confirm", "", 0)
	if w.Code != http.StatusConflict || decode[any](t, w).Code != constant.CodeOrderStatusInvalid {
		t.Fatalf("confirm expired: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateOrderRejectsFreePlanOverCap(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodPost, "/api/v1/orders", `{"amount":"20","chain":"`+testChain+`"}`, merchantFree)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	env := decode[dto.TierCheckResp](t, w)
	if env.Code != constant.CodeMerchantLimitReached || !env.Data.UpgradeRequired || env.Data.Allowed {
		t.Fatalf("unexpected rejection: %+v", env)
	}

	w = api.do(http.MethodPost, "/api/v1/tiers/check", `{"amount":"5"}`, merchantFree)
	check := decode[dto.TierCheckResp](t, w)
	if w.Code != http.StatusOK || !check.Data.Allowed || !check.Data.FeeAmount.Equal(decimal.RequireFromString("0.025")) {
		t.Fatalf("tier check: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateOrderValidation(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodPost, "/api/v1/orders", `{"merchantId":"1001","amount":"5"}`, 0)
	env := decode[[]map[string]string](t, w)
	if w.Code != http.StatusBadRequest || env.Code != constant.CodeInvalidParams || len(env.Data) != 1 || env.Data[0]["field"] != "Chain" {
		t.Fatalf("validation: %d %s", w.Code, w.Body.String())
	}

	w = api.do(http.MethodPost, "/api/v1/orders", `{"merchantId":"1001","amount":"-1","chain":"`+testChain+`"}`, 0)
	if w.Code != http.StatusBadRequest || decode[any](t, w).Code != constant.CodeOrderAmountInvalid {
		t.Fatalf("negative amount: %d %s", w.Code, w.Body.String())
	}

	w = api.do(http.MethodPost, "/api/v1/orders", `{"merchantId":"1001","amount":"5","chain":"doge"}`, 0)
	if w.Code != http.StatusBadRequest || decode[any](t, w).Code != constant.CodeChainNotSupported {
		t.Fatalf("unknown chain: %d %s", w.Code, w.Body.String())
	}
}

func TestOwnershipEnforced(t *testing.T) {
	api := newTestAPI(t)
	o := api.createOrder(merchantA, "10")
	path := "/api/v1/orders/" + strconv.FormatUint(o.OrderID, 10)

	if w := api.do(http.MethodGet, path, "", merchantFree); w.Code != http.StatusForbidden {
		t.Fatalf("foreign read: %d", w.Code)
	}
	w := api.do(http.MethodPost, "/api/v1/orders", `{"merchantId":"1001","amount":"5","chain":"`+testChain+`"}`, merchantFree)
	if w.Code != http.StatusForbidden {
		t.Fatalf("create for another merchant: %d", w.Code)
	}
	if w := api.do(http.MethodGet, "/api/v1/orders/424242", "", 0); w.Code != http.StatusNotFound {
		t.Fatalf("unknown order: %d", w.Code)
	}
}

func TestRefundFlowReversesFee(t *testing.T) {
	api := newTestAPI(t)
	o := api.createOrder(merchantA, "100")
	orderPath := "/api/v1/orders/" + strconv.FormatUint(o.OrderID, 10)
	if w := api.do(http.MethodPost, orderPath+"/confirm", `{"txHash":"0xpay"}`, 0); w.Code != http.StatusOK {
		t.Fatalf("confirm: %s", w.Body.String())
	}

	w := api.do(http.MethodPost, "/api/v1/refunds", `{"orderId":"`+strconv.FormatUint(o.OrderID, 10)+`","amount":"40","reason":"partial"}`, merchantA)
	if w.Code != http.StatusOK {
		t.Fatalf("create refund: %d %s", w.Code, w.Body.String())
	}
	refund := decode[dto.RefundVO](t, w).Data
	if refund.Status != "APPROVED" {
		t.Fatalf("small refund should be auto approved: %+v", refund)
	}

	refundPath := "/api/v1/refunds/" + strconv.FormatUint(refund.RefundID, 10)
	w = api.do(http.MethodPost, refundPath+"/process", `{"txHash":"0xrefund"}`, merchantA)
	if w.Code != http.StatusOK {
		t.Fatalf("process: %d %s", w.Code, w.Body.String())
	}
	processed := decode[dto.RefundVO](t, w).Data
	if processed.Status != "PROCESSED" || !processed.FeeReversed.Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("unexpected processed refund: %+v", processed)
	}

	w = api.do(http.MethodGet, orderPath+"/refunds", "", merchantA)
	list := decode[[]dto.RefundVO](t, w).Data
	if w.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list refunds: %d %s", w.Code, w.Body.String())
	}

	w = api.do(http.MethodPost, "/api/v1/refunds", `{"orderId":"`+strconv.FormatUint(o.OrderID, 10)+`","amount":"100"}`, merchantA)
	if w.Code != http.StatusConflict {
		t.Fatalf("refund on refunded order: %d %s", w.Code, w.Body.String())
	}
}

func TestWebhookTestDelivers(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	api := newTestAPI(t)
	m, _ := api.store.Merchants().Get(context.Background(), merchantA)
	m.WebhookURL = srv.URL
	m.WebhookSecret = "whsec"
	m.WebhookEnabled = true
	api.store.PutMerchant(*m)

	w := api.do(http.MethodPost, "/api/v1/webhooks/test", "", merchantA)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook test: %d %s", w.Code, w.Body.String())
	}
	l := decode[dto.WebhookLogVO](t, w).Data
	if l.Attempts != 1 || l.DeliveredAt == nil || l.HTTPStatus != http.StatusOK || gotSig == "" {
		t.Fatalf("unexpected log: %+v sig=%q", l, gotSig)
	}

	w = api.do(http.MethodPost, "/api/v1/webhooks/test", "", merchantFree)
	if w.Code != http.StatusBadRequest || decode[any](t, w).Code != constant.CodeWebhookNotConfigured {
		t.Fatalf("unconfigured: %d %s", w.Code, w.Body.String())
	}
}
