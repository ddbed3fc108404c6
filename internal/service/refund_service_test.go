package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/event"
	mainmodel "stablepay-api/internal/model/main"
	ordermodel "stablepay-api/internal/model/order"
)

func confirmedOrder(t *testing.T, f *fixture, amount string) *ordermodel.Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec(amount), Chain: testChain})
	if err != nil {
		t.Fatal(err)
	}
	c, err := f.orders.ConfirmOrder(ctx, o.OrderID, ConfirmInput{})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func amountPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// 100 的订单手续费 0.50，退款 40 冲回 0.20
func TestProcessRefundReversesProportionalFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := confirmedOrder(t, f, "100.00")
	if !o.FeeAmount.Equal(dec("0.50")) {
		t.Fatalf("setup fee = %s", o.FeeAmount)
	}

	r, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, MerchantID: testMerchant, Amount: amountPtr("40.00"), Reason: "damaged"})
	if err != nil {
		t.Fatalf("create refund: %v", err)
	}
	if r.Status != ordermodel.RefundApproved {
		t.Fatalf("small refund should auto approve, got %s", r.Status)
	}

	p, err := f.refunds.ProcessRefund(ctx, r.ID, "0xrefund")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !p.FeeReversed.Equal(dec("0.20")) || p.Status != ordermodel.RefundProcessed || p.RefundTxHash != "0xrefund" {
		t.Fatalf("unexpected processed refund: %+v", p)
	}
	if m := f.merchant(t); !m.FeesDue.Equal(dec("0.30")) {
		t.Fatalf("feesDue = %s, want 0.30", m.FeesDue)
	}
	got, _ := f.orders.GetOrder(ctx, o.OrderID)
	if got.Status != ordermodel.StatusRefunded {
		t.Fatalf("order status = %s", got.Status)
	}
	if f.pub.count(event.RefundRequested) != 1 || f.pub.count(event.RefundProcessed) != 1 {
		t.Fatal("refund events not published")
	}

	if _, err := f.refunds.ProcessRefund(ctx, r.ID, "0xrefund"); !errors.Is(err, constant.ErrRefundStatusInvalid) {
		t.Fatalf("process twice: %v", err)
	}
}

func TestRefundTotalsNeverExceedPaidAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := confirmedOrder(t, f, "100")

	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, Amount: amountPtr("60")}); err != nil {
		t.Fatal(err)
	}
	_, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, Amount: amountPtr("40.01")})
	if !errors.Is(err, constant.ErrRefundAmountExceeded) {
		t.Fatalf("over refund: %v", err)
	}
	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID}); !errors.Is(err, constant.ErrRefundAmountExceeded) {
		t.Fatalf("default full refund over remaining: %v", err)
	}
	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, Amount: amountPtr("40")}); err != nil {
		t.Fatalf("exact remainder: %v", err)
	}

	list, err := f.refunds.ListRefunds(ctx, o.OrderID)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %d %v", len(list), err)
	}
}

func TestRefundReviewFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := confirmedOrder(t, f, "500")

	r, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, Amount: amountPtr("300")})
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != ordermodel.RefundPending {
		t.Fatalf("large refund should wait for review, got %s", r.Status)
	}
	if _, err := f.refunds.ProcessRefund(ctx, r.ID, "0x1"); !errors.Is(err, constant.ErrRefundStatusInvalid) {
		t.Fatalf("process pending refund: %v", err)
	}
	if _, err := f.refunds.ApproveRefund(ctx, r.ID, 999); !errors.Is(err, constant.ErrAccessDenied) {
		t.Fatalf("foreign merchant approve: %v", err)
	}
	if _, err := f.refunds.ApproveRefund(ctx, r.ID, 0); !errors.Is(err, constant.ErrAccessDenied) {
		t.Fatalf("platform approve of merchant order: %v", err)
	}

	rejected, err := f.refunds.RejectRefund(ctx, r.ID, testMerchant)
	if err != nil || rejected.Status != ordermodel.RefundRejected {
		t.Fatalf("reject: %+v %v", rejected, err)
	}
	if _, err := f.refunds.ApproveRefund(ctx, r.ID, testMerchant); !errors.Is(err, constant.ErrRefundStatusInvalid) {
		t.Fatalf("approve rejected refund: %v", err)
	}

	// 驳回的退款不占用额度
	r2, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID})
	if err != nil {
		t.Fatalf("full refund after rejection: %v", err)
	}
	approved, err := f.refunds.ApproveRefund(ctx, r2.ID, testMerchant)
	if err != nil || approved.Status != ordermodel.RefundApproved {
		t.Fatalf("approve: %+v %v", approved, err)
	}
	if _, err := f.refunds.ProcessRefund(ctx, r2.ID, "0xfull"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if m := f.merchant(t); !m.FeesDue.IsZero() {
		t.Fatalf("full refund should reverse the whole fee, feesDue=%s", m.FeesDue)
	}
}

func TestRefundPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("10"), Chain: testChain})
	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: pending.OrderID}); !errors.Is(err, constant.ErrRefundOrderInvalid) {
		t.Fatalf("refund pending order: %v", err)
	}
	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: 12345}); !errors.Is(err, constant.ErrOrderNotFound) {
		t.Fatalf("refund unknown order: %v", err)
	}

	o := confirmedOrder(t, f, "10")
	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, MerchantID: 77}); !errors.Is(err, constant.ErrAccessDenied) {
		t.Fatalf("foreign merchant refund: %v", err)
	}
	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, Amount: amountPtr("0")}); !errors.Is(err, constant.ErrOrderAmountInvalid) {
		t.Fatalf("zero refund: %v", err)
	}
	if _, err := f.refunds.ProcessRefund(ctx, 1, ""); !errors.Is(err, constant.ErrInvalidParams) {
		t.Fatalf("missing tx hash: %v", err)
	}
	if _, err := f.refunds.GetRefund(ctx, 31337); !errors.Is(err, constant.ErrRefundNotFound) {
		t.Fatalf("unknown refund: %v", err)
	}

	f.clock.Advance(91 * 24 * time.Hour)
	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID}); !errors.Is(err, constant.ErrRefundWindowClosed) {
		t.Fatalf("refund after window: %v", err)
	}
}

func TestPartialRefundsAfterOrderRefundedFloorFeesDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := confirmedOrder(t, f, "100")

	r1, _ := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, Amount: amountPtr("40")})
	r2, _ := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, Amount: amountPtr("60")})

	// 手续费已部分结清
	f.setMerchant(t, func(m *mainmodel.Merchant) { m.FeesDue = dec("0.25") })

	if _, err := f.refunds.ProcessRefund(ctx, r1.ID, "0xr1"); err != nil {
		t.Fatal(err)
	}
	p2, err := f.refunds.ProcessRefund(ctx, r2.ID, "0xr2")
	if err != nil {
		t.Fatalf("second refund on refunded order: %v", err)
	}
	if !p2.FeeReversed.Equal(dec("0.3")) {
		t.Fatalf("second reversal = %s", p2.FeeReversed)
	}
	if m := f.merchant(t); !m.FeesDue.IsZero() {
		t.Fatalf("feesDue must floor at zero, got %s", m.FeesDue)
	}
	if _, err := f.refunds.CreateRefund(ctx, CreateRefundInput{OrderID: o.OrderID, Amount: amountPtr("1")}); !errors.Is(err, constant.ErrRefundOrderInvalid) {
		t.Fatalf("refund on refunded order: %v", err)
	}
}
