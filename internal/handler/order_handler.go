package handler

import (
	"github.com/gin-gonic/gin"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/dto"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
	tiers  *service.TierService
}

func NewOrderHandler(orders *service.OrderService, tiers *service.TierService) *OrderHandler {
	return &OrderHandler{orders: orders, tiers: tiers}
}

// Create 商户订单先做档位与额度检查再创建
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderReq
	if !bindJSON(c, &req, false) {
		return
	}
	merchantID, err := actorFor(c, req.MerchantID)
	if err != nil {
		fail(c, err)
		return
	}

	if merchantID != 0 {
		res, err := h.tiers.CheckTierLimits(c.Request.Context(), merchantID, req.Amount)
		if err != nil {
			fail(c, err)
			return
		}
		if !res.Allowed {
			if res.Suspended {
				fail(c, constant.ErrMerchantSuspended.WithData(toTierCheckResp(res)))
			} else {
				fail(c, constant.ErrMerchantLimitReached.WithData(toTierCheckResp(res)))
			}
			return
		}
	}

	o, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		MerchantID:    merchantID,
		Amount:        req.Amount,
		Chain:         req.Chain,
		ExpiryMinutes: req.ExpiryMinutes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toOrderVO(o))
}

// Confirm 显式确认，body 可为空
func (h *OrderHandler) Confirm(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req dto.ConfirmOrderReq
	if !bindJSON(c, &req, true) {
		return
	}
	if _, found := h.owned(c, id); !found {
		return
	}
	o, err := h.orders.ConfirmOrder(c.Request.Context(), id, service.ConfirmInput{
		TxHash:        req.TxHash,
		BlockNumber:   req.BlockNumber,
		Confirmations: req.Confirmations,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toOrderVO(o))
}

func (h *OrderHandler) Expire(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if _, found := h.owned(c, id); !found {
		return
	}
	o, err := h.orders.ExpireOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toOrderVO(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	o, found := h.owned(c, id)
	if !found {
		return
	}
	ok(c, toOrderVO(o))
}

// TierCheck 下单前预览费率与免费额度
func (h *OrderHandler) TierCheck(c *gin.Context) {
	var req dto.TierCheckReq
	if !bindJSON(c, &req, false) {
		return
	}
	merchantID, err := actorFor(c, req.MerchantID)
	if err != nil {
		fail(c, err)
		return
	}
	if merchantID == 0 {
		fail(c, constant.ErrInvalidParams)
		return
	}
	res, err := h.tiers.CheckTierLimits(c.Request.Context(), merchantID, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toTierCheckResp(res))
}

// owned 订单存在且调用方有权访问；否则已写响应
func (h *OrderHandler) owned(c *gin.Context, id uint64) (*ordermodel.Order, bool) {
	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if !ownedBy(c, o.MerchantID) {
		fail(c, constant.ErrAccessDenied)
		return nil, false
	}
	return o, true
}
