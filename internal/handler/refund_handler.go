package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/dto"
	"stablepay-api/internal/middleware"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/service"
)

type reviewFunc func(ctx context.Context, refundID, actor uint64) (*ordermodel.Refund, error)

type RefundHandler struct {
	orders  *service.OrderService
	refunds *service.RefundService
}

func NewRefundHandler(orders *service.OrderService, refunds *service.RefundService) *RefundHandler {
	return &RefundHandler{orders: orders, refunds: refunds}
}

// Create 请求头带商户时只能为自己的订单申请退款
func (h *RefundHandler) Create(c *gin.Context) {
	var req dto.CreateRefundReq
	if !bindJSON(c, &req, false) {
		return
	}
	r, err := h.refunds.CreateRefund(c.Request.Context(), service.CreateRefundInput{
		OrderID:    req.OrderID,
		MerchantID: middleware.MerchantID(c),
		Amount:     req.Amount,
		Reason:     req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toRefundVO(r))
}

func (h *RefundHandler) Approve(c *gin.Context) {
	h.review(c, h.refunds.ApproveRefund)
}

func (h *RefundHandler) Reject(c *gin.Context) {
	h.review(c, h.refunds.RejectRefund)
}

func (h *RefundHandler) review(c *gin.Context, do reviewFunc) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req dto.ReviewRefundReq
	if !bindJSON(c, &req, true) {
		return
	}
	actor, err := actorFor(c, req.MerchantID)
	if err != nil {
		fail(c, err)
		return
	}
	r, err := do(c.Request.Context(), id, actor)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toRefundVO(r))
}

// Process 链上退款已打出，回填哈希并冲回手续费
func (h *RefundHandler) Process(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req dto.ProcessRefundReq
	if !bindJSON(c, &req, false) {
		return
	}
	if _, found := h.owned(c, id); !found {
		return
	}
	r, err := h.refunds.ProcessRefund(c.Request.Context(), id, req.TxHash)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, toRefundVO(r))
}

func (h *RefundHandler) Get(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	r, found := h.owned(c, id)
	if !found {
		return
	}
	ok(c, toRefundVO(r))
}

// ListByOrder 订单下全部退款单
func (h *RefundHandler) ListByOrder(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if !ownedBy(c, o.MerchantID) {
		fail(c, constant.ErrAccessDenied)
		return
	}
	list, err := h.refunds.ListRefunds(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]dto.RefundVO, 0, len(list))
	for i := range list {
		out = append(out, toRefundVO(&list[i]))
	}
	ok(c, out)
}

func (h *RefundHandler) owned(c *gin.Context, id uint64) (*ordermodel.Refund, bool) {
	r, err := h.refunds.GetRefund(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if !ownedBy(c, r.MerchantID) {
		fail(c, constant.ErrAccessDenied)
		return nil, false
	}
	return r, true
}
