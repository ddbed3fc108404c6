package handler

import (
	"github.com/gin-gonic/gin"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/dto"
	"stablepay-api/internal/webhook"
)

type WebhookHandler struct {
	dispatcher *webhook.Dispatcher
}

func NewWebhookHandler(d *webhook.Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: d}
}

// Test 同步发送一次 webhook.test，返回投递结果
func (h *WebhookHandler) Test(c *gin.Context) {
	var req dto.WebhookTestReq
	if !bindJSON(c, &req, true) {
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
	l, err := h.dispatcher.SendTest(c.Request.Context(), merchantID)
	if err != nil {
		fail(c, err)
		return
	}
	if l == nil {
		fail(c, constant.ErrWebhookLogNotFound)
		return
	}
	ok(c, toWebhookLogVO(l))
}
