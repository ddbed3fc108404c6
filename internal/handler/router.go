package handler

import "github.com/gin-gonic/gin"

// Handlers 对上游 CRUD 层开放的全部接口
type Handlers struct {
	Orders   *OrderHandler
	Refunds  *RefundHandler
	Webhooks *WebhookHandler
}

// Register 挂载到 /api/v1 分组，鉴权和限流由调用方在分组上配置
func (h Handlers) Register(g *gin.RouterGroup) {
	g.POST("/orders", h.Orders.Create)
	g.GET("/orders/:id", h.Orders.Get)
	g.POST("/orders/:id/confirm", h.Orders.Confirm)
	g.POST("/orders/:id/expire", h.Orders.Expire)
	g.GET("/orders/:id/refunds", h.Refunds.ListByOrder)
	g.POST("/tiers/check", h.Orders.TierCheck)

	g.POST("/refunds", h.Refunds.Create)
	g.GET("/refunds/:id", h.Refunds.Get)
	g.POST("/refunds/:id/approve", h.Refunds.Approve)
	g.POST("/refunds/:id/reject", h.Refunds.Reject)
	g.POST("/refunds/:id/process", h.Refunds.Process)

	g.POST("/webhooks/test", h.Webhooks.Test)
}
