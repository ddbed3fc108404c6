package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// WebhookPayload 推送给商户的报文
type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// OrderEventData order.* 事件数据
type OrderEventData struct {
	OrderID        uint64           `json:"orderId,string"`
	Amount         decimal.Decimal  `json:"amount"`
	Chain          string           `json:"chain"`
	Token          string           `json:"token"`
	PaymentAddress string           `json:"paymentAddress"`
	Status         string           `json:"status"`
	FeePercent     *decimal.Decimal `json:"feePercent,omitempty"`
	FeeAmount      *decimal.Decimal `json:"feeAmount,omitempty"`
	TxHash         string           `json:"txHash,omitempty"`
	ExpiresAt      time.Time        `json:"expiresAt"`
}

// RefundEventData refund.* 事件数据
type RefundEventData struct {
	RefundID     uint64          `json:"refundId,string"`
	OrderID      uint64          `json:"orderId,string"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	RefundTxHash string          `json:"refundTxHash,omitempty"`
}

// WebhookLogVO 投递记录展示
type WebhookLogVO struct {
	ID          uint64     `json:"id,string"`
	Event       string     `json:"event"`
	URL         string     `json:"url"`
	HTTPStatus  int        `json:"httpStatus"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"lastError,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	NextRetryAt *time.Time `json:"nextRetryAt,omitempty"`
}

// WebhookTestReq 发送测试 webhook
type WebhookTestReq struct {
	MerchantID uint64 `json:"merchantId,string"`
}

// WebhookQueueMsg 投递队列消息
type WebhookQueueMsg struct {
	WebhookLogID uint64 `json:"webhook_log_id,string"`
}
