package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateRefundReq amount 为空时全额退款
type CreateRefundReq struct {
	OrderID uint64           `json:"orderId,string" binding:"required"`
	Amount  *decimal.Decimal `json:"amount"`
	Reason  string           `json:"reason" binding:"max=255"`
}

// ReviewRefundReq 审批人，未传且请求头也没有商户时按平台操作员处理
type ReviewRefundReq struct {
	MerchantID uint64 `json:"merchantId,string"`
}

// ProcessRefundReq 链上退款完成后回填哈希
type ProcessRefundReq struct {
	TxHash string `json:"txHash" binding:"required,max=128"`
}

type RefundVO struct {
	RefundID     uint64          `json:"refundId,string"`
	OrderID      uint64          `json:"orderId,string"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	Status       string          `json:"status"`
	RefundTxHash string          `json:"refundTxHash,omitempty"`
	FeeReversed  decimal.Decimal `json:"feeReversed"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}
