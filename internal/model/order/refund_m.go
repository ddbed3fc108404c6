package ordermodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Refund 退款单
type Refund struct {
	ID           uint64          `gorm:"column:id;primaryKey" json:"id"`
	OrderID      uint64          `gorm:"column:order_id;not null;index" json:"orderId"`
	MerchantID   *uint64         `gorm:"column:m_id;index" json:"merchantId,omitempty"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(24,8);not null" json:"amount"`
	Reason       string          `gorm:"column:reason;type:varchar(255)" json:"reason"`
	Status       RefundStatus    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	RefundTxHash string          `gorm:"column:refund_tx_hash;type:varchar(128)" json:"refundTxHash,omitempty"`
	FeeReversed  decimal.Decimal `gorm:"column:fee_reversed;type:decimal(24,8);not null;default:0" json:"feeReversed"`
	ReviewedBy   string          `gorm:"column:reviewed_by;type:varchar(64)" json:"reviewedBy,omitempty"`
	ProcessedAt  *time.Time      `gorm:"column:processed_at" json:"processedAt,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (Refund) TableName() string { return "p_refund" }

// Counts 非 REJECTED 的退款占用可退金额
func (r *Refund) Counts() bool { return r.Status != RefundRejected }
