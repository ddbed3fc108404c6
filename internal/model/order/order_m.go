package ordermodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 支付订单，amount 创建后不可修改，fee 字段只在确认时写入一次
type Order struct {
	OrderID        uint64           `gorm:"column:order_id;primaryKey" json:"orderId"`
	MerchantID     *uint64          `gorm:"column:m_id;index:idx_order_merchant" json:"merchantId,omitempty"`
	Amount         decimal.Decimal  `gorm:"column:amount;type:decimal(24,8);not null" json:"amount"`
	Chain          string           `gorm:"column:chain;type:varchar(32);not null;index:idx_order_match,priority:2" json:"chain"`
	Token          string           `gorm:"column:token;type:varchar(16);not null" json:"token"`
	Network        string           `gorm:"column:network;type:varchar(16);not null" json:"network"`
	PaymentAddress string           `gorm:"column:payment_address;type:varchar(128);not null;index:idx_order_match,priority:3" json:"paymentAddress"`
	Status         Status           `gorm:"column:status;type:varchar(16);not null;index:idx_order_match,priority:1;index:idx_order_expire,priority:1" json:"status"`
	FeePercent     *decimal.Decimal `gorm:"column:fee_percent;type:decimal(8,4)" json:"feePercent,omitempty"`
	FeeAmount      *decimal.Decimal `gorm:"column:fee_amount;type:decimal(24,8)" json:"feeAmount,omitempty"`
	TxHash         string           `gorm:"column:tx_hash;type:varchar(128)" json:"txHash,omitempty"`
	ExpiresAt      time.Time        `gorm:"column:expires_at;not null;index:idx_order_expire,priority:2" json:"expiresAt"`
	PaidAt         *time.Time       `gorm:"column:paid_at" json:"paidAt,omitempty"`
	ConfirmedAt    *time.Time       `gorm:"column:confirmed_at" json:"confirmedAt,omitempty"`
	CreatedAt      time.Time        `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time        `gorm:"column:updated_at" json:"updatedAt"`
}

func (Order) TableName() string { return "p_order" }

// HasMerchant 是否为商户订单
func (o *Order) HasMerchant() bool { return o.MerchantID != nil && *o.MerchantID != 0 }

// Expired 是否已过期（只看时间，不看状态）
func (o *Order) Expired(now time.Time) bool { return !now.Before(o.ExpiresAt) }

// StatusChange 订单状态迁移请求，所有状态修改都经由 OrderRepo.Transition
type StatusChange struct {
	From       Status
	To         Status
	At         time.Time
	TxHash     string
	FeePercent *decimal.Decimal
	FeeAmount  *decimal.Decimal
}
