package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderReq 创建订单，merchantId 为空表示平台收款
type CreateOrderReq struct {
	MerchantID    uint64          `json:"merchantId,string"`
	Amount        decimal.Decimal `json:"amount"`
	Chain         string          `json:"chain" binding:"required,max=32"`
	ExpiryMinutes int             `json:"expiryMinutes" binding:"omitempty,min=1,max=1440"`
}

// ConfirmOrderReq 显式确认，链上信息可选
type ConfirmOrderReq struct {
	TxHash        string `json:"txHash" binding:"omitempty,max=128"`
	BlockNumber   uint64 `json:"blockNumber"`
	Confirmations int64  `json:"confirmations" binding:"omitempty,min=0"`
}

// OrderVO 订单展示
type OrderVO struct {
	OrderID        uint64           `json:"orderId,string"`
	MerchantID     *uint64          `json:"merchantId,omitempty,string"`
	Amount         decimal.Decimal  `json:"amount"`
	Chain          string           `json:"chain"`
	Token          string           `json:"token"`
	PaymentAddress string           `json:"paymentAddress"`
	Status         string           `json:"status"`
	FeePercent     *decimal.Decimal `json:"feePercent,omitempty"`
	FeeAmount      *decimal.Decimal `json:"feeAmount,omitempty"`
	TxHash         string           `json:"txHash,omitempty"`
	ExpiresAt      time.Time        `json:"expiresAt"`
	PaidAt         *time.Time       `json:"paidAt,omitempty"`
	ConfirmedAt    *time.Time       `json:"confirmedAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// TierCheckReq 下单前预检
type TierCheckReq struct {
	MerchantID uint64          `json:"merchantId,string"`
	Amount     decimal.Decimal `json:"amount"`
}

// TierCheckResp 费率档位与免费额度检查结果
type TierCheckResp struct {
	Allowed         bool            `json:"allowed"`
	Reason          string          `json:"reason,omitempty"`
	Suspended       bool            `json:"suspended"`
	UpgradeRequired bool            `json:"upgradeRequired"`
	FeePercent      decimal.Decimal `json:"feePercent"`
	FeeAmount       decimal.Decimal `json:"feeAmount"`
	VolumeTier      string          `json:"volumeTier"`
}
