package mainmodel

import "time"

// MerchantWallet 商户在某条链上的收款地址
type MerchantWallet struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MerchantID uint64    `gorm:"column:m_id;not null;index:idx_wallet_merchant_chain" json:"merchantId"`
	Chain      string    `gorm:"column:chain;type:varchar(32);not null;index:idx_wallet_merchant_chain;index:idx_wallet_chain" json:"chain"`
	Address    string    `gorm:"column:address;type:varchar(128);not null" json:"address"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (MerchantWallet) TableName() string { return "w_merchant_wallet" }
