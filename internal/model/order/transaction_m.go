package ordermodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction 链上转账记录，tx_hash 全局唯一
type Transaction struct {
	ID            uint64          `gorm:"column:id;primaryKey" json:"id"`
	OrderID       *uint64         `gorm:"column:order_id;index" json:"orderId,omitempty"` // nil 表示未匹配
	TxHash        string          `gorm:"column:tx_hash;type:varchar(128);not null;uniqueIndex" json:"txHash"`
	Chain         string          `gorm:"column:chain;type:varchar(32);not null;index:idx_tx_chain_status" json:"chain"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(24,8);not null" json:"amount"`
	FromAddress   string          `gorm:"column:from_address;type:varchar(128)" json:"fromAddress"`
	ToAddress     string          `gorm:"column:to_address;type:varchar(128)" json:"toAddress"`
	BlockNumber   uint64          `gorm:"column:block_number" json:"blockNumber"`
	BlockTime     *time.Time      `gorm:"column:block_time" json:"blockTime,omitempty"`
	Confirmations int64           `gorm:"column:confirmations;not null;default:0" json:"confirmations"`
	Status        TxStatus        `gorm:"column:status;type:varchar(16);not null;index:idx_tx_chain_status" json:"status"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (Transaction) TableName() string { return "p_transaction" }

// Matched 是否已关联订单
func (t *Transaction) Matched() bool { return t.OrderID != nil && *t.OrderID != 0 }
