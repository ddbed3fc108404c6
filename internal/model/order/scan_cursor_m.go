package ordermodel

import "time"

// ChainScanCursor 每条链已完整处理的最高区块
type ChainScanCursor struct {
	Chain            string    `gorm:"column:chain;type:varchar(32);primaryKey" json:"chain"`
	LastScannedBlock uint64    `gorm:"column:last_scanned_block;not null" json:"lastScannedBlock"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (ChainScanCursor) TableName() string { return "p_chain_scan_cursor" }
