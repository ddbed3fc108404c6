package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ordermodel "stablepay-api/internal/model/order"
)

type CursorDao struct {
	db *gorm.DB
}

func NewCursorDaoWithDB(db *gorm.DB) *CursorDao {
	return &CursorDao{db: db}
}

func (d *CursorDao) Get(ctx context.Context, chain string) (*ordermodel.ChainScanCursor, error) {
	var c ordermodel.ChainScanCursor
	err := d.db.WithContext(ctx).Where("chain = ?", chain).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *CursorDao) Init(ctx context.Context, chain string, block uint64) (*ordermodel.ChainScanCursor, error) {
	c := ordermodel.ChainScanCursor{Chain: chain, LastScannedBlock: block, UpdatedAt: time.Now()}
	if err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&c).Error; err != nil {
		return nil, err
	}
	return d.Get(ctx, chain)
}

// Advance 条件更新保证游标单调不减
func (d *CursorDao) Advance(ctx context.Context, chain string, block uint64) error {
	res := d.db.WithContext(ctx).Model(&ordermodel.ChainScanCursor{}).
		Where("chain = ? AND last_scanned_block < ?", chain, block).
		Updates(map[string]interface{}{"last_scanned_block": block, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		_, err := d.Init(ctx, chain, block)
		return err
	}
	return nil
}
