package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ordermodel "stablepay-api/internal/model/order"
)

type TransactionDao struct {
	db *gorm.DB
}

func NewTransactionDaoWithDB(db *gorm.DB) *TransactionDao {
	return &TransactionDao{db: db}
}

func (d *TransactionDao) GetByHash(ctx context.Context, txHash string) (*ordermodel.Transaction, error) {
	var t ordermodel.Transaction
	err := d.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Insert 依赖 tx_hash 唯一索引去重，重复写入不报错
func (d *TransactionDao) Insert(ctx context.Context, t *ordermodel.Transaction) (bool, error) {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(t)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (d *TransactionDao) Update(ctx context.Context, t *ordermodel.Transaction) error {
	return d.db.WithContext(ctx).Model(&ordermodel.Transaction{}).
		Where("id = ? AND tx_hash = ?", t.ID, t.TxHash).
		Updates(map[string]interface{}{
			"order_id":      t.OrderID,
			"block_number":  t.BlockNumber,
			"block_time":    t.BlockTime,
			"confirmations": t.Confirmations,
			"status":        t.Status,
			"updated_at":    t.UpdatedAt,
		}).Error
}

func (d *TransactionDao) ListAwaitingConfirmation(ctx context.Context, chain string, limit int) ([]ordermodel.Transaction, error) {
	var out []ordermodel.Transaction
	q := d.db.WithContext(ctx).
		Table("p_transaction AS t").
		Select("t.*").
		Joins("JOIN p_order AS o ON o.order_id = t.order_id").
		Where("t.chain = ? AND t.status <> ? AND o.status = ?", chain, ordermodel.TxFailed, ordermodel.StatusPending).
		Order("t.block_number ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
