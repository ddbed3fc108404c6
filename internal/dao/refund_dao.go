package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stablepay-api/internal/constant"
	ordermodel "stablepay-api/internal/model/order"
)

type RefundDao struct {
	db *gorm.DB
}

func NewRefundDaoWithDB(db *gorm.DB) *RefundDao {
	return &RefundDao{db: db}
}

func (d *RefundDao) Create(ctx context.Context, r *ordermodel.Refund) error {
	return d.db.WithContext(ctx).Create(r).Error
}

func (d *RefundDao) Get(ctx context.Context, id uint64) (*ordermodel.Refund, error) {
	var r ordermodel.Refund
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *RefundDao) GetForUpdate(ctx context.Context, id uint64) (*ordermodel.Refund, error) {
	var r ordermodel.Refund
	err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *RefundDao) ListByOrder(ctx context.Context, orderID uint64) ([]ordermodel.Refund, error) {
	var out []ordermodel.Refund
	err := d.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (d *RefundDao) UpdateStatus(ctx context.Context, r *ordermodel.Refund, from ordermodel.RefundStatus) error {
	res := d.db.WithContext(ctx).Model(&ordermodel.Refund{}).
		Where("id = ? AND status = ?", r.ID, from).
		Updates(map[string]interface{}{
			"status":         r.Status,
			"refund_tx_hash": r.RefundTxHash,
			"fee_reversed":   r.FeeReversed,
			"reviewed_by":    r.ReviewedBy,
			"processed_at":   r.ProcessedAt,
			"updated_at":     r.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return constant.ErrRefundStatusInvalid
	}
	return nil
}
