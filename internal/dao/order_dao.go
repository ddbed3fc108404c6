package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stablepay-api/internal/constant"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/repo"
)

type OrderDao struct {
	db *gorm.DB
}

func NewOrderDaoWithDB(db *gorm.DB) *OrderDao {
	return &OrderDao{db: db}
}

func (d *OrderDao) Create(ctx context.Context, o *ordermodel.Order) error {
	return d.db.WithContext(ctx).Create(o).Error
}

func (d *OrderDao) Get(ctx context.Context, id uint64) (*ordermodel.Order, error) {
	var o ordermodel.Order
	err := d.db.WithContext(ctx).Where("order_id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdate SELECT ... FOR UPDATE，需在事务内调用
func (d *OrderDao) GetForUpdate(ctx context.Context, id uint64) (*ordermodel.Order, error) {
	var o ordermodel.Order
	err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", id).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Transition 以当前状态为条件更新，RowsAffected 为 0 说明状态已被其他流程修改
func (d *OrderDao) Transition(ctx context.Context, id uint64, ch ordermodel.StatusChange) error {
	if !ordermodel.CanTransition(ch.From, ch.To) {
		return constant.ErrOrderStatusInvalid
	}
	updates := map[string]interface{}{
		"status":     ch.To,
		"updated_at": ch.At,
	}
	if ch.TxHash != "" {
		updates["tx_hash"] = ch.TxHash
	}
	if ch.FeePercent != nil {
		updates["fee_percent"] = *ch.FeePercent
	}
	if ch.FeeAmount != nil {
		updates["fee_amount"] = *ch.FeeAmount
	}
	switch ch.To {
	case ordermodel.StatusPaid:
		updates["paid_at"] = ch.At
	case ordermodel.StatusConfirmed:
		updates["confirmed_at"] = ch.At
	}

	res := d.db.WithContext(ctx).Model(&ordermodel.Order{}).
		Where("order_id = ? AND status = ?", id, ch.From).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		exist, err := d.Get(ctx, id)
		if err != nil {
			return err
		}
		if exist == nil {
			return constant.ErrOrderNotFound
		}
		return constant.ErrOrderStatusInvalid
	}
	return nil
}

func (d *OrderDao) FindPendingMatch(ctx context.Context, q repo.MatchQuery) (*ordermodel.Order, error) {
	var o ordermodel.Order
	err := d.db.WithContext(ctx).
		Where("status = ? AND chain = ? AND payment_address = ?", ordermodel.StatusPending, q.Chain, q.Address).
		Where("amount BETWEEN ? AND ?", q.Min, q.Max).
		Where("expires_at > ?", q.Now).
		Where("NOT EXISTS (SELECT 1 FROM p_transaction t WHERE t.order_id = p_order.order_id AND t.status <> ?)", ordermodel.TxFailed).
		Order("created_at ASC, order_id ASC").
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (d *OrderDao) ListExpired(ctx context.Context, now time.Time, limit int) ([]ordermodel.Order, error) {
	var out []ordermodel.Order
	q := d.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", ordermodel.StatusPending, now).
		Where("NOT EXISTS (SELECT 1 FROM p_transaction t WHERE t.order_id = p_order.order_id AND t.status <> ?)", ordermodel.TxFailed).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
