package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	mainmodel "stablepay-api/internal/model/main"
)

type WebhookLogDao struct {
	db *gorm.DB
}

func NewWebhookLogDaoWithDB(db *gorm.DB) *WebhookLogDao {
	return &WebhookLogDao{db: db}
}

func (d *WebhookLogDao) Create(ctx context.Context, l *mainmodel.WebhookLog) error {
	return d.db.WithContext(ctx).Create(l).Error
}

func (d *WebhookLogDao) Get(ctx context.Context, id uint64) (*mainmodel.WebhookLog, error) {
	var l mainmodel.WebhookLog
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// RecordAttempt 已投递的记录不再被覆盖
func (d *WebhookLogDao) RecordAttempt(ctx context.Context, l *mainmodel.WebhookLog) error {
	return d.db.WithContext(ctx).Model(&mainmodel.WebhookLog{}).
		Where("id = ? AND delivered_at IS NULL", l.ID).
		Updates(map[string]interface{}{
			"http_status":   l.HTTPStatus,
			"response":      l.Response,
			"last_error":    l.LastError,
			"attempts":      l.Attempts,
			"delivered_at":  l.DeliveredAt,
			"next_retry_at": l.NextRetryAt,
			"updated_at":    l.UpdatedAt,
		}).Error
}

func (d *WebhookLogDao) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]mainmodel.WebhookLog, error) {
	var out []mainmodel.WebhookLog
	q := d.db.WithContext(ctx).
		Where("delivered_at IS NULL AND next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Where("attempts <= ?", maxAttempts).
		Order("next_retry_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *WebhookLogDao) Claim(ctx context.Context, id uint64, prev time.Time, lease time.Time) (bool, error) {
	res := d.db.WithContext(ctx).Model(&mainmodel.WebhookLog{}).
		Where("id = ? AND delivered_at IS NULL AND next_retry_at = ?", id, prev).
		Update("next_retry_at", lease)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
