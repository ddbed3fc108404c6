package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	mainmodel "stablepay-api/internal/model/main"
)

type MerchantDao struct {
	db *gorm.DB
}

func NewMerchantDaoWithDB(db *gorm.DB) *MerchantDao {
	return &MerchantDao{db: db}
}

func (d *MerchantDao) Get(ctx context.Context, id uint64) (*mainmodel.Merchant, error) {
	var m mainmodel.Merchant
	err := d.db.WithContext(ctx).Where("m_id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetForUpdate 锁住商户行，同一商户的确认/退款在此串行
func (d *MerchantDao) GetForUpdate(ctx context.Context, id uint64) (*mainmodel.Merchant, error) {
	var m mainmodel.Merchant
	err := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("m_id = ?", id).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *MerchantDao) SaveCounters(ctx context.Context, m *mainmodel.Merchant) error {
	return d.db.WithContext(ctx).Model(&mainmodel.Merchant{}).
		Where("m_id = ?", m.MerchantID).
		Updates(map[string]interface{}{
			"fees_due":             m.FeesDue,
			"monthly_volume_used":  m.MonthlyVolumeUsed,
			"monthly_transactions": m.MonthlyTransactions,
			"mainnet_volume_used":  m.MainnetVolumeUsed,
			"mainnet_transactions": m.MainnetTransactions,
			"testnet_volume_used":  m.TestnetVolumeUsed,
			"testnet_transactions": m.TestnetTransactions,
			"billing_cycle_start":  m.BillingCycleStart,
		}).Error
}

func (d *MerchantDao) ActiveWallet(ctx context.Context, merchantID uint64, chain string) (*mainmodel.MerchantWallet, error) {
	var w mainmodel.MerchantWallet
	err := d.db.WithContext(ctx).
		Where("m_id = ? AND chain = ? AND is_active = ?", merchantID, chain, true).
		Order("id ASC").
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (d *MerchantDao) WatchedAddresses(ctx context.Context, chain string) ([]string, error) {
	var out []string
	err := d.db.WithContext(ctx).Model(&mainmodel.MerchantWallet{}).
		Where("chain = ? AND is_active = ?", chain, true).
		Distinct().
		Order("address").
		Pluck("address", &out).Error
	return out, err
}
