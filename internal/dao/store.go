package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	mainmodel "stablepay-api/internal/model/main"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/repo"
)

// Store gorm 版 repo.Store
type Store struct {
	db *gorm.DB
}

var _ repo.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) checkDB() error {
	if s.db == nil {
		return errors.New("database connection is nil")
	}
	return nil
}

func (s *Store) Orders() repo.OrderRepo             { return NewOrderDaoWithDB(s.db) }
func (s *Store) Transactions() repo.TransactionRepo { return NewTransactionDaoWithDB(s.db) }
func (s *Store) Merchants() repo.MerchantRepo       { return NewMerchantDaoWithDB(s.db) }
func (s *Store) Refunds() repo.RefundRepo           { return NewRefundDaoWithDB(s.db) }
func (s *Store) WebhookLogs() repo.WebhookLogRepo   { return NewWebhookLogDaoWithDB(s.db) }
func (s *Store) Cursors() repo.CursorRepo           { return NewCursorDaoWithDB(s.db) }

// Transaction 事务内的仓储共享同一个 *gorm.DB
func (s *Store) Transaction(ctx context.Context, fn func(tx repo.Store) error) error {
	if err := s.checkDB(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&mainmodel.Merchant{},
		&mainmodel.MerchantWallet{},
		&mainmodel.WebhookLog{},
		&ordermodel.Order{},
		&ordermodel.Transaction{},
		&ordermodel.Refund{},
		&ordermodel.ChainScanCursor{},
	)
}
