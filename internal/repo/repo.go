package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	mainmodel "stablepay-api/internal/model/main"
	ordermodel "stablepay-api/internal/model/order"
)

// 约定：Get 类方法在记录不存在时返回 (nil, nil)

// OrderRepo 订单仓储，状态只能通过 Transition 修改
type OrderRepo interface {
	Create(ctx context.Context, o *ordermodel.Order) error
	Get(ctx context.Context, id uint64) (*ordermodel.Order, error)
	GetForUpdate(ctx context.Context, id uint64) (*ordermodel.Order, error)
	// Transition 校验迁移表并以 from 状态为条件更新，状态已变化时返回 ErrOrderStatusInvalid
	Transition(ctx context.Context, id uint64, ch ordermodel.StatusChange) error
	// FindPendingMatch 按创建时间取第一笔可匹配的 PENDING 订单，已关联有效交易的订单除外
	FindPendingMatch(ctx context.Context, q MatchQuery) (*ordermodel.Order, error)
	// ListExpired 超时的 PENDING 订单，已关联有效交易的订单等待确认，不在其中
	ListExpired(ctx context.Context, now time.Time, limit int) ([]ordermodel.Order, error)
}

// MatchQuery 链上转账匹配条件
type MatchQuery struct {
	Chain   string
	Address string
	Min     decimal.Decimal
	Max     decimal.Decimal
	Now     time.Time
}

// TransactionRepo 链上交易仓储
type TransactionRepo interface {
	GetByHash(ctx context.Context, txHash string) (*ordermodel.Transaction, error)
	// Insert 遇到 tx_hash 冲突时不写入并返回 false
	Insert(ctx context.Context, t *ordermodel.Transaction) (bool, error)
	Update(ctx context.Context, t *ordermodel.Transaction) error
	// ListAwaitingConfirmation 未失败且订单仍是 PENDING 的已匹配交易
	ListAwaitingConfirmation(ctx context.Context, chain string, limit int) ([]ordermodel.Transaction, error)
}

// MerchantRepo 商户费用与交易量仓储
type MerchantRepo interface {
	Get(ctx context.Context, id uint64) (*mainmodel.Merchant, error)
	GetForUpdate(ctx context.Context, id uint64) (*mainmodel.Merchant, error)
	// SaveCounters 写回费用、交易量计数和账期起点
	SaveCounters(ctx context.Context, m *mainmodel.Merchant) error
	ActiveWallet(ctx context.Context, merchantID uint64, chain string) (*mainmodel.MerchantWallet, error)
	WatchedAddresses(ctx context.Context, chain string) ([]string, error)
}

// RefundRepo 退款仓储
type RefundRepo interface {
	Create(ctx context.Context, r *ordermodel.Refund) error
	Get(ctx context.Context, id uint64) (*ordermodel.Refund, error)
	GetForUpdate(ctx context.Context, id uint64) (*ordermodel.Refund, error)
	ListByOrder(ctx context.Context, orderID uint64) ([]ordermodel.Refund, error)
	// UpdateStatus 以 from 状态为条件更新，状态已变化时返回 ErrRefundStatusInvalid
	UpdateStatus(ctx context.Context, r *ordermodel.Refund, from ordermodel.RefundStatus) error
}

// WebhookLogRepo webhook 投递记录仓储
type WebhookLogRepo interface {
	Create(ctx context.Context, l *mainmodel.WebhookLog) error
	Get(ctx context.Context, id uint64) (*mainmodel.WebhookLog, error)
	// RecordAttempt 只写投递状态字段
	RecordAttempt(ctx context.Context, l *mainmodel.WebhookLog) error
	ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]mainmodel.WebhookLog, error)
	// Claim 把 next_retry_at 从 prev 推迟到 lease，返回是否抢到
	Claim(ctx context.Context, id uint64, prev time.Time, lease time.Time) (bool, error)
}

// CursorRepo 扫块游标仓储
type CursorRepo interface {
	Get(ctx context.Context, chain string) (*ordermodel.ChainScanCursor, error)
	// Init 不存在时创建，已存在则返回现有游标
	Init(ctx context.Context, chain string, block uint64) (*ordermodel.ChainScanCursor, error)
	// Advance 只前进不后退
	Advance(ctx context.Context, chain string, block uint64) error
}

// Store 聚合各实体仓储并提供事务
type Store interface {
	Orders() OrderRepo
	Transactions() TransactionRepo
	Merchants() MerchantRepo
	Refunds() RefundRepo
	WebhookLogs() WebhookLogRepo
	Cursors() CursorRepo
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
