package memory

import (
	"context"
	"sync"

	mainmodel "stablepay-api/internal/model/main"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/repo"
)

type state struct {
	orders    map[uint64]ordermodel.Order
	txs       map[uint64]ordermodel.Transaction
	txByHash  map[string]uint64
	merchants map[uint64]mainmodel.Merchant
	wallets   map[uint64]mainmodel.MerchantWallet
	refunds   map[uint64]ordermodel.Refund
	webhooks  map[uint64]mainmodel.WebhookLog
	cursors   map[string]ordermodel.ChainScanCursor
	walletSeq uint64
	// 每个键最后一次写入的序号，回滚时用来识别事务外的覆盖写
	vers map[string]uint64
	seq  uint64
}

func newState() *state {
	return &state{
		orders:    make(map[uint64]ordermodel.Order),
		txs:       make(map[uint64]ordermodel.Transaction),
		txByHash:  make(map[string]uint64),
		merchants: make(map[uint64]mainmodel.Merchant),
		wallets:   make(map[uint64]mainmodel.MerchantWallet),
		refunds:   make(map[uint64]ordermodel.Refund),
		webhooks:  make(map[uint64]mainmodel.WebhookLog),
		cursors:   make(map[string]ordermodel.ChainScanCursor),
		vers:      make(map[string]uint64),
	}
}

// Store 内存版 repo.Store，事务串行执行，失败时按 journal 逐键回滚
type Store struct {
	mu      *sync.Mutex
	txMu    *sync.Mutex
	st      *state
	journal *journal
}

var _ repo.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, txMu: &sync.Mutex{}, st: newState()}
}

func (s *Store) state() *state { return s.st }

func (s *Store) Orders() repo.OrderRepo             { return &orderRepo{s} }
func (s *Store) Transactions() repo.TransactionRepo { return &txRepo{s} }
func (s *Store) Merchants() repo.MerchantRepo       { return &merchantRepo{s} }
func (s *Store) Refunds() repo.RefundRepo           { return &refundRepo{s} }
func (s *Store) WebhookLogs() repo.WebhookLogRepo   { return &webhookRepo{s} }
func (s *Store) Cursors() repo.CursorRepo           { return &cursorRepo{s} }

// Transaction 只回滚本事务写过的键，事务外的并发写入不受影响
func (s *Store) Transaction(ctx context.Context, fn func(tx repo.Store) error) error {
	if s.journal != nil {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	tx := &Store{mu: s.mu, txMu: s.txMu, st: s.st, journal: j}
	if err := fn(tx); err != nil {
		s.mu.Lock()
		j.rollback(s.st)
		s.mu.Unlock()
		return err
	}
	return nil
}

// PutMerchant 写入商户（种子数据）
func (s *Store) PutMerchant(m mainmodel.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.CustomFeePercent = copyDec(m.CustomFeePercent)
	put(s, merchantsOf, "merchant", m.MerchantID, m)
}

// PutWallet 写入商户收款地址（种子数据）
func (s *Store) PutWallet(w mainmodel.MerchantWallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state()
	if w.ID == 0 {
		st.walletSeq++
		w.ID = st.walletSeq
	}
	put(s, walletsOf, "wallet", w.ID, w)
}
