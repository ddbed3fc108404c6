package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/chain"
	"stablepay-api/internal/constant"
	"stablepay-api/internal/idgen"
	"stablepay-api/internal/logger"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/repo"
	"stablepay-api/internal/utils/timeutil"
)

// errReceiptUnavailable 节点尚未索引到回执，窗口留待下次重扫
var errReceiptUnavailable = errors.New("receipt not available yet")

// PaymentMarker 确认数达标后把订单推进到 PAID
type PaymentMarker interface {
	MarkPaid(ctx context.Context, orderID uint64, txHash string) error
}

// Result 单次扫描统计
type Result struct {
	From     uint64
	To       uint64
	Skipped  bool
	Events   int
	Matched  int
	Promoted int
}

// Scanner 单条链的扫块器，同一条链同一时刻只应有一个实例在跑
type Scanner struct {
	chain  chain.Chain
	client chain.Client
	store  repo.Store
	ids    idgen.Generator
	orders PaymentMarker

	tolerance    decimal.Decimal
	recheckLimit int
	now          func() time.Time
}

type Option func(*Scanner)

func WithTolerance(t decimal.Decimal) Option {
	return func(s *Scanner) { s.tolerance = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

func WithRecheckLimit(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.recheckLimit = n
		}
	}
}

func New(c chain.Chain, client chain.Client, store repo.Store, ids idgen.Generator, orders PaymentMarker, opts ...Option) *Scanner {
	if c.WindowSize == 0 {
		c.WindowSize = 500
	}
	s := &Scanner{
		chain:        c,
		client:       client,
		store:        store,
		ids:          ids,
		orders:       orders,
		tolerance:    decimal.RequireFromString("0.01"),
		recheckLimit: 200,
		now:          timeutil.NowUTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scanner) Chain() chain.Chain { return s.chain }

func (s *Scanner) log() *logrus.Entry {
	return logger.L.WithField("chain", s.chain.Name)
}

// ScanOnce 扫描 (cursor, min(cursor+window, 当前高度)]。
// 整个窗口处理成功后才推进游标，中途失败下次从同一位置重扫
func (s *Scanner) ScanOnce(ctx context.Context) (Result, error) {
	var res Result

	// 1) 当前高度与游标
	current, err := s.client.CurrentBlockHeight(ctx)
	if err != nil {
		return res, fmt.Errorf("current block height: %w", err)
	}
	cursor, err := s.cursor(ctx, current)
	if err != nil {
		return res, err
	}

	// 2) 计算窗口
	res.From = cursor + 1
	res.To = cursor + s.chain.WindowSize
	if res.To > current {
		res.To = current
	}
	if res.From > res.To {
		res.Skipped = true
	} else if err := s.scanWindow(ctx, current, &res); err != nil {
		return res, err
	}

	// 3) 复查确认数不足的交易
	promoted, err := s.recheck(ctx, current)
	res.Promoted += promoted
	if err != nil {
		return res, err
	}
	return res, nil
}

func (s *Scanner) cursor(ctx context.Context, current uint64) (uint64, error) {
	c, err := s.store.Cursors().Get(ctx, s.chain.Name)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	if c != nil {
		return c.LastScannedBlock, nil
	}
	start := uint64(0)
	if current > s.chain.InitialLookback {
		start = current - s.chain.InitialLookback
	}
	c, err = s.store.Cursors().Init(ctx, s.chain.Name, start)
	if err != nil {
		return 0, fmt.Errorf("init cursor: %w", err)
	}
	s.log().Infof("[SCANNER] cursor initialized at block %d", c.LastScannedBlock)
	return c.LastScannedBlock, nil
}

func (s *Scanner) scanWindow(ctx context.Context, current uint64, res *Result) error {
	watched, err := s.watched(ctx)
	if err != nil {
		return err
	}
	if len(watched) > 0 {
		events, err := s.client.TransferEventsInRange(ctx, res.From, res.To, watched)
		if err != nil {
			return fmt.Errorf("transfer events [%d,%d]: %w", res.From, res.To, err)
		}
		res.Events = len(events)
		for i := range events {
			matched, promoted, err := s.processEvent(ctx, events[i], current)
			if err != nil {
				return fmt.Errorf("process %s: %w", events[i].TxHash, err)
			}
			if matched {
				res.Matched++
			}
			if promoted {
				res.Promoted++
			}
		}
	}

	if err := s.store.Cursors().Advance(ctx, s.chain.Name, res.To); err != nil {
		return fmt.Errorf("advance cursor to %d: %w", res.To, err)
	}
	return nil
}

func (s *Scanner) watched(ctx context.Context) ([]string, error) {
	addrs, err := s.store.Merchants().WatchedAddresses(ctx, s.chain.Name)
	if err != nil {
		return nil, fmt.Errorf("watched addresses: %w", err)
	}
	if s.chain.PlatformAddress != "" {
		addrs = append(addrs, s.chain.PlatformAddress)
	}
	return addrs, nil
}

// processEvent 已记录过的交易只刷新状态与确认数，未记录的查回执、匹配订单后写入
func (s *Scanner) processEvent(ctx context.Context, ev chain.TransferEvent, current uint64) (bool, bool, error) {
	existing, err := s.store.Transactions().GetByHash(ctx, ev.TxHash)
	if err != nil {
		return false, false, err
	}
	if existing != nil {
		promoted, err := s.refresh(ctx, existing, current)
		return false, promoted, err
	}

	status, err := s.receiptStatus(ctx, ev.TxHash)
	if err != nil {
		return false, false, err
	}
	if status == ordermodel.TxPending {
		return false, false, errReceiptUnavailable
	}
	now := s.now()
	t := &ordermodel.Transaction{
		ID:            s.ids.NextID(),
		TxHash:        ev.TxHash,
		Chain:         s.chain.Name,
		Amount:        ev.Amount,
		FromAddress:   ev.From,
		ToAddress:     ev.To,
		BlockNumber:   ev.BlockNumber,
		BlockTime:     s.blockTime(ctx, ev.BlockNumber),
		Confirmations: chain.Confirmations(current, ev.BlockNumber),
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if status != ordermodel.TxFailed {
		o, err := s.store.Orders().FindPendingMatch(ctx, repo.MatchQuery{
			Chain:   s.chain.Name,
			Address: ev.To,
			Min:     ev.Amount.Sub(s.tolerance),
			Max:     ev.Amount.Add(s.tolerance),
			Now:     now,
		})
		if err != nil {
			return false, false, fmt.Errorf("match order: %w", err)
		}
		if o != nil {
			id := o.OrderID
			t.OrderID = &id
		}
	}

	inserted, err := s.store.Transactions().Insert(ctx, t)
	if err != nil {
		return false, false, fmt.Errorf("insert transaction: %w", err)
	}
	if !inserted {
		return false, false, nil
	}

	fields := logrus.Fields{
		"chain":         s.chain.Name,
		"tx_hash":       t.TxHash,
		"amount":        t.Amount.String(),
		"block":         t.BlockNumber,
		"confirmations": t.Confirmations,
		"status":        t.Status,
	}
	if !t.Matched() {
		logger.L.WithFields(fields).Info("[SCANNER] unmatched transfer recorded")
		return false, false, nil
	}
	fields["order_id"] = *t.OrderID
	logger.L.WithFields(fields).Info("[SCANNER] transfer matched")

	promoted, err := s.promote(ctx, t)
	return true, promoted, err
}

func (s *Scanner) refresh(ctx context.Context, t *ordermodel.Transaction, current uint64) (bool, error) {
	if t.Status == ordermodel.TxFailed {
		return false, nil
	}
	changed := false
	if t.Status == ordermodel.TxPending {
		status, err := s.receiptStatus(ctx, t.TxHash)
		if err != nil {
			return false, err
		}
		if status != t.Status {
			t.Status = status
			changed = true
		}
	}
	if conf := chain.Confirmations(current, t.BlockNumber); conf > t.Confirmations {
		t.Confirmations = conf
		changed = true
	}
	if changed {
		t.UpdatedAt = s.now()
		if err := s.store.Transactions().Update(ctx, t); err != nil {
			return false, fmt.Errorf("update transaction: %w", err)
		}
	}
	if !t.Matched() {
		return false, nil
	}
	return s.promote(ctx, t)
}

// promote 回执成功且确认数达标才推进；订单已不是 PENDING 视为已处理
func (s *Scanner) promote(ctx context.Context, t *ordermodel.Transaction) (bool, error) {
	if t.Status != ordermodel.TxConfirmed || t.Confirmations < s.chain.RequiredConfirms {
		return false, nil
	}
	err := s.orders.MarkPaid(ctx, *t.OrderID, t.TxHash)
	if errors.Is(err, constant.ErrOrderStatusInvalid) {
		s.warnIfExpired(ctx, t)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark order %d paid: %w", *t.OrderID, err)
	}
	return true, nil
}

// warnIfExpired 已到账的交易碰上已过期订单，需人工处理
func (s *Scanner) warnIfExpired(ctx context.Context, t *ordermodel.Transaction) {
	o, err := s.store.Orders().Get(ctx, *t.OrderID)
	if err != nil || o == nil || o.Status != ordermodel.StatusExpired {
		return
	}
	logger.L.WithFields(logrus.Fields{
		"chain":    s.chain.Name,
		"order_id": o.OrderID,
		"tx_hash":  t.TxHash,
		"amount":   t.Amount.String(),
	}).Warn("[SCANNER] confirmed transfer belongs to an expired order")
}

func (s *Scanner) receiptStatus(ctx context.Context, txHash string) (ordermodel.TxStatus, error) {
	r, err := s.client.GetReceipt(ctx, txHash)
	if err != nil {
		return "", fmt.Errorf("receipt: %w", err)
	}
	switch {
	case r == nil:
		return ordermodel.TxPending, nil
	case r.Success:
		return ordermodel.TxConfirmed, nil
	default:
		return ordermodel.TxFailed, nil
	}
}

// blockTime 取不到区块时间不影响入账
func (s *Scanner) blockTime(ctx context.Context, number uint64) *time.Time {
	b, err := s.client.GetBlock(ctx, number)
	if err != nil || b == nil {
		if err != nil {
			s.log().Warnf("[SCANNER] get block %d: %v", number, err)
		}
		return nil
	}
	t := b.Timestamp.UTC()
	return &t
}

// recheck 已匹配但回执未出或确认数不足的交易，达标后推进订单
func (s *Scanner) recheck(ctx context.Context, current uint64) (int, error) {
	awaiting, err := s.store.Transactions().ListAwaitingConfirmation(ctx, s.chain.Name, s.recheckLimit)
	if err != nil {
		return 0, fmt.Errorf("list awaiting confirmation: %w", err)
	}
	promoted := 0
	for i := range awaiting {
		ok, err := s.refresh(ctx, &awaiting[i], current)
		if err != nil {
			s.log().WithField("tx_hash", awaiting[i].TxHash).Errorf("[SCANNER] recheck failed: %v", err)
			continue
		}
		if ok {
			promoted++
		}
	}
	return promoted, nil
}
