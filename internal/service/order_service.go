package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/chain"
	"stablepay-api/internal/constant"
	"stablepay-api/internal/event"
	"stablepay-api/internal/idgen"
	"stablepay-api/internal/logger"
	mainmodel "stablepay-api/internal/model/main"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/repo"
	"stablepay-api/internal/settlement"
)

// CreateOrderInput merchantID 为 0 表示平台收款订单
type CreateOrderInput struct {
	MerchantID    uint64
	Amount        decimal.Decimal
	Chain         string
	ExpiryMinutes int
}

// ConfirmInput 显式确认携带的链上信息，均可为空
type ConfirmInput struct {
	TxHash        string
	BlockNumber   uint64
	Confirmations int64
}

// OrderService 订单生命周期：创建、确认（费用与交易量原子入账）、过期
type OrderService struct {
	store     repo.Store
	ids       idgen.Generator
	chains    *chain.Registry
	tiers     *settlement.TierTable
	publisher event.Publisher
	opts      options
}

func NewOrderService(store repo.Store, ids idgen.Generator, chains *chain.Registry, tiers *settlement.TierTable, pub event.Publisher, opts ...Option) *OrderService {
	if pub == nil {
		pub = event.NopPublisher{}
	}
	return &OrderService{
		store:     store,
		ids:       ids,
		chains:    chains,
		tiers:     tiers,
		publisher: pub,
		opts:      buildOptions(opts),
	}
}

// CreateOrder 创建 PENDING 订单，收款地址取商户在该链的有效钱包，无商户时取平台地址
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*ordermodel.Order, error) {
	// 1) 参数校验
	if !in.Amount.IsPositive() {
		return nil, constant.ErrOrderAmountInvalid
	}
	if in.ExpiryMinutes < 0 {
		return nil, constant.ErrInvalidParams
	}
	ch, ok := s.chains.Get(strings.TrimSpace(in.Chain))
	if !ok {
		return nil, constant.ErrChainNotSupported
	}
	expiry := s.opts.defaultExpiry
	if in.ExpiryMinutes > 0 {
		expiry = time.Duration(in.ExpiryMinutes) * time.Minute
	}

	// 2) 解析收款地址
	var merchantID *uint64
	address := ch.PlatformAddress
	if in.MerchantID != 0 {
		m, err := s.store.Merchants().Get(ctx, in.MerchantID)
		if err != nil {
			return nil, fmt.Errorf("load merchant %d: %w", in.MerchantID, err)
		}
		if m == nil {
			return nil, constant.ErrMerchantNotFound
		}
		if m.IsSuspended {
			return nil, constant.ErrMerchantSuspended
		}
		w, err := s.store.Merchants().ActiveWallet(ctx, in.MerchantID, ch.Name)
		if err != nil {
			return nil, fmt.Errorf("load wallet: %w", err)
		}
		if w == nil {
			return nil, constant.ErrWalletNotFound
		}
		id := in.MerchantID
		merchantID = &id
		address = w.Address
	}
	if address == "" {
		return nil, constant.ErrWalletNotFound
	}

	// 3) 落库
	now := s.opts.now()
	o := &ordermodel.Order{
		OrderID:        s.ids.NextID(),
		MerchantID:     merchantID,
		Amount:         in.Amount,
		Chain:          ch.Name,
		Token:          ch.Token,
		Network:        ch.Network,
		PaymentAddress: address,
		Status:         ordermodel.StatusPending,
		ExpiresAt:      now.Add(expiry),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Orders().Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	logger.L.WithFields(logrus.Fields{
		"order_id":    o.OrderID,
		"merchant_id": in.MerchantID,
		"chain":       o.Chain,
		"amount":      o.Amount.String(),
	}).Info("[ORDER] created")

	if o.HasMerchant() {
		s.publisher.Publish(ctx, *o.MerchantID, event.OrderCreated, orderEventData(o))
	}
	return o, nil
}

// ConfirmOrder 显式确认，PENDING/PAID 均可确认。
// 订单与商户行在同一事务内加锁，手续费按包含本单的月交易量计算并只入账一次
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID uint64, in ConfirmInput) (*ordermodel.Order, error) {
	var (
		confirmed *ordermodel.Order
		changed   bool
	)
	err := s.store.Transaction(ctx, func(tx repo.Store) error {
		// 1) 锁订单
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order %d: %w", orderID, err)
		}
		if o == nil {
			return constant.ErrOrderNotFound
		}
		txHash := strings.TrimSpace(in.TxHash)
		if o.Status == ordermodel.StatusConfirmed {
			if txHash == "" || strings.EqualFold(txHash, o.TxHash) {
				confirmed = o
				return nil
			}
			return constant.ErrOrderStatusInvalid
		}
		if !ordermodel.CanTransition(o.Status, ordermodel.StatusConfirmed) {
			return constant.ErrOrderStatusInvalid
		}
		now := s.opts.now()

		// 2) 链上交易：存在则更新，不存在则创建
		if txHash == "" {
			txHash = o.TxHash
		}
		if txHash != "" {
			if err := s.upsertConfirmedTx(ctx, tx, o, txHash, in, now); err != nil {
				return err
			}
		}

		// 3) 手续费与交易量
		change := ordermodel.StatusChange{From: o.Status, To: ordermodel.StatusConfirmed, At: now, TxHash: txHash}
		if o.HasMerchant() {
			pct, fee, err := s.accrue(ctx, tx, *o.MerchantID, o.Amount, now)
			if err != nil {
				return err
			}
			change.FeePercent = &pct
			change.FeeAmount = &fee
		}

		// 4) 状态迁移
		if err := tx.Orders().Transition(ctx, o.OrderID, change); err != nil {
			return err
		}
		confirmed, err = tx.Orders().Get(ctx, o.OrderID)
		if err != nil {
			return fmt.Errorf("reload order %d: %w", o.OrderID, err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return confirmed, nil
	}

	fields := logrus.Fields{"order_id": confirmed.OrderID, "tx_hash": confirmed.TxHash}
	if confirmed.FeeAmount != nil {
		fields["fee_percent"] = confirmed.FeePercent.String()
		fields["fee_amount"] = confirmed.FeeAmount.String()
	}
	logger.L.WithFields(fields).Info("[ORDER] confirmed")

	if confirmed.HasMerchant() {
		s.publisher.Publish(ctx, *confirmed.MerchantID, event.OrderConfirmed, orderEventData(confirmed))
	}
	return confirmed, nil
}

func (s *OrderService) upsertConfirmedTx(ctx context.Context, tx repo.Store, o *ordermodel.Order, txHash string, in ConfirmInput, now time.Time) error {
	for i := 0; i < 2; i++ {
		t, err := tx.Transactions().GetByHash(ctx, txHash)
		if err != nil {
			return fmt.Errorf("load transaction %s: %w", txHash, err)
		}
		if t != nil {
			if t.Matched() && *t.OrderID != o.OrderID {
				return constant.ErrTxHashConflict
			}
			id := o.OrderID
			t.OrderID = &id
			t.Status = ordermodel.TxConfirmed
			if in.BlockNumber > 0 {
				t.BlockNumber = in.BlockNumber
			}
			if in.Confirmations > t.Confirmations {
				t.Confirmations = in.Confirmations
			}
			t.UpdatedAt = now
			if err := tx.Transactions().Update(ctx, t); err != nil {
				return fmt.Errorf("update transaction %s: %w", txHash, err)
			}
			return nil
		}

		id := o.OrderID
		inserted, err := tx.Transactions().Insert(ctx, &ordermodel.Transaction{
			ID:            s.ids.NextID(),
			OrderID:       &id,
			TxHash:        txHash,
			Chain:         o.Chain,
			Amount:        o.Amount,
			ToAddress:     o.PaymentAddress,
			BlockNumber:   in.BlockNumber,
			Confirmations: in.Confirmations,
			Status:        ordermodel.TxConfirmed,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", txHash, err)
		}
		if inserted {
			return nil
		}
		// 并发写入了同一 tx_hash，重新读取后按更新处理
	}
	return constant.ErrTxHashConflict
}

// accrue 锁商户行，按需滚动账期后累加手续费与交易量
func (s *OrderService) accrue(ctx context.Context, tx repo.Store, merchantID uint64, amount decimal.Decimal, now time.Time) (decimal.Decimal, decimal.Decimal, error) {
	m, err := tx.Merchants().GetForUpdate(ctx, merchantID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("lock merchant %d: %w", merchantID, err)
	}
	if m == nil {
		return decimal.Zero, decimal.Zero, constant.ErrMerchantNotFound
	}
	if m.CycleElapsed(now, s.opts.billingCycleDays) {
		m.ResetCycle(now)
	}

	newVolume := m.MonthlyVolumeUsed.Add(amount)
	pct := s.tiers.FeePercent(newVolume, m.CustomFeePercent)
	fee := settlement.FeeAmount(amount, pct)

	applyVolume(m, amount)
	m.FeesDue = m.FeesDue.Add(fee)
	if err := tx.Merchants().SaveCounters(ctx, m); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("save merchant %d counters: %w", merchantID, err)
	}
	return pct, fee, nil
}

func applyVolume(m *mainmodel.Merchant, amount decimal.Decimal) {
	m.MonthlyVolumeUsed = m.MonthlyVolumeUsed.Add(amount)
	m.MonthlyTransactions++
	if m.IsMainnet() {
		m.MainnetVolumeUsed = m.MainnetVolumeUsed.Add(amount)
		m.MainnetTransactions++
	} else {
		m.TestnetVolumeUsed = m.TestnetVolumeUsed.Add(amount)
		m.TestnetTransactions++
	}
}

// MarkPaid 扫块确认数达标后 PENDING -> PAID
func (s *OrderService) MarkPaid(ctx context.Context, orderID uint64, txHash string) error {
	err := s.store.Transaction(ctx, func(tx repo.Store) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order %d: %w", orderID, err)
		}
		if o == nil {
			return constant.ErrOrderNotFound
		}
		return tx.Orders().Transition(ctx, orderID, ordermodel.StatusChange{
			From:   o.Status,
			To:     ordermodel.StatusPaid,
			At:     s.opts.now(),
			TxHash: txHash,
		})
	})
	if err != nil {
		return err
	}
	logger.L.WithFields(logrus.Fields{"order_id": orderID, "tx_hash": txHash}).Info("[ORDER] paid")
	return nil
}

// ExpireOrder 只允许 PENDING -> EXPIRED
func (s *OrderService) ExpireOrder(ctx context.Context, orderID uint64) (*ordermodel.Order, error) {
	var expired *ordermodel.Order
	err := s.store.Transaction(ctx, func(tx repo.Store) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order %d: %w", orderID, err)
		}
		if o == nil {
			return constant.ErrOrderNotFound
		}
		if o.Status != ordermodel.StatusPending {
			return constant.ErrOrderStatusInvalid
		}
		if err := tx.Orders().Transition(ctx, orderID, ordermodel.StatusChange{
			From: ordermodel.StatusPending,
			To:   ordermodel.StatusExpired,
			At:   s.opts.now(),
		}); err != nil {
			return err
		}
		expired, err = tx.Orders().Get(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.L.WithField("order_id", orderID).Info("[ORDER] expired")
	if expired.HasMerchant() {
		s.publisher.Publish(ctx, *expired.MerchantID, event.OrderExpired, orderEventData(expired))
	}
	return expired, nil
}

// ExpireDue 批量过期已超时的 PENDING 订单，返回处理数量
func (s *OrderService) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.store.Orders().ListExpired(ctx, s.opts.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired orders: %w", err)
	}
	n := 0
	for i := range due {
		if _, err := s.ExpireOrder(ctx, due[i].OrderID); err != nil {
			// 扫块或确认抢先改了状态
			if errors.Is(err, constant.ErrOrderStatusInvalid) {
				continue
			}
			logger.L.WithField("order_id", due[i].OrderID).Errorf("[ORDER] expire failed: %v", err)
			continue
		}
		n++
	}
	return n, nil
}

// GetOrder 不存在时返回 ErrOrderNotFound
func (s *OrderService) GetOrder(ctx context.Context, orderID uint64) (*ordermodel.Order, error) {
	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if o == nil {
		return nil, constant.ErrOrderNotFound
	}
	return o, nil
}
