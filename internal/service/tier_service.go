package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/logger"
	mainmodel "stablepay-api/internal/model/main"
	"stablepay-api/internal/repo"
	"stablepay-api/internal/settlement"
)

// TierCheckResult 下单前的费率与额度检查结果
type TierCheckResult struct {
	Allowed         bool
	Reason          string
	Suspended       bool
	UpgradeRequired bool
	FeePercent      decimal.Decimal
	FeeAmount       decimal.Decimal
	VolumeTier      string
}

const (
	ReasonSuspended        = "merchant suspended"
	ReasonMainnetVolumeCap = "mainnet volume limit reached for current plan"
	ReasonMainnetTxCap     = "mainnet transaction limit reached for current plan"
)

type TierService struct {
	store repo.Store
	tiers *settlement.TierTable
	opts  options
}

func NewTierService(store repo.Store, tiers *settlement.TierTable, opts ...Option) *TierService {
	return &TierService{store: store, tiers: tiers, opts: buildOptions(opts)}
}

// CheckTierLimits 账期到期时先重置计数；费率按包含本单的月交易量预估。
// 免费/试用套餐只限制主网交易量与笔数
func (s *TierService) CheckTierLimits(ctx context.Context, merchantID uint64, amount decimal.Decimal) (*TierCheckResult, error) {
	if !amount.IsPositive() {
		return nil, constant.ErrOrderAmountInvalid
	}
	m, err := s.store.Merchants().Get(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load merchant %d: %w", merchantID, err)
	}
	if m == nil {
		return nil, constant.ErrMerchantNotFound
	}
	if m.CycleElapsed(s.opts.now(), s.opts.billingCycleDays) {
		if m, err = s.rollCycle(ctx, merchantID); err != nil {
			return nil, err
		}
	}

	pct, tier := s.tiers.Resolve(m.MonthlyVolumeUsed.Add(amount), m.CustomFeePercent)
	res := &TierCheckResult{
		Allowed:    true,
		FeePercent: pct,
		FeeAmount:  settlement.FeeAmount(amount, pct),
		VolumeTier: tier,
	}

	switch {
	case m.IsSuspended:
		res.Allowed = false
		res.Suspended = true
		res.Reason = ReasonSuspended
	case m.IsFreeTier() && m.IsMainnet():
		if m.MainnetVolumeUsed.Add(amount).GreaterThan(s.opts.freeVolumeCap) {
			res.Allowed = false
			res.UpgradeRequired = true
			res.Reason = ReasonMainnetVolumeCap
		} else if m.MainnetTransactions+1 > s.opts.freeTxCap {
			res.Allowed = false
			res.UpgradeRequired = true
			res.Reason = ReasonMainnetTxCap
		}
	}

	if !res.Allowed {
		logger.L.WithFields(logrus.Fields{
			"merchant_id": merchantID,
			"amount":      amount.String(),
			"reason":      res.Reason,
		}).Info("[ORDER] tier check rejected")
	}
	return res, nil
}

func (s *TierService) rollCycle(ctx context.Context, merchantID uint64) (*mainmodel.Merchant, error) {
	var out *mainmodel.Merchant
	err := s.store.Transaction(ctx, func(tx repo.Store) error {
		m, err := tx.Merchants().GetForUpdate(ctx, merchantID)
		if err != nil {
			return fmt.Errorf("lock merchant %d: %w", merchantID, err)
		}
		if m == nil {
			return constant.ErrMerchantNotFound
		}
		now := s.opts.now()
		if m.CycleElapsed(now, s.opts.billingCycleDays) {
			m.ResetCycle(now)
			if err := tx.Merchants().SaveCounters(ctx, m); err != nil {
				return fmt.Errorf("reset merchant %d cycle: %w", merchantID, err)
			}
			logger.L.WithField("merchant_id", merchantID).Info("[ORDER] billing cycle reset")
		}
		out = m
		return nil
	})
	return out, err
}
