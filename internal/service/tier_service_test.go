package service

import (
	"context"
	"errors"
	"testing"

	"stablepay-api/internal/constant"
	mainmodel "stablepay-api/internal/model/main"
)

func TestCheckTierLimitsPaidPlan(t *testing.T) {
	f := newFixture(t)
	f.setMerchant(t, func(m *mainmodel.Merchant) { m.MonthlyVolumeUsed = dec("9950") })

	res, err := f.tiers.CheckTierLimits(context.Background(), testMerchant, dec("100"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed || res.Suspended || res.UpgradeRequired {
		t.Fatalf("paid plan should be allowed: %+v", res)
	}
	if !res.FeePercent.Equal(dec("0.4")) || !res.FeeAmount.Equal(dec("0.4")) || res.VolumeTier != "volume" {
		t.Fatalf("unexpected fee preview: %+v", res)
	}
	if f.merchant(t).MonthlyTransactions != 0 {
		t.Fatal("tier check must not mutate counters")
	}
}

func TestCheckTierLimitsCustomRate(t *testing.T) {
	f := newFixture(t)
	f.setMerchant(t, func(m *mainmodel.Merchant) {
		pct := dec("0.15")
		m.CustomFeePercent = &pct
	})
	res, err := f.tiers.CheckTierLimits(context.Background(), testMerchant, dec("1000"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.FeePercent.Equal(dec("0.15")) || !res.FeeAmount.Equal(dec("1.5")) || res.VolumeTier != "custom" {
		t.Fatalf("custom rate not applied: %+v", res)
	}
}

func TestCheckTierLimitsSuspended(t *testing.T) {
	f := newFixture(t)
	f.setMerchant(t, func(m *mainmodel.Merchant) { m.IsSuspended = true })

	res, err := f.tiers.CheckTierLimits(context.Background(), testMerchant, dec("1"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || !res.Suspended || res.UpgradeRequired || res.Reason != ReasonSuspended {
		t.Fatalf("suspended merchant: %+v", res)
	}
}

func TestCheckTierLimitsFreePlanCaps(t *testing.T) {
	cases := []struct {
		name    string
		network string
		volume  string
		txs     int64
		amount  string
		allowed bool
		reason  string
	}{
		{"mainnet under caps", mainmodel.NetworkMainnet, "900", 10, "100", true, ""},
		{"mainnet volume cap", mainmodel.NetworkMainnet, "900", 10, "100.01", false, ReasonMainnetVolumeCap},
		{"mainnet tx cap", mainmodel.NetworkMainnet, "10", 50, "1", false, ReasonMainnetTxCap},
		{"testnet unconstrained", mainmodel.NetworkTestnet, "900", 50, "5000", true, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			f.setMerchant(t, func(m *mainmodel.Merchant) {
				m.Plan = mainmodel.PlanFree
				m.NetworkMode = c.network
				m.MainnetVolumeUsed = dec(c.volume)
				m.MainnetTransactions = c.txs
				m.TestnetVolumeUsed = dec(c.volume)
				m.TestnetTransactions = c.txs
			})
			res, err := f.tiers.CheckTierLimits(context.Background(), testMerchant, dec(c.amount))
			if err != nil {
				t.Fatal(err)
			}
			if res.Allowed != c.allowed || res.Reason != c.reason || res.UpgradeRequired == c.allowed {
				t.Fatalf("got %+v", res)
			}
		})
	}
}

func TestCheckTierLimitsResetsElapsedCycle(t *testing.T) {
	f := newFixture(t)
	f.setMerchant(t, func(m *mainmodel.Merchant) {
		m.Plan = mainmodel.PlanTrial
		m.MainnetVolumeUsed = dec("1000")
		m.MainnetTransactions = 50
		m.MonthlyVolumeUsed = dec("1000")
		m.BillingCycleStart = f.clock.Now().AddDate(0, 0, -30)
	})

	res, err := f.tiers.CheckTierLimits(context.Background(), testMerchant, dec("10"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatalf("limits should reset with a new cycle: %+v", res)
	}
	m := f.merchant(t)
	if !m.MainnetVolumeUsed.IsZero() || m.MainnetTransactions != 0 || !m.BillingCycleStart.Equal(f.clock.Now()) {
		t.Fatalf("cycle not reset: %+v", m)
	}
}

func TestCheckTierLimitsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.tiers.CheckTierLimits(ctx, 404, dec("1")); !errors.Is(err, constant.ErrMerchantNotFound) {
		t.Fatalf("unknown merchant: %v", err)
	}
	if _, err := f.tiers.CheckTierLimits(ctx, testMerchant, dec("-5")); !errors.Is(err, constant.ErrOrderAmountInvalid) {
		t.Fatalf("negative amount: %v", err)
	}
	// 与 CreateOrder 一致，零金额同样拒绝
	if _, err := f.tiers.CheckTierLimits(ctx, testMerchant, dec("0")); !errors.Is(err, constant.ErrOrderAmountInvalid) {
		t.Fatalf("zero amount: %v", err)
	}
}
