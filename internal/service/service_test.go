package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stablepay-api/internal/chain"
	"stablepay-api/internal/event"
	"stablepay-api/internal/idgen"
	mainmodel "stablepay-api/internal/model/main"
	"stablepay-api/internal/repo/memory"
	"stablepay-api/internal/settlement"
)

const (
	testChain       = "eth-usdc"
	testMerchant    = uint64(1001)
	merchantWallet  = "0xMerchantWallet0000000000000000000000000001"
	platformAddress = "0xPlatformWallet0000000000000000000000000001"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type published struct {
	merchantID uint64
	event      event.Type
	data       any
}

type capturePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *capturePublisher) Publish(_ context.Context, merchantID uint64, t event.Type, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{merchantID, t, data})
}

func (p *capturePublisher) count(t event.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.event == t {
			n++
		}
	}
	return n
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store   *memory.Store
	clock   *testClock
	pub     *capturePublisher
	orders  *OrderService
	tiers   *TierService
	refunds *RefundService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := settlement.NewTierTable([]settlement.Tier{
		{Name: "base", Threshold: dec("0"), Percent: dec("0.5")},
		{Name: "volume", Threshold: dec("10000"), Percent: dec("0.4")},
	}, dec("0.1"))
	if err != nil {
		t.Fatal(err)
	}
	registry := chain.NewRegistry(chain.Chain{
		Name:             testChain,
		Network:          "mainnet",
		Token:            "USDC",
		RequiredConfirms: 3,
		PlatformAddress:  platformAddress,
	})

	f := &fixture{
		store: memory.NewStore(),
		clock: &testClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
		pub:   &capturePublisher{},
	}
	f.store.PutMerchant(mainmodel.Merchant{
		MerchantID:        testMerchant,
		Plan:              mainmodel.PlanStarter,
		NetworkMode:       mainmodel.NetworkMainnet,
		BillingCycleStart: f.clock.Now().AddDate(0, 0, -5),
	})
	f.store.PutWallet(mainmodel.MerchantWallet{MerchantID: testMerchant, Chain: testChain, Address: merchantWallet, IsActive: true})

	ids := idgen.NewSequence(0)
	clk := WithClock(f.clock.Now)
	f.orders = NewOrderService(f.store, ids, registry, table, f.pub, clk)
	f.tiers = NewTierService(f.store, table, clk)
	f.refunds = NewRefundService(f.store, ids, f.pub, clk)
	return f
}

func (f *fixture) merchant(t *testing.T) *mainmodel.Merchant {
	t.Helper()
	m, err := f.store.Merchants().Get(context.Background(), testMerchant)
	if err != nil || m == nil {
		t.Fatalf("load merchant: %v", err)
	}
	return m
}

func (f *fixture) setMerchant(t *testing.T, mutate func(m *mainmodel.Merchant)) {
	t.Helper()
	m := f.merchant(t)
	mutate(m)
	f.store.PutMerchant(*m)
}
