package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/event"
	mainmodel "stablepay-api/internal/model/main"
	ordermodel "stablepay-api/internal/model/order"
)

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("25.5"), Chain: testChain})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Status != ordermodel.StatusPending || o.PaymentAddress != merchantWallet || o.Token != "USDC" {
		t.Fatalf("unexpected order: %+v", o)
	}
	if !o.ExpiresAt.Equal(f.clock.Now().Add(30 * time.Minute)) {
		t.Fatalf("expiresAt = %v", o.ExpiresAt)
	}
	if o.FeePercent != nil || o.FeeAmount != nil {
		t.Fatal("fee must not be set before confirmation")
	}
	if f.pub.count(event.OrderCreated) != 1 {
		t.Fatal("order.created not published")
	}

	p, err := f.orders.CreateOrder(ctx, CreateOrderInput{Amount: dec("3"), Chain: testChain, ExpiryMinutes: 5})
	if err != nil {
		t.Fatalf("create platform order: %v", err)
	}
	if p.HasMerchant() || p.PaymentAddress != platformAddress || !p.ExpiresAt.Equal(f.clock.Now().Add(5*time.Minute)) {
		t.Fatalf("unexpected platform order: %+v", p)
	}
	if f.pub.count(event.OrderCreated) != 1 {
		t.Fatal("platform orders must not publish webhooks")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutMerchant(mainmodel.Merchant{MerchantID: 7, IsSuspended: true})
	f.store.PutMerchant(mainmodel.Merchant{MerchantID: 8})

	cases := []struct {
		name string
		in   CreateOrderInput
		want error
	}{
		{"zero amount", CreateOrderInput{Amount: dec("0"), Chain: testChain}, constant.ErrOrderAmountInvalid},
		{"negative amount", CreateOrderInput{Amount: dec("-1"), Chain: testChain}, constant.ErrOrderAmountInvalid},
		{"unknown chain", CreateOrderInput{Amount: dec("1"), Chain: "doge"}, constant.ErrChainNotSupported},
		{"unknown merchant", CreateOrderInput{MerchantID: 99, Amount: dec("1"), Chain: testChain}, constant.ErrMerchantNotFound},
		{"suspended merchant", CreateOrderInput{MerchantID: 7, Amount: dec("1"), Chain: testChain}, constant.ErrMerchantSuspended},
		{"no wallet", CreateOrderInput{MerchantID: 8, Amount: dec("1"), Chain: testChain}, constant.ErrWalletNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := f.orders.CreateOrder(ctx, c.in); !errors.Is(err, c.want) {
				t.Fatalf("err = %v, want %v", err, c.want)
			}
		})
	}
}

// 9,950 已有交易量的商户确认 100 的订单，跨入 0.4% 档
func TestConfirmOrderCrossesTierBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setMerchant(t, func(m *mainmodel.Merchant) { m.MonthlyVolumeUsed = dec("9950") })

	o, err := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("100.00"), Chain: testChain})
	if err != nil {
		t.Fatal(err)
	}
	c, err := f.orders.ConfirmOrder(ctx, o.OrderID, ConfirmInput{TxHash: "0xabc", BlockNumber: 120, Confirmations: 12})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if c.Status != ordermodel.StatusConfirmed {
		t.Fatalf("status = %s", c.Status)
	}
	if c.FeePercent == nil || !c.FeePercent.Equal(dec("0.4")) {
		t.Fatalf("feePercent = %v, want 0.4", c.FeePercent)
	}
	if c.FeeAmount == nil || !c.FeeAmount.Equal(dec("0.40")) {
		t.Fatalf("feeAmount = %v, want 0.40", c.FeeAmount)
	}

	m := f.merchant(t)
	if !m.FeesDue.Equal(dec("0.4")) || !m.MonthlyVolumeUsed.Equal(dec("10050")) || m.MonthlyTransactions != 1 {
		t.Fatalf("merchant counters: fees=%s volume=%s tx=%d", m.FeesDue, m.MonthlyVolumeUsed, m.MonthlyTransactions)
	}
	if !m.MainnetVolumeUsed.Equal(dec("100")) || m.MainnetTransactions != 1 || m.TestnetTransactions != 0 {
		t.Fatalf("network counters: mainnet=%s/%d testnet=%d", m.MainnetVolumeUsed, m.MainnetTransactions, m.TestnetTransactions)
	}

	tx, _ := f.store.Transactions().GetByHash(ctx, "0xabc")
	if tx == nil || tx.OrderID == nil || *tx.OrderID != o.OrderID || tx.Status != ordermodel.TxConfirmed || tx.BlockNumber != 120 {
		t.Fatalf("transaction not recorded: %+v", tx)
	}
	if f.pub.count(event.OrderConfirmed) != 1 {
		t.Fatal("order.confirmed not published")
	}
}

func TestConfirmOrderIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("50"), Chain: testChain})

	for i := 0; i < 3; i++ {
		if _, err := f.orders.ConfirmOrder(ctx, o.OrderID, ConfirmInput{TxHash: "0xdup"}); err != nil {
			t.Fatalf("confirm #%d: %v", i+1, err)
		}
	}
	m := f.merchant(t)
	if m.MonthlyTransactions != 1 || !m.MonthlyVolumeUsed.Equal(dec("50")) || !m.FeesDue.Equal(dec("0.25")) {
		t.Fatalf("counters accrued more than once: %+v", m)
	}
	if f.pub.count(event.OrderConfirmed) != 1 {
		t.Fatalf("order.confirmed published %d times", f.pub.count(event.OrderConfirmed))
	}

	if _, err := f.orders.ConfirmOrder(ctx, o.OrderID, ConfirmInput{TxHash: "0xother"}); !errors.Is(err, constant.ErrOrderStatusInvalid) {
		t.Fatalf("confirm with a different hash: %v", err)
	}
}

func TestConcurrentConfirmationsAccrueOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setMerchant(t, func(m *mainmodel.Merchant) { m.MonthlyVolumeUsed = dec("9900") })

	a, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("100"), Chain: testChain})
	b, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("100"), Chain: testChain})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, id := range []uint64{a.OrderID, b.OrderID} {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				_, _ = f.orders.ConfirmOrder(ctx, id, ConfirmInput{})
			}(id)
		}
	}
	wg.Wait()

	m := f.merchant(t)
	if m.MonthlyTransactions != 2 || !m.MonthlyVolumeUsed.Equal(dec("10100")) {
		t.Fatalf("volume=%s tx=%d", m.MonthlyVolumeUsed, m.MonthlyTransactions)
	}
	// 两笔累计后交易量都不低于 10,000，均按 0.4% 计费
	oa, _ := f.orders.GetOrder(ctx, a.OrderID)
	ob, _ := f.orders.GetOrder(ctx, b.OrderID)
	total := oa.FeeAmount.Add(*ob.FeeAmount)
	if !total.Equal(m.FeesDue) {
		t.Fatalf("fees due %s != sum of order fees %s", m.FeesDue, total)
	}
	if !total.Equal(dec("0.8")) {
		t.Fatalf("both orders land at or above 10,000 and pay 0.4%%, total=%s", total)
	}
}

func TestConfirmPaidOrderUsesScannedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("10"), Chain: testChain})

	if err := f.orders.MarkPaid(ctx, o.OrderID, "0xscan"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := f.orders.MarkPaid(ctx, o.OrderID, "0xscan"); !errors.Is(err, constant.ErrOrderStatusInvalid) {
		t.Fatalf("second mark paid: %v", err)
	}
	c, err := f.orders.ConfirmOrder(ctx, o.OrderID, ConfirmInput{})
	if err != nil {
		t.Fatalf("confirm paid order: %v", err)
	}
	if c.TxHash != "0xscan" || c.PaidAt == nil || c.ConfirmedAt == nil {
		t.Fatalf("unexpected confirmed order: %+v", c)
	}
}

func TestConfirmRejectsHashOwnedByAnotherOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("10"), Chain: testChain})
	b, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("10"), Chain: testChain})

	if _, err := f.orders.ConfirmOrder(ctx, a.OrderID, ConfirmInput{TxHash: "0xshared"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orders.ConfirmOrder(ctx, b.OrderID, ConfirmInput{TxHash: "0xshared"}); !errors.Is(err, constant.ErrTxHashConflict) {
		t.Fatalf("err = %v, want tx hash conflict", err)
	}
	got, _ := f.orders.GetOrder(ctx, b.OrderID)
	if got.Status != ordermodel.StatusPending {
		t.Fatalf("order b changed to %s", got.Status)
	}
	if f.merchant(t).MonthlyTransactions != 1 {
		t.Fatal("rolled back confirmation must not accrue")
	}
}

// 订单过期后不能再确认
func TestExpiredOrderCannotBeConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("100"), Chain: testChain})

	f.clock.Advance(31 * time.Minute)
	n, err := f.orders.ExpireDue(ctx, 10)
	if err != nil || n != 1 {
		t.Fatalf("expire due: n=%d err=%v", n, err)
	}
	got, _ := f.orders.GetOrder(ctx, o.OrderID)
	if got.Status != ordermodel.StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", got.Status)
	}
	if f.pub.count(event.OrderExpired) != 1 {
		t.Fatal("order.expired not published")
	}

	if _, err := f.orders.ConfirmOrder(ctx, o.OrderID, ConfirmInput{TxHash: "0xlate"}); !errors.Is(err, constant.ErrOrderStatusInvalid) {
		t.Fatalf("confirm expired order: %v", err)
	}
	if _, err := f.orders.ExpireOrder(ctx, o.OrderID); !errors.Is(err, constant.ErrOrderStatusInvalid) {
		t.Fatalf("expire twice: %v", err)
	}
	if tx, _ := f.store.Transactions().GetByHash(ctx, "0xlate"); tx != nil {
		t.Fatal("rejected confirmation left a transaction behind")
	}
	if f.merchant(t).MonthlyTransactions != 0 {
		t.Fatal("expired order accrued volume")
	}
}

func TestExpireOrderOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("1"), Chain: testChain})
	if _, err := f.orders.ConfirmOrder(ctx, o.OrderID, ConfirmInput{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orders.ExpireOrder(ctx, o.OrderID); !errors.Is(err, constant.ErrOrderStatusInvalid) {
		t.Fatalf("expire confirmed order: %v", err)
	}
	if _, err := f.orders.ExpireOrder(ctx, 424242); !errors.Is(err, constant.ErrOrderNotFound) {
		t.Fatalf("expire unknown order: %v", err)
	}
}

func TestConfirmRollsBillingCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setMerchant(t, func(m *mainmodel.Merchant) {
		m.MonthlyVolumeUsed = dec("50000")
		m.MonthlyTransactions = 40
		m.BillingCycleStart = f.clock.Now().AddDate(0, 0, -31)
	})
	o, _ := f.orders.CreateOrder(ctx, CreateOrderInput{MerchantID: testMerchant, Amount: dec("200"), Chain: testChain})
	c, err := f.orders.ConfirmOrder(ctx, o.OrderID, ConfirmInput{})
	if err != nil {
		t.Fatal(err)
	}
	if !c.FeePercent.Equal(dec("0.5")) {
		t.Fatalf("fee percent after reset = %s, want 0.5", c.FeePercent)
	}
	m := f.merchant(t)
	if !m.MonthlyVolumeUsed.Equal(dec("200")) || m.MonthlyTransactions != 1 || !m.BillingCycleStart.Equal(f.clock.Now()) {
		t.Fatalf("cycle not rolled: %+v", m)
	}
}
