package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	mainmodel "stablepay-api/internal/model/main"
	"stablepay-api/internal/repo/memory"
)

type fixedResolver int

func (f fixedResolver) LimitFor(context.Context, uint64) (int, error) { return int(f), nil }

type brokenStore struct{}

func (brokenStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestFixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewMemoryStore()
	store.now = clock
	l := NewLimiter(store, fixedResolver(3), 1, WithClock(clock))

	for i := 1; i <= 3; i++ {
		d := l.Check(context.Background(), 42, "1.2.3.4")
		if !d.Allowed {
			t.Fatalf("request %d rejected", i)
		}
		if d.Remaining != 3-i {
			t.Fatalf("request %d remaining = %d, want %d", i, d.Remaining, 3-i)
		}
	}
	d := l.Check(context.Background(), 42, "1.2.3.4")
	if d.Allowed {
		t.Fatal("4th request should be rejected")
	}
	if d.Key != "merchant:42" {
		t.Fatalf("key = %s", d.Key)
	}
	if want := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC); !d.ResetAt.Equal(want) {
		t.Fatalf("reset = %v, want %v", d.ResetAt, want)
	}
	if d.RetryAfter(now) != 45*time.Minute {
		t.Fatalf("retry after = %v", d.RetryAfter(now))
	}

	// 下一个窗口重新计数
	now = now.Add(time.Hour)
	if d := l.Check(context.Background(), 42, "1.2.3.4"); !d.Allowed {
		t.Fatal("new window should allow")
	}
}

func TestAnonymousKeyedByIP(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), nil, 1)
	if d := l.Check(context.Background(), 0, "10.0.0.1"); !d.Allowed || d.Key != "anon:10.0.0.1" {
		t.Fatalf("first anon request: %+v", d)
	}
	if d := l.Check(context.Background(), 0, "10.0.0.1"); d.Allowed {
		t.Fatal("second anon request from same ip should be rejected")
	}
	if d := l.Check(context.Background(), 0, "10.0.0.2"); !d.Allowed {
		t.Fatal("different ip has its own window")
	}
}

func TestFailOpen(t *testing.T) {
	l := NewLimiter(brokenStore{}, fixedResolver(1), 1)
	for i := 0; i < 5; i++ {
		d := l.Check(context.Background(), 7, "")
		if !d.Allowed || !d.Degraded {
			t.Fatalf("store failure must allow request, got %+v", d)
		}
	}
}

func TestPlanResolver(t *testing.T) {
	store := memory.NewStore()
	store.PutMerchant(mainmodel.Merchant{MerchantID: 1, Plan: "Pro"})
	store.PutMerchant(mainmodel.Merchant{MerchantID: 2, Plan: "mystery"})
	r := NewPlanResolver(store.Merchants(), map[string]int{"pro": 5000}, 100)

	if v, err := r.LimitFor(context.Background(), 1); err != nil || v != 5000 {
		t.Fatalf("pro limit = %d, %v", v, err)
	}
	if v, _ := r.LimitFor(context.Background(), 2); v != 100 {
		t.Fatalf("unknown plan limit = %d, want fallback 100", v)
	}
	if _, err := r.LimitFor(context.Background(), 3); err == nil {
		t.Fatal("missing merchant should error")
	}
}

func TestUnknownMerchantFailsOpen(t *testing.T) {
	store := memory.NewStore()
	l := NewLimiter(NewMemoryStore(), NewPlanResolver(store.Merchants(), nil, 10), 1)
	if d := l.Check(context.Background(), 99, ""); !d.Allowed {
		t.Fatal("resolver error must not block request")
	}
}
