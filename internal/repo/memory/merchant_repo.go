package memory

import (
	"context"
	"sort"
	"strings"

	"stablepay-api/internal/constant"
	mainmodel "stablepay-api/internal/model/main"
)

type merchantRepo struct{ s *Store }

func (r *merchantRepo) Get(_ context.Context, id uint64) (*mainmodel.Merchant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.state().merchants[id]
	if !ok {
		return nil, nil
	}
	m.CustomFeePercent = copyDec(m.CustomFeePercent)
	return &m, nil
}

func (r *merchantRepo) GetForUpdate(ctx context.Context, id uint64) (*mainmodel.Merchant, error) {
	return r.Get(ctx, id)
}

func (r *merchantRepo) SaveCounters(_ context.Context, m *mainmodel.Merchant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	cur, ok := st.merchants[m.MerchantID]
	if !ok {
		return constant.ErrMerchantNotFound
	}
	cur.FeesDue = m.FeesDue
	cur.MonthlyVolumeUsed = m.MonthlyVolumeUsed
	cur.MonthlyTransactions = m.MonthlyTransactions
	cur.MainnetVolumeUsed = m.MainnetVolumeUsed
	cur.MainnetTransactions = m.MainnetTransactions
	cur.TestnetVolumeUsed = m.TestnetVolumeUsed
	cur.TestnetTransactions = m.TestnetTransactions
	cur.BillingCycleStart = m.BillingCycleStart
	put(r.s, merchantsOf, "merchant", m.MerchantID, cur)
	return nil
}

func (r *merchantRepo) ActiveWallet(_ context.Context, merchantID uint64, chain string) (*mainmodel.MerchantWallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *mainmodel.MerchantWallet
	for _, w := range r.s.state().wallets {
		if w.MerchantID != merchantID || w.Chain != chain || !w.IsActive {
			continue
		}
		if best == nil || w.ID < best.ID {
			c := w
			best = &c
		}
	}
	return best, nil
}

func (r *merchantRepo) WatchedAddresses(_ context.Context, chain string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, w := range r.s.state().wallets {
		if w.Chain != chain || !w.IsActive {
			continue
		}
		k := strings.ToLower(w.Address)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, w.Address)
	}
	sort.Strings(out)
	return out, nil
}
