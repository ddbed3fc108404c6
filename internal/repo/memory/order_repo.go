package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"stablepay-api/internal/constant"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/repo"
)

type orderRepo struct{ s *Store }

func cloneOrder(o ordermodel.Order) ordermodel.Order {
	o.MerchantID = copyID(o.MerchantID)
	o.FeePercent = copyDec(o.FeePercent)
	o.FeeAmount = copyDec(o.FeeAmount)
	o.PaidAt = copyTime(o.PaidAt)
	o.ConfirmedAt = copyTime(o.ConfirmedAt)
	return o
}

func (r *orderRepo) Create(_ context.Context, o *ordermodel.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	if _, ok := st.orders[o.OrderID]; ok {
		return fmt.Errorf("order %d already exists", o.OrderID)
	}
	put(r.s, ordersOf, "order", o.OrderID, cloneOrder(*o))
	return nil
}

func (r *orderRepo) Get(_ context.Context, id uint64) (*ordermodel.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.state().orders[id]
	if !ok {
		return nil, nil
	}
	out := cloneOrder(o)
	return &out, nil
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id uint64) (*ordermodel.Order, error) {
	return r.Get(ctx, id)
}

func (r *orderRepo) Transition(_ context.Context, id uint64, ch ordermodel.StatusChange) error {
	if !ordermodel.CanTransition(ch.From, ch.To) {
		return constant.ErrOrderStatusInvalid
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	o, ok := st.orders[id]
	if !ok {
		return constant.ErrOrderNotFound
	}
	if o.Status != ch.From {
		return constant.ErrOrderStatusInvalid
	}
	o.Status = ch.To
	o.UpdatedAt = ch.At
	if ch.TxHash != "" {
		o.TxHash = ch.TxHash
	}
	if ch.FeePercent != nil {
		o.FeePercent = copyDec(ch.FeePercent)
	}
	if ch.FeeAmount != nil {
		o.FeeAmount = copyDec(ch.FeeAmount)
	}
	at := ch.At
	switch ch.To {
	case ordermodel.StatusPaid:
		o.PaidAt = &at
	case ordermodel.StatusConfirmed:
		o.ConfirmedAt = &at
	}
	put(r.s, ordersOf, "order", id, o)
	return nil
}

func (r *orderRepo) FindPendingMatch(_ context.Context, q repo.MatchQuery) (*ordermodel.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	claimed := claimedOrders(st)
	var best *ordermodel.Order
	for _, o := range st.orders {
		if o.Status != ordermodel.StatusPending || o.Chain != q.Chain {
			continue
		}
		if _, ok := claimed[o.OrderID]; ok {
			continue
		}
		if !strings.EqualFold(o.PaymentAddress, q.Address) {
			continue
		}
		if o.Amount.LessThan(q.Min) || o.Amount.GreaterThan(q.Max) {
			continue
		}
		if !q.Now.Before(o.ExpiresAt) {
			continue
		}
		if best == nil || o.CreatedAt.Before(best.CreatedAt) ||
			(o.CreatedAt.Equal(best.CreatedAt) && o.OrderID < best.OrderID) {
			c := cloneOrder(o)
			best = &c
		}
	}
	return best, nil
}

func (r *orderRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]ordermodel.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	claimed := claimedOrders(st)
	var out []ordermodel.Order
	for _, o := range st.orders {
		if o.Status != ordermodel.StatusPending || now.Before(o.ExpiresAt) {
			continue
		}
		if _, ok := claimed[o.OrderID]; ok {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// claimedOrders 已关联未失败交易的订单
func claimedOrders(st *state) map[uint64]struct{} {
	claimed := make(map[uint64]struct{})
	for _, t := range st.txs {
		if t.Matched() && t.Status != ordermodel.TxFailed {
			claimed[*t.OrderID] = struct{}{}
		}
	}
	return claimed
}
