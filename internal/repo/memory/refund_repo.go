package memory

import (
	"context"
	"fmt"
	"sort"

	"stablepay-api/internal/constant"
	ordermodel "stablepay-api/internal/model/order"
)

type refundRepo struct{ s *Store }

func cloneRefund(r ordermodel.Refund) ordermodel.Refund {
	r.MerchantID = copyID(r.MerchantID)
	r.ProcessedAt = copyTime(r.ProcessedAt)
	return r
}

func (r *refundRepo) Create(_ context.Context, rf *ordermodel.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	if _, ok := st.refunds[rf.ID]; ok {
		return fmt.Errorf("refund %d already exists", rf.ID)
	}
	put(r.s, refundsOf, "refund", rf.ID, cloneRefund(*rf))
	return nil
}

func (r *refundRepo) Get(_ context.Context, id uint64) (*ordermodel.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rf, ok := r.s.state().refunds[id]
	if !ok {
		return nil, nil
	}
	out := cloneRefund(rf)
	return &out, nil
}

func (r *refundRepo) GetForUpdate(ctx context.Context, id uint64) (*ordermodel.Refund, error) {
	return r.Get(ctx, id)
}

func (r *refundRepo) ListByOrder(_ context.Context, orderID uint64) ([]ordermodel.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []ordermodel.Refund
	for _, rf := range r.s.state().refunds {
		if rf.OrderID == orderID {
			out = append(out, cloneRefund(rf))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *refundRepo) UpdateStatus(_ context.Context, rf *ordermodel.Refund, from ordermodel.RefundStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	cur, ok := st.refunds[rf.ID]
	if !ok {
		return constant.ErrRefundNotFound
	}
	if cur.Status != from {
		return constant.ErrRefundStatusInvalid
	}
	cur.Status = rf.Status
	cur.RefundTxHash = rf.RefundTxHash
	cur.FeeReversed = rf.FeeReversed
	cur.ReviewedBy = rf.ReviewedBy
	cur.ProcessedAt = copyTime(rf.ProcessedAt)
	cur.UpdatedAt = rf.UpdatedAt
	put(r.s, refundsOf, "refund", rf.ID, cur)
	return nil
}
