package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stablepay-api/internal/constant"
	mainmodel "stablepay-api/internal/model/main"
)

type webhookRepo struct{ s *Store }

func cloneLog(l mainmodel.WebhookLog) mainmodel.WebhookLog {
	l.DeliveredAt = copyTime(l.DeliveredAt)
	l.NextRetryAt = copyTime(l.NextRetryAt)
	return l
}

func (r *webhookRepo) Create(_ context.Context, l *mainmodel.WebhookLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	if _, ok := st.webhooks[l.ID]; ok {
		return fmt.Errorf("webhook log %d already exists", l.ID)
	}
	put(r.s, webhooksOf, "webhook", l.ID, cloneLog(*l))
	return nil
}

func (r *webhookRepo) Get(_ context.Context, id uint64) (*mainmodel.WebhookLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.state().webhooks[id]
	if !ok {
		return nil, nil
	}
	out := cloneLog(l)
	return &out, nil
}

func (r *webhookRepo) RecordAttempt(_ context.Context, l *mainmodel.WebhookLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	cur, ok := st.webhooks[l.ID]
	if !ok {
		return constant.ErrWebhookLogNotFound
	}
	cur.HTTPStatus = l.HTTPStatus
	cur.Response = l.Response
	cur.LastError = l.LastError
	cur.Attempts = l.Attempts
	cur.DeliveredAt = copyTime(l.DeliveredAt)
	cur.NextRetryAt = copyTime(l.NextRetryAt)
	cur.UpdatedAt = l.UpdatedAt
	put(r.s, webhooksOf, "webhook", l.ID, cur)
	return nil
}

func (r *webhookRepo) ListDue(_ context.Context, now time.Time, maxAttempts, limit int) ([]mainmodel.WebhookLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []mainmodel.WebhookLog
	for _, l := range r.s.state().webhooks {
		if l.DeliveredAt != nil || l.NextRetryAt == nil || l.NextRetryAt.After(now) || l.Attempts > maxAttempts {
			continue
		}
		out = append(out, cloneLog(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRetryAt.Before(*out[j].NextRetryAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *webhookRepo) Claim(_ context.Context, id uint64, prev time.Time, lease time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	l, ok := st.webhooks[id]
	if !ok || l.DeliveredAt != nil || l.NextRetryAt == nil || !l.NextRetryAt.Equal(prev) {
		return false, nil
	}
	l.NextRetryAt = &lease
	put(r.s, webhooksOf, "webhook", id, l)
	return true, nil
}
