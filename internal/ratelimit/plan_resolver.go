package ratelimit

import (
	"context"
	"strings"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/repo"
)

// PlanResolver 从商户套餐映射到每小时上限
type PlanResolver struct {
	merchants repo.MerchantRepo
	limits    map[string]int
	fallback  int
}

func NewPlanResolver(merchants repo.MerchantRepo, limits map[string]int, fallback int) *PlanResolver {
	norm := make(map[string]int, len(limits))
	for k, v := range limits {
		norm[strings.ToLower(k)] = v
	}
	return &PlanResolver{merchants: merchants, limits: norm, fallback: fallback}
}

func (r *PlanResolver) LimitFor(ctx context.Context, merchantID uint64) (int, error) {
	m, err := r.merchants.Get(ctx, merchantID)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, constant.ErrMerchantNotFound
	}
	if v, ok := r.limits[strings.ToLower(m.Plan)]; ok {
		return v, nil
	}
	return r.fallback, nil
}
