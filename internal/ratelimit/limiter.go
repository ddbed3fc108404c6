package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"stablepay-api/internal/logger"
	rediskey "stablepay-api/internal/types/redis-key"
)

// DefaultWindow 固定一小时窗口
const DefaultWindow = time.Hour

// Store 计数存储，返回 key 在当前窗口内自增后的值
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// LimitResolver 按商户套餐解析每窗口请求上限，<=0 表示不限
type LimitResolver interface {
	LimitFor(ctx context.Context, merchantID uint64) (int, error)
}

// Decision 限流结果，拒绝时 Allowed=false 而不是返回 error
type Decision struct {
	Allowed   bool
	Key       string
	Limit     int
	Remaining int
	ResetAt   time.Time
	// Degraded 计数存储异常时放行
	Degraded bool
}

// RetryAfter 拒绝后建议的等待时长
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.After(now) {
		return d.ResetAt.Sub(now)
	}
	return 0
}

type Limiter struct {
	store     Store
	resolver  LimitResolver
	anonLimit int
	window    time.Duration
	now       func() time.Time
}

type Option func(*Limiter)

func WithWindow(w time.Duration) Option { return func(l *Limiter) { l.window = w } }

func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

func NewLimiter(store Store, resolver LimitResolver, anonLimit int, opts ...Option) *Limiter {
	l := &Limiter{
		store:     store,
		resolver:  resolver,
		anonLimit: anonLimit,
		window:    DefaultWindow,
		now:       time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func MerchantKey(id uint64) string { return "merchant:" + strconv.FormatUint(id, 10) }

func AnonKey(ip string) string { return "anon:" + ip }

// Check merchantID 为 0 时按 IP 匿名限流
func (l *Limiter) Check(ctx context.Context, merchantID uint64, ip string) Decision {
	now := l.now()
	start := now.Truncate(l.window)
	reset := start.Add(l.window)

	key := AnonKey(ip)
	limit := l.anonLimit
	if merchantID != 0 {
		key = MerchantKey(merchantID)
		if l.resolver != nil {
			v, err := l.resolver.LimitFor(ctx, merchantID)
			if err != nil {
				logger.L.WithFields(logrus.Fields{"key": key}).WithError(err).Warn("[RATELIMIT] resolve limit failed, allowing request")
				return Decision{Allowed: true, Key: key, ResetAt: reset, Degraded: true}
			}
			limit = v
		}
	}
	if limit <= 0 {
		return Decision{Allowed: true, Key: key, Limit: 0, Remaining: -1, ResetAt: reset}
	}

	count, err := l.store.Incr(ctx, rediskey.RateLimit(key, start.Unix()), l.window)
	if err != nil {
		logger.L.WithFields(logrus.Fields{"key": key}).WithError(err).Warn("[RATELIMIT] store error, allowing request")
		return Decision{Allowed: true, Key: key, Limit: limit, Remaining: limit, ResetAt: reset, Degraded: true}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Key:       key,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   reset,
	}
}
