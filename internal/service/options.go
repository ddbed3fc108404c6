package service

import (
	"time"

	"github.com/shopspring/decimal"

	"stablepay-api/internal/config"
	"stablepay-api/internal/utils/timeutil"
)

type options struct {
	now              func() time.Time
	defaultExpiry    time.Duration
	billingCycleDays int
	freeVolumeCap    decimal.Decimal
	freeTxCap        int64
	refundMaxAge     time.Duration
	autoApproveLimit decimal.Decimal
}

// Option 服务公共配置
type Option func(*options)

func defaultOptions() options {
	o := options{now: timeutil.NowUTC}
	WithConfig(config.Default())(&o)
	return o
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock 测试中注入时钟
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithConfig 从全局配置读取订单、套餐与退款参数
func WithConfig(c config.Root) Option {
	return func(o *options) {
		if c.Order.DefaultExpiryMinutes > 0 {
			o.defaultExpiry = time.Duration(c.Order.DefaultExpiryMinutes) * time.Minute
		}
		if c.Plan.BillingCycleDays > 0 {
			o.billingCycleDays = c.Plan.BillingCycleDays
		}
		if v, err := decimal.NewFromString(c.Plan.FreeMainnetVolumeCap); err == nil {
			o.freeVolumeCap = v
		}
		if c.Plan.FreeMainnetTxCap > 0 {
			o.freeTxCap = c.Plan.FreeMainnetTxCap
		}
		if c.Refund.MaxAgeDays > 0 {
			o.refundMaxAge = time.Duration(c.Refund.MaxAgeDays) * 24 * time.Hour
		}
		if v, err := decimal.NewFromString(c.Refund.AutoApproveThreshold); err == nil {
			o.autoApproveLimit = v
		}
	}
}
