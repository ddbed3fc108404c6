package event

import (
	"context"
	"strings"
)

// Type webhook 事件名
type Type string

const (
	OrderCreated    Type = "order.created"
	OrderConfirmed  Type = "order.confirmed"
	OrderExpired    Type = "order.expired"
	RefundRequested Type = "refund.requested"
	RefundProcessed Type = "refund.processed"
	WebhookTest     Type = "webhook.test"
)

// All 商户可订阅的事件
var All = []Type{OrderCreated, OrderConfirmed, OrderExpired, RefundRequested, RefundProcessed}

func (t Type) Valid() bool {
	for _, e := range All {
		if e == t {
			return true
		}
	}
	return t == WebhookTest
}

// Subscribed subscriptions 为逗号分隔列表，空表示订阅全部，支持 "*" 与 "order.*"
func Subscribed(subscriptions string, t Type) bool {
	subscriptions = strings.TrimSpace(subscriptions)
	if subscriptions == "" {
		return true
	}
	for _, s := range strings.Split(subscriptions, ",") {
		s = strings.TrimSpace(s)
		switch {
		case s == "*" || s == string(t):
			return true
		case strings.HasSuffix(s, ".*") && strings.HasPrefix(string(t), strings.TrimSuffix(s, "*")):
			return true
		}
	}
	return false
}

// Publisher 业务流程通过它触发 webhook，不阻塞、不返回投递错误
type Publisher interface {
	Publish(ctx context.Context, merchantID uint64, t Type, data any)
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, uint64, Type, any) {}
