package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/dto"
	"stablepay-api/internal/event"
	"stablepay-api/internal/idgen"
	"stablepay-api/internal/logger"
	mainmodel "stablepay-api/internal/model/main"
	"stablepay-api/internal/notify"
	"stablepay-api/internal/repo"
	"stablepay-api/internal/utils"
	"stablepay-api/internal/utils/timeutil"
)

// Dispatcher 先落库再投递：日志写入后交给队列 worker，失败的由 ProcessRetries 按计划重试
type Dispatcher struct {
	store   repo.Store
	ids     idgen.Generator
	sender  *Sender
	queue   Queue
	alerter notify.Alerter

	now           func() time.Time
	lease         time.Duration
	batchSize     int
	concurrency   int
	retryInterval time.Duration
}

var _ event.Publisher = (*Dispatcher)(nil)

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithAlerter(a notify.Alerter) Option {
	return func(d *Dispatcher) { d.alerter = a }
}

// WithLease 投递中的日志在 lease 内不会被重试任务再次领取
func WithLease(lease time.Duration) Option {
	return func(d *Dispatcher) {
		if lease > 0 {
			d.lease = lease
		}
	}
}

func WithBatch(batchSize, concurrency int) Option {
	return func(d *Dispatcher) {
		if batchSize > 0 {
			d.batchSize = batchSize
		}
		if concurrency > 0 {
			d.concurrency = concurrency
		}
	}
}

func WithRetryInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.retryInterval = interval
		}
	}
}

func NewDispatcher(store repo.Store, ids idgen.Generator, sender *Sender, queue Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:         store,
		ids:           ids,
		sender:        sender,
		queue:         queue,
		alerter:       notify.NopAlerter{},
		now:           timeutil.NowUTC,
		lease:         90 * time.Second,
		batchSize:     100,
		concurrency:   8,
		retryInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish 业务流程的出口，错误只记日志
func (d *Dispatcher) Publish(ctx context.Context, merchantID uint64, t event.Type, data any) {
	if merchantID == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := d.Send(ctx, merchantID, t, data); err != nil {
		logger.L.WithFields(logrus.Fields{
			"merchant_id": merchantID,
			"event":       t,
		}).Errorf("[WEBHOOK] publish failed: %v", err)
	}
}

// Send 商户未开启或未订阅时返回 (nil, nil)；否则写入 attempts=1 的日志并入队
func (d *Dispatcher) Send(ctx context.Context, merchantID uint64, t event.Type, data any) (*mainmodel.WebhookLog, error) {
	m, err := d.store.Merchants().Get(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load merchant %d: %w", merchantID, err)
	}
	if m == nil {
		return nil, constant.ErrMerchantNotFound
	}
	if !m.WebhookEnabled || strings.TrimSpace(m.WebhookURL) == "" || m.WebhookSecret == "" {
		return nil, nil
	}
	if !event.Subscribed(m.WebhookEvents, t) {
		return nil, nil
	}

	l, err := d.record(ctx, m, t, data)
	if err != nil {
		return nil, err
	}
	if err := d.queue.Enqueue(ctx, l.ID); err != nil {
		// 日志已落库，lease 到期后由重试任务接手
		logger.L.WithField("webhook_id", l.ID).Warnf("[WEBHOOK] enqueue failed: %v", err)
	}
	return l, nil
}

// SendTest 忽略订阅与开关，同步投递一次 webhook.test
func (d *Dispatcher) SendTest(ctx context.Context, merchantID uint64) (*mainmodel.WebhookLog, error) {
	m, err := d.store.Merchants().Get(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load merchant %d: %w", merchantID, err)
	}
	if m == nil {
		return nil, constant.ErrMerchantNotFound
	}
	if strings.TrimSpace(m.WebhookURL) == "" || m.WebhookSecret == "" {
		return nil, constant.ErrWebhookNotConfigured
	}

	l, err := d.record(ctx, m, event.WebhookTest, map[string]string{
		"merchantId": strconv.FormatUint(merchantID, 10),
		"message":    "webhook test",
	})
	if err != nil {
		return nil, err
	}
	if err := d.Deliver(ctx, l.ID); err != nil {
		return nil, err
	}
	return d.store.WebhookLogs().Get(ctx, l.ID)
}

func (d *Dispatcher) record(ctx context.Context, m *mainmodel.Merchant, t event.Type, data any) (*mainmodel.WebhookLog, error) {
	now := d.now()
	body, err := json.Marshal(dto.WebhookPayload{
		Event:     string(t),
		Timestamp: timeutil.FormatISO8601(now),
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	lease := now.Add(d.lease)
	l := &mainmodel.WebhookLog{
		ID:          d.ids.NextID(),
		MerchantID:  m.MerchantID,
		Event:       string(t),
		Payload:     string(body),
		Signature:   utils.SignHMAC(body, m.WebhookSecret),
		URL:         m.WebhookURL,
		Attempts:    1,
		NextRetryAt: &lease,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.store.WebhookLogs().Create(ctx, l); err != nil {
		return nil, fmt.Errorf("persist webhook log: %w", err)
	}
	logger.L.WithFields(logrus.Fields{
		"webhook_id":  l.ID,
		"merchant_id": m.MerchantID,
		"event":       t,
	}).Info("[WEBHOOK] queued")
	return l, nil
}

// Deliver 领取并投递一次，已成功或已永久失败的日志直接跳过
func (d *Dispatcher) Deliver(ctx context.Context, id uint64) error {
	logs := d.store.WebhookLogs()
	l, err := logs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load webhook log %d: %w", id, err)
	}
	if l == nil {
		return constant.ErrWebhookLogNotFound
	}
	if l.Delivered() || l.PermanentlyFailed() || l.Attempts > MaxRetries {
		return nil
	}

	lease := d.now().Add(d.lease)
	ok, err := logs.Claim(ctx, l.ID, *l.NextRetryAt, lease)
	if err != nil {
		return fmt.Errorf("claim webhook log %d: %w", id, err)
	}
	if !ok {
		return nil
	}

	res := d.sender.Post(ctx, l)
	permanent := applyResult(l, res, d.now())
	if err := logs.RecordAttempt(ctx, l); err != nil {
		return fmt.Errorf("record webhook attempt %d: %w", id, err)
	}

	fields := logrus.Fields{
		"webhook_id":  l.ID,
		"merchant_id": l.MerchantID,
		"event":       l.Event,
		"status":      res.StatusCode,
		"attempts":    l.Attempts,
	}
	switch {
	case res.OK():
		logger.L.WithFields(fields).Info("[WEBHOOK] delivered")
	case permanent:
		logger.L.WithFields(fields).Errorf("[WEBHOOK] permanently failed: %v", res.Err)
		d.alerter.Alert("Webhook 投递失败", map[string]string{
			"webhook_id":  strconv.FormatUint(l.ID, 10),
			"merchant_id": strconv.FormatUint(l.MerchantID, 10),
			"event":       l.Event,
			"url":         l.URL,
			"error":       l.LastError,
		})
	default:
		logger.L.WithFields(fields).Warnf("[WEBHOOK] delivery failed, next retry at %s: %v",
			timeutil.FormatISO8601(*l.NextRetryAt), res.Err)
	}
	return nil
}

// ProcessRetries 处理一批到期日志，各条独立投递，单条失败不影响其他
func (d *Dispatcher) ProcessRetries(ctx context.Context) (int, error) {
	due, err := d.store.WebhookLogs().ListDue(ctx, d.now(), MaxRetries, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due webhooks: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i := range due {
		id := due[i].ID
		g.Go(func() error {
			if err := d.Deliver(ctx, id); err != nil {
				logger.L.WithField("webhook_id", id).Errorf("[WEBHOOK] retry failed: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(due), nil
}

// Start 启动队列 worker 与重试任务，ctx 结束时退出
func (d *Dispatcher) Start(ctx context.Context) {
	go d.queue.Run(ctx, d.handle)
	go d.retryLoop(ctx)
}

func (d *Dispatcher) handle(ctx context.Context, id uint64) {
	if err := d.Deliver(ctx, id); err != nil {
		logger.L.WithField("webhook_id", id).Errorf("[WEBHOOK] deliver failed: %v", err)
	}
}

func (d *Dispatcher) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(d.retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.retryTick(ctx)
		}
	}
}

func (d *Dispatcher) retryTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.L.Errorf("[WEBHOOK] retry loop panic: %v", r)
		}
	}()
	n, err := d.ProcessRetries(ctx)
	if err != nil {
		logger.L.Errorf("[WEBHOOK] process retries: %v", err)
		return
	}
	if n > 0 {
		logger.L.Infof("[WEBHOOK] processed %d due webhooks", n)
	}
}
