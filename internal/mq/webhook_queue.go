package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"stablepay-api/internal/config"
	"stablepay-api/internal/dal"
	"stablepay-api/internal/dto"
	"stablepay-api/internal/logger"
	"stablepay-api/internal/webhook"
)

// WebhookQueue 基于 RabbitMQ 的投递队列，多实例共享 worker
type WebhookQueue struct {
	exchange string
	queue    string
	workers  int
}

var _ webhook.Queue = (*WebhookQueue)(nil)

func NewWebhookQueue(c config.RabbitCfg, workers int) *WebhookQueue {
	if workers <= 0 {
		workers = 1
	}
	return &WebhookQueue{exchange: c.Exchange, queue: c.Queue, workers: workers}
}

func (q *WebhookQueue) Enqueue(_ context.Context, id uint64) error {
	ch := dal.GetChannel()
	if ch == nil {
		return errors.New("rabbitmq channel not initialized")
	}
	body, err := json.Marshal(dto.WebhookQueueMsg{WebhookLogID: id})
	if err != nil {
		return err
	}
	err = ch.Publish(q.exchange, q.queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish webhook %d: %w", id, err)
	}
	return nil
}

// Run 每个 worker 独立消费，通道断开后等待重连再继续
func (q *WebhookQueue) Run(ctx context.Context, handle func(ctx context.Context, id uint64)) {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.loop(ctx, handle)
		}()
	}
	wg.Wait()
}

func (q *WebhookQueue) loop(ctx context.Context, handle func(ctx context.Context, id uint64)) {
	for {
		if err := q.consume(ctx, handle); err != nil {
			logger.L.Errorf("[MQ] consume %s: %v", q.queue, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func (q *WebhookQueue) consume(ctx context.Context, handle func(ctx context.Context, id uint64)) error {
	ch := dal.GetChannel()
	if ch == nil {
		return errors.New("rabbitmq channel not initialized")
	}
	msgs, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	logger.L.Infof("[MQ] consuming %s", q.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			q.handleDelivery(ctx, d, handle)
		}
	}
}

func (q *WebhookQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handle func(ctx context.Context, id uint64)) {
	defer func() {
		if r := recover(); r != nil {
			logger.L.Errorf("[MQ] webhook handler panic: %v", r)
			_ = d.Nack(false, false)
		}
	}()
	var msg dto.WebhookQueueMsg
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.WebhookLogID == 0 {
		logger.L.Errorf("[MQ] bad webhook message %q: %v", string(d.Body), err)
		_ = d.Nack(false, false)
		return
	}
	// 投递结果已写回日志，失败由重试任务接手，这里总是 ack
	handle(ctx, msg.WebhookLogID)
	_ = d.Ack(false)
}
