package webhook

import (
	"context"
	"errors"
	"sync"

	"stablepay-api/internal/logger"
)

// ErrQueueFull 本地队列已满，日志留给重试任务处理
var ErrQueueFull = errors.New("webhook queue full")

// Queue 待投递日志 ID 的交接队列
type Queue interface {
	Enqueue(ctx context.Context, id uint64) error
	// Run 阻塞消费直到 ctx 结束
	Run(ctx context.Context, handle func(ctx context.Context, id uint64))
}

// LocalQueue 进程内队列：带缓冲 channel + 固定数量 worker
type LocalQueue struct {
	ch      chan uint64
	workers int
}

func NewLocalQueue(size, workers int) *LocalQueue {
	if size <= 0 {
		size = 1024
	}
	if workers <= 0 {
		workers = 4
	}
	return &LocalQueue{ch: make(chan uint64, size), workers: workers}
}

func (q *LocalQueue) Enqueue(ctx context.Context, id uint64) error {
	select {
	case q.ch <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *LocalQueue) Run(ctx context.Context, handle func(ctx context.Context, id uint64)) {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-q.ch:
					q.safeHandle(ctx, worker, id, handle)
				}
			}
		}(i)
	}
	wg.Wait()
}

func (q *LocalQueue) safeHandle(ctx context.Context, worker int, id uint64, handle func(ctx context.Context, id uint64)) {
	defer func() {
		if r := recover(); r != nil {
			logger.L.Errorf("[WEBHOOK] worker %d panic on log %d: %v", worker, id, r)
		}
	}()
	handle(ctx, id)
}
