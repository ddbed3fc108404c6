package utils

import (
	"context"
	"fmt"
	"time"

	"stablepay-api/internal/logger"
)

// DoWithRetry 执行带重试逻辑的函数，tag 用于日志定位
func DoWithRetry(ctx context.Context, tag string, maxRetries int, interval time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		logger.L.Warnf("[RETRY] %s 第 %d/%d 次失败: %v", tag, attempt, maxRetries, err)

		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("上下文已取消或超时: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
	return err
}
