package rediskey

import (
	"fmt"

	"stablepay-api/internal/config"
)

func prefix() string {
	if p := config.C.Redis.Prefix; p != "" {
		return p
	}
	return "stablepay"
}

// RateLimit 固定窗口计数 key，windowStart 为窗口起点 unix 秒
func RateLimit(subject string, windowStart int64) string {
	return fmt.Sprintf("%s:ratelimit:%s:%d", prefix(), subject, windowStart)
}

// ScanLock 单链扫块锁
func ScanLock(chain string) string {
	return fmt.Sprintf("%s:scanner:lock:%s", prefix(), chain)
}
