package utils

import (
	"strconv"
	"time"
)

// ParseTimestamp 毫秒时间戳字符串
func ParseTimestamp(tsStr string) (time.Time, error) {
	ms, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// IsTimestampValid 请求时间与当前时间相差不超过 window（允许少量时钟偏差）
func IsTimestampValid(ts, now time.Time, window time.Duration) bool {
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}
