package timeutil

import (
	"time"
)

// NowUTC 返回当前 UTC 时间
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FormatISO8601 webhook 报文时间戳，毫秒精度 (2025-10-03T06:45:21.123Z)
func FormatISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ParseISO8601 解析 ISO8601 / RFC3339 时间字符串
func ParseISO8601(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// DaysBetween from 到 to 经过的整天数
func DaysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / (24 * time.Hour))
}
