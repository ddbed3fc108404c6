package webhook

import (
	"time"

	mainmodel "stablepay-api/internal/model/main"
)

// MaxRetries 单条 webhook 最多投递次数
const MaxRetries = 5

// RetryDelays 第 n 次失败后等待 RetryDelays[n-1] 再重试
var RetryDelays = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	2 * time.Hour,
}

// applyResult 把一次投递结果写回日志，返回是否已永久失败
func applyResult(l *mainmodel.WebhookLog, res Result, now time.Time) bool {
	l.HTTPStatus = res.StatusCode
	l.Response = res.Body
	l.UpdatedAt = now
	if res.Err != nil {
		l.LastError = truncate(res.Err.Error(), 512)
	} else {
		l.LastError = ""
	}

	if res.OK() {
		t := now
		l.DeliveredAt = &t
		l.NextRetryAt = nil
		return false
	}

	if l.Attempts < MaxRetries {
		next := now.Add(RetryDelays[l.Attempts-1])
		l.NextRetryAt = &next
		l.Attempts++
		return false
	}
	l.NextRetryAt = nil
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
