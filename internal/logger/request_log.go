package logger

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// AuditEntry 一次请求的审计记录
type AuditEntry struct {
	TraceID      string
	Method       string
	Path         string
	MerchantID   string
	IP           string
	UserAgent    string
	RequestBody  string
	ResponseBody string
	Status       int
	LatencyMs    int64
}

var (
	auditOnce sync.Once
	auditLog  *logrus.Logger
)

// WriteAuditLog 写入请求审计日志（./logs/audit）
func WriteAuditLog(e *AuditEntry) {
	if e == nil {
		L.Warn("[AuditLogger] entry 为空，跳过写入")
		return
	}
	auditOnce.Do(func() { auditLog = NewLogger("audit") })
	auditLog.WithFields(logrus.Fields{
		"trace_id":    e.TraceID,
		"method":      e.Method,
		"path":        e.Path,
		"merchant_id": e.MerchantID,
		"ip":          e.IP,
		"user_agent":  e.UserAgent,
		"status":      e.Status,
		"latency_ms":  e.LatencyMs,
		"request":     truncate(e.RequestBody, 2000),
		"response":    truncate(e.ResponseBody, 2000),
	}).Info("request audit")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
