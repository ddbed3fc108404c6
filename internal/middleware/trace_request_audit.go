package middleware

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stablepay-api/internal/logger"
)

const (
	ctxTraceID    = "trace_id"
	ctxMerchantID = "merchant_id"

	HeaderTraceID    = "X-Trace-ID"
	HeaderMerchantID = "X-Merchant-Id"
)

// TraceID 当前请求的追踪号，未经过 TraceAudit 时为空
func TraceID(c *gin.Context) string {
	return c.GetString(ctxTraceID)
}

// MerchantID 调用方声明的商户，0 表示平台
func MerchantID(c *gin.Context) uint64 {
	v, ok := c.Get(ctxMerchantID)
	if !ok {
		return 0
	}
	id, _ := v.(uint64)
	return id
}

// bodyWriter 复制一份响应体用于审计
type bodyWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w bodyWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// TraceAudit 生成追踪号并在请求结束后写审计日志；上游传了 X-Trace-ID 则沿用
func TraceAudit() gin.HandlerFunc {
	return TraceAuditWith(logger.WriteAuditLog)
}

func TraceAuditWith(write func(*logger.AuditEntry)) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" || len(traceID) > 64 {
			traceID = uuid.New().String()
		}
		c.Set(ctxTraceID, traceID)
		c.Writer.Header().Set(HeaderTraceID, traceID)

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
		}
		w := bodyWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = w

		start := time.Now()
		c.Next()

		entry := &logger.AuditEntry{
			TraceID:      traceID,
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			IP:           c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			RequestBody:  string(reqBody),
			ResponseBody: w.buf.String(),
			Status:       c.Writer.Status(),
			LatencyMs:    time.Since(start).Milliseconds(),
		}
		if id := MerchantID(c); id != 0 {
			entry.MerchantID = strconv.FormatUint(id, 10)
		}
		write(entry)
	}
}
