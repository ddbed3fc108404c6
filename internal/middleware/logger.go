package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/logger"
)

// RequestLogger 访问日志，4xx/5xx 或 handler 记录了错误时写 error 日志
func RequestLogger() gin.HandlerFunc {
	infoLog := logger.NewLogger("info")
	errorLog := logger.NewLogger("error")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		entry := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
			"latency":    latency.String(),
			"user-agent": c.Request.UserAgent(),
			"trace_id":   TraceID(c),
		}
		if id := MerchantID(c); id != 0 {
			entry["merchant_id"] = id
		}

		switch {
		case len(c.Errors) > 0:
			errorLog.WithFields(entry).Error(c.Errors.String())
		case c.Writer.Status() >= 500:
			errorLog.WithFields(entry).Error("request failed")
		default:
			infoLog.WithFields(entry).Info("request completed")
		}
	}
}
