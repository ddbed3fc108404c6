package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/logger"
	"stablepay-api/internal/ratelimit"
	"stablepay-api/internal/utils"
	"stablepay-api/internal/utils/timeutil"
)

// RateLimit 按商户（或匿名 IP）固定窗口限流，须挂在 AuthHMAC 之后
func RateLimit(l *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := l.Check(c.Request.Context(), MerchantID(c), utils.GetRealClientIP(c))
		h := c.Writer.Header()
		if d.Limit > 0 {
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}
		if d.Allowed {
			c.Next()
			return
		}

		retry := int(math.Ceil(d.RetryAfter(timeutil.NowUTC()).Seconds()))
		if retry < 1 {
			retry = 1
		}
		h.Set("Retry-After", strconv.Itoa(retry))
		logger.L.WithFields(logrus.Fields{"key": d.Key, "limit": d.Limit}).Warn("[RATELIMIT] rejected")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, utils.ErrorWithTrace(constant.CodeRateLimit, TraceID(c)))
	}
}
