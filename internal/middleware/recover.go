package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/logger"
	"stablepay-api/internal/utils"
)

// Recover 捕获 handler panic，记录堆栈后统一返回系统错误
func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.L.WithFields(logrus.Fields{
					"method":   c.Request.Method,
					"path":     c.Request.URL.Path,
					"trace_id": TraceID(c),
				}).Errorf("[HTTP] panic: %v\n%s", r, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, utils.ErrorWithTrace(constant.CodeSystemError, TraceID(c)))
			}
		}()
		c.Next()
	}
}
