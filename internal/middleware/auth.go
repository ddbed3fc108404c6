package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/logger"
	"stablepay-api/internal/utils"
	"stablepay-api/internal/utils/timeutil"
)

const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// DefaultSignWindow 请求时间戳允许的偏差
const DefaultSignWindow = 5 * time.Minute

// SignRequest 内部调用方签名：HMAC-SHA256(timestamp + "\n" + merchantId + "\n" + body)
func SignRequest(secret, timestamp, merchantID string, body []byte) string {
	return utils.SignHMAC(signingPayload(timestamp, merchantID, body), secret)
}

// AuthHMAC 校验上游 CRUD 层的签名，通过后把 X-Merchant-Id 写入上下文
func AuthHMAC(secret string, window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = DefaultSignWindow
	}
	return func(c *gin.Context) {
		sig := c.GetHeader(HeaderSignature)
		tsStr := c.GetHeader(HeaderTimestamp)
		if sig == "" || tsStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorWithTrace(constant.CodeUnauthorized, TraceID(c)))
			return
		}

		// 1) 时间戳防重放
		ts, err := utils.ParseTimestamp(tsStr)
		if err != nil || !utils.IsTimestampValid(ts, timeutil.NowUTC(), window) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorWithTrace(constant.CodeTimeout, TraceID(c)))
			return
		}

		// 2) 签名
		var body []byte
		if c.Request.Body != nil {
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, utils.ErrorWithTrace(constant.CodeInvalidParams, TraceID(c)))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		merchantHeader := strings.TrimSpace(c.GetHeader(HeaderMerchantID))
		if !utils.VerifyHMAC(signingPayload(tsStr, merchantHeader, body), secret, strings.ToLower(sig)) {
			logger.L.WithFields(logrus.Fields{
				"path":     c.Request.URL.Path,
				"ip":       utils.GetRealClientIP(c),
				"trace_id": TraceID(c),
			}).Warn("[AUTH] bad signature")
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorWithTrace(constant.CodeSignatureError, TraceID(c)))
			return
		}

		// 3) 调用方身份
		if merchantHeader != "" {
			id, err := strconv.ParseUint(merchantHeader, 10, 64)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, utils.ErrorWithTrace(constant.CodeInvalidParams, TraceID(c)))
				return
			}
			c.Set(ctxMerchantID, id)
		}
		c.Next()
	}
}

func signingPayload(timestamp, merchantID string, body []byte) []byte {
	payload := make([]byte, 0, len(timestamp)+len(merchantID)+len(body)+2)
	payload = append(payload, timestamp...)
	payload = append(payload, '\n')
	payload = append(payload, merchantID...)
	payload = append(payload, '\n')
	return append(payload, body...)
}
