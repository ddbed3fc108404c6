package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/logger"
	"stablepay-api/internal/middleware"
	"stablepay-api/internal/utils"
)

// httpStatus 业务错误码对应的 HTTP 状态
func httpStatus(code int) int {
	switch code {
	case constant.CodeSuccess:
		return http.StatusOK
	case constant.CodeInvalidParams, constant.CodeMissingParams, constant.CodeParamsFormatError,
		constant.CodeParamsRangeError, constant.CodeOrderAmountInvalid, constant.CodeChainNotSupported,
		constant.CodeRefundAmountExceeded, constant.CodeRefundWindowClosed, constant.CodeWebhookNotConfigured:
		return http.StatusBadRequest
	case constant.CodeUnauthorized, constant.CodeSignatureError:
		return http.StatusUnauthorized
	case constant.CodeAccessDenied, constant.CodeMerchantSuspended, constant.CodeMerchantLimitReached:
		return http.StatusForbidden
	case constant.CodeMerchantNotFound, constant.CodeOrderNotFound, constant.CodeRefundNotFound,
		constant.CodeWalletNotFound, constant.CodeWebhookLogNotFound:
		return http.StatusNotFound
	case constant.CodeOrderStatusInvalid, constant.CodeOrderExpired, constant.CodeTxHashConflict,
		constant.CodeRefundStatusInvalid, constant.CodeRefundOrderInvalid:
		return http.StatusConflict
	case constant.CodeRateLimit:
		return http.StatusTooManyRequests
	case constant.CodeChainUnavailable, constant.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, data interface{}) {
	r := utils.Success(data)
	r.TraceID = middleware.TraceID(c)
	c.JSON(http.StatusOK, r)
}

// fail 业务错误原样带出；其余错误记日志后统一返回系统错误
func fail(c *gin.Context, err error) {
	code := constant.CodeOf(err)
	status := httpStatus(code)
	if status == http.StatusInternalServerError {
		logger.L.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"trace_id": middleware.TraceID(c),
		}).Errorf("[HTTP] request failed: %v", err)
		_ = c.Error(err)
	}
	c.JSON(status, utils.ErrorFrom(err, middleware.TraceID(c)))
}

// bindJSON 绑定失败时已写响应；optional 为 true 时允许空 body
func bindJSON(c *gin.Context, req interface{}, optional bool) bool {
	err := c.ShouldBindJSON(req)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]map[string]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, map[string]string{
				"field": fe.Field(),
				"error": utils.ValidationMsg(fe),
			})
		}
		r := utils.ErrorWithData(constant.CodeInvalidParams, fields)
		r.TraceID = middleware.TraceID(c)
		c.JSON(http.StatusBadRequest, r)
		return false
	}
	c.JSON(http.StatusBadRequest, utils.ErrorWithTrace(constant.CodeParamsFormatError, middleware.TraceID(c)))
	return false
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, utils.ErrorWithTrace(constant.CodeInvalidParams, middleware.TraceID(c)))
		return 0, false
	}
	return id, true
}

// actorFor 请求头声明的商户优先；body 里的商户与请求头不一致时拒绝
func actorFor(c *gin.Context, declared uint64) (uint64, error) {
	header := middleware.MerchantID(c)
	switch {
	case header == 0:
		return declared, nil
	case declared == 0 || declared == header:
		return header, nil
	default:
		return 0, constant.ErrAccessDenied
	}
}

// ownedBy 请求头带了商户时，资源必须属于该商户
func ownedBy(c *gin.Context, merchantID *uint64) bool {
	header := middleware.MerchantID(c)
	if header == 0 {
		return true
	}
	return merchantID != nil && *merchantID == header
}
