package constant

import (
	"errors"
	"fmt"
)

// Error 错误接口
type Error interface {
	error
	Code() int
	Message() string
	MessageEN() string
	Data() interface{}
	WithData(data interface{}) Error
}

// CustomError 自定义错误实现
type CustomError struct {
	code      int
	message   string
	messageEN string
	data      interface{}
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("code: %d, message: %s", e.code, e.messageEN)
}

func (e *CustomError) Code() int {
	return e.code
}

func (e *CustomError) Message() string {
	return e.message
}

func (e *CustomError) MessageEN() string {
	return e.messageEN
}

func (e *CustomError) Data() interface{} {
	return e.data
}

// WithData 返回携带附加数据的副本，不修改包级错误变量
func (e *CustomError) WithData(data interface{}) Error {
	cp := *e
	cp.data = data
	return &cp
}

// Is 按错误码比较，使 errors.Is 可以穿透 fmt.Errorf("%w") 包装
func (e *CustomError) Is(target error) bool {
	t, ok := target.(Error)
	if !ok {
		return false
	}
	return t.Code() == e.code
}

// NewError 创建错误
func NewError(code int) Error {
	if info, exists := ErrorMessages[code]; exists {
		return &CustomError{code: code, message: info.CN, messageEN: info.EN}
	}
	return &CustomError{code: code, message: "未知错误", messageEN: "Unknown error"}
}

// GetErrorInfo 获取错误信息
func GetErrorInfo(code int) (ErrorInfo, bool) {
	info, exists := ErrorMessages[code]
	return info, exists
}

// CodeOf 提取错误码，非业务错误统一视为系统错误
func CodeOf(err error) int {
	if err == nil {
		return CodeSuccess
	}
	var e Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return CodeSystemError
}
