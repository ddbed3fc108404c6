package utils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationMsg 把 binding 校验失败转成可读提示
func ValidationMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "不能为空"
	case "max":
		return fmt.Sprintf("不能超过 %s", fe.Param())
	case "min":
		return fmt.Sprintf("不能小于 %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("必须是 [%s] 之一", fe.Param())
	default:
		return fmt.Sprintf("校验失败 (%s)", fe.Tag())
	}
}
