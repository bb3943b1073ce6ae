package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"ledger-core/pkg/bip32"
	"ledger-core/pkg/errno"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var once sync.Once

// Init 在 gin 的默认校验器上注册自定义规则
//
//	bip32path: 可解析的派生路径，如 m/44'/818'/0'/0/0
func Init() {
	once.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("bip32path", validatePath)
		}
	})
}

func validatePath(fl validator.FieldLevel) bool {
	_, err := bip32.ParsePath(fl.Field().String())
	return err == nil
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "请求参数错误"
	}

	errMsgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 长度至少为 %s", field, param))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 长度不能超过 %s", field, param))
		case "bip32path":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不是合法的派生路径", field))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, e.Tag()))
		}
	}
	return strings.Join(errMsgs, "; ")
}

// BindError 把绑定/校验失败转换为 ErrBind，JSON 语法错误保留原始信息
func BindError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return errno.Newf(errno.ErrBind, "", "%s", GetErrorMsg(err))
	}
	return errno.Wrap(errno.ErrBind, "", err)
}
