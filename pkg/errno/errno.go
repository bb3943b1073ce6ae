package errno

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定错误在哪个阶段抛出
type Kind int

const (
	KindInternal     Kind = iota
	KindSyntax            // 输入格式错误，在与设备交互之前抛出
	KindEncoding          // 编码内部约束被破坏 (字段超出声明宽度等)
	KindProtocol          // 设备返回的数据格式正确但语义非法
	KindDeviceStatus      // 设备返回了失败的状态字
	KindTransport         // 传输层错误，原样透传
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindEncoding:
		return "encoding"
	case KindProtocol:
		return "protocol"
	case KindDeviceStatus:
		return "device_status"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Errno defines the error code logic
type Errno struct {
	Kind    Kind
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Error 在 Errno 之上附加出错字段与底层原因
type Error struct {
	Errno
	Field  string
	Detail string
	Err    error
}

// Wrap 用上下文包装一个基础错误
func Wrap(base Errno, field string, cause error) *Error {
	return &Error{Errno: base, Field: field, Err: cause}
}

// Newf 创建带格式化说明的错误
func Newf(base Errno, field string, format string, args ...interface{}) *Error {
	return &Error{Errno: base, Field: field, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, errno.ErrXxx) 按错误码匹配
func (e *Error) Is(target error) bool {
	return matchCode(e.Code, target)
}

func matchCode(code int, target error) bool {
	switch t := target.(type) {
	case Errno:
		return t.Code == code
	case *Errno:
		return t.Code == code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var detailed *Error
	if errors.As(err, &detailed) {
		return detailed.Code, detailed.Error()
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code, status.Error()
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// KindOf 返回错误所属分类，无法识别时返回 KindInternal
func KindOf(err error) Kind {
	var detailed *Error
	if errors.As(err, &detailed) {
		return detailed.Kind
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Kind
	}
	var plain Errno
	if errors.As(err, &plain) {
		return plain.Kind
	}
	return KindInternal
}

// Common Errors
var (
	OK                  = Errno{Kind: KindInternal, Code: 0, Message: "Success"}
	InternalServerError = Errno{Kind: KindInternal, Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Kind: KindSyntax, Code: 10002, Message: "Error occurred while binding the request body to the struct"}
)

// Syntax Errors (20100+)
var (
	ErrInvalidPathSyntax = Errno{Kind: KindSyntax, Code: 20101, Message: "invalid derivation path syntax"}
	ErrMalformedEncoding = Errno{Kind: KindSyntax, Code: 20102, Message: "malformed transaction encoding"}
	ErrInvalidInput      = Errno{Kind: KindSyntax, Code: 20103, Message: "invalid input"}
)

// Encoding Errors (20200+)
var (
	ErrFieldOverflow = Errno{Kind: KindEncoding, Code: 20201, Message: "field exceeds declared width"}
	ErrChunkSize     = Errno{Kind: KindEncoding, Code: 20202, Message: "invalid chunk size"}
	ErrEmptySequence = Errno{Kind: KindEncoding, Code: 20203, Message: "empty command sequence"}
)

// Protocol Errors (20300+)
var (
	ErrUnexpectedKeyLength      = Errno{Kind: KindProtocol, Code: 20301, Message: "unexpected public key length"}
	ErrIllegalRecoveryTag       = Errno{Kind: KindProtocol, Code: 20302, Message: "illegal recovery tag"}
	ErrUnexpectedResponseLength = Errno{Kind: KindProtocol, Code: 20303, Message: "unexpected response length"}
	ErrInvalidPublicKey         = Errno{Kind: KindProtocol, Code: 20304, Message: "invalid public key"}
	ErrAddressMismatch          = Errno{Kind: KindProtocol, Code: 20305, Message: "address does not match public key"}
	ErrMalformedResponse        = Errno{Kind: KindProtocol, Code: 20306, Message: "malformed response apdu"}
)

// Transport Errors (20500+)
var (
	ErrTransport   = Errno{Kind: KindTransport, Code: 20501, Message: "transport error"}
	ErrSessionBusy = Errno{Kind: KindTransport, Code: 20502, Message: "device session busy"}
)
