// Package errors 中继的错误码与错误类型
//
// 所有错误都可以用 errors.Is / errors.As 判断，Is 按错误码比较，
// 因此包装后的错误仍能与哨兵错误匹配。
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 请求错误
	CodeInvalidParam  ErrorCode = "INVALID_PARAM"
	CodeMissingParam  ErrorCode = "MISSING_PARAM"
	CodeNotConfigured ErrorCode = "NOT_CONFIGURED"
	CodeInvalidState  ErrorCode = "INVALID_STATE"
	CodeConfigError   ErrorCode = "CONFIG_ERROR"

	// 会话状态
	CodeAlreadyConnected ErrorCode = "ALREADY_CONNECTED"
	CodeNotConnected     ErrorCode = "NOT_CONNECTED"

	// 连接/协议错误
	CodeConnectionError ErrorCode = "CONNECTION_ERROR"
	CodeHandshakeFailed ErrorCode = "HANDSHAKE_FAILED"
	CodeProtocolError   ErrorCode = "PROTOCOL_ERROR"
	CodeDeliveryFailed  ErrorCode = "DELIVERY_FAILED"

	// 系统错误
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeServiceClosed ErrorCode = "SERVICE_CLOSED"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// Error 统一错误类型
type Error struct {
	Code    ErrorCode // 错误码
	Message string    // 错误消息
	Cause   error     // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Detail 不带错误码前缀的可读描述，用于发给下游客户端
func (e *Error) Detail() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// New 创建新错误
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf 创建格式化错误
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf 格式化包装错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// GetCode 提取错误码，非 *Error 返回 CodeInternal
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode 检查错误链中是否有指定错误码
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Is 重导出 errors.Is
var Is = errors.Is

// As 重导出 errors.As
var As = errors.As
