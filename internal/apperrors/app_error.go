package apperrors

import (
	"errors"
	"net/http"
)

// AppError 自定义错误类型。MessageID 用于 i18n，Message 是默认英文文案
type AppError struct {
	Code      int
	MessageID string
	Message   string
	Cause     error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsServerError 服务端错误需要记录完整上下文，且不能把内部信息返回给调用方
func (e *AppError) IsServerError() bool {
	return e.Code >= http.StatusInternalServerError
}

// WithCode 创建通用业务错误
func WithCode(code int, messageID, message string) *AppError {
	return &AppError{
		Code:      code,
		MessageID: messageID,
		Message:   message,
	}
}

// ClientError 封装参数校验等调用方错误
func ClientError(messageID, message string) *AppError {
	return WithCode(http.StatusBadRequest, messageID, message)
}

// ConflictError 短链已被占用
func ConflictError(messageID, message string) *AppError {
	return WithCode(http.StatusConflict, messageID, message)
}

// NotFoundError 目标短链不存在
func NotFoundError(messageID, message string) *AppError {
	return WithCode(http.StatusNotFound, messageID, message)
}

// UnauthorizedError 鉴权失败
func UnauthorizedError(messageID, message string) *AppError {
	return WithCode(http.StatusUnauthorized, messageID, message)
}

// TooManyRequestsError 公共模式下提交过于频繁
func TooManyRequestsError() *AppError {
	return WithCode(http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later.")
}

// ServerError 封装系统内部错误，cause 只用于日志
func ServerError(cause error) *AppError {
	return &AppError{
		Code:      http.StatusInternalServerError,
		MessageID: "server_error",
		Message:   "Something went wrong!",
		Cause:     cause,
	}
}

// From 把任意错误转换为 AppError，未知错误一律视为服务端错误
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ServerError(err)
}
