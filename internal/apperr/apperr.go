// Package apperr 错误分类及其 HTTP 状态码映射
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindUpstream      Kind = "upstream"
	KindConfiguration Kind = "configuration"
	KindPersistence   Kind = "persistence"
)

// Error 分类错误，Service/Status/Body/Timeout 只用于上游错误
type Error struct {
	Kind    Kind
	Message string

	Service string
	Status  int
	Body    string
	Timeout bool

	cause error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindUpstream && e.Timeout:
		return fmt.Sprintf("%s: %s timed out: %s", e.Kind, e.Service, e.Message)
	case e.Kind == KindUpstream && e.Status != 0:
		return fmt.Sprintf("%s: %s returned %d: %s", e.Kind, e.Service, e.Status, e.Message)
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Cause 让 pkg/errors 的 errors.Cause 停在分类错误上
func (e *Error) Cause() error { return e.cause }

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Configuration(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func Persistence(err error, message string) *Error {
	return &Error{Kind: KindPersistence, Message: message, cause: err}
}

// Upstream 上游返回非 2xx
func Upstream(service string, status int, message, body string) *Error {
	return &Error{Kind: KindUpstream, Service: service, Status: status, Message: message, Body: body}
}

// Unreachable 上游不可达或超时
func Unreachable(service string, err error, timeout bool) *Error {
	return &Error{Kind: KindUpstream, Service: service, Message: err.Error(), Timeout: timeout, cause: err}
}

// As 在错误链中查找 *Error，pkg/errors 的包装实现了 Unwrap
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Retryable 上游调用是否可重试
func Retryable(err error) bool {
	e, ok := As(err)
	if !ok || e.Kind != KindUpstream {
		return false
	}
	if e.Timeout || e.Status == 0 {
		return true
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// HTTPStatus 错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		switch {
		case e.Timeout:
			return http.StatusGatewayTimeout
		case e.Status == http.StatusTooManyRequests, e.Status == http.StatusServiceUnavailable:
			return e.Status
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage 返回给调用方的错误信息，内部细节只记日志
func PublicMessage(err error) string {
	e, ok := As(err)
	if !ok {
		return "internal server error"
	}
	switch e.Kind {
	case KindValidation, KindNotFound:
		return e.Message
	case KindUpstream:
		if e.Timeout {
			return fmt.Sprintf("%s did not respond in time", e.Service)
		}
		if e.Status == 0 {
			return fmt.Sprintf("%s is unreachable", e.Service)
		}
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("%s request failed", e.Service)
	case KindConfiguration:
		return "service is not configured"
	default:
		return "internal server error"
	}
}
