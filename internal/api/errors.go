package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category 面向用户的错误分类，由 HTTP 状态码或后端错误码归一化而来。
type Category string

const (
	CategoryBadRequest         Category = "malformed-request"
	CategoryUnauthenticated    Category = "unauthenticated"
	CategoryForbidden          Category = "forbidden"
	CategoryPayloadTooLarge    Category = "payload-too-large"
	CategoryRateLimited        Category = "rate-limited"
	CategoryServerError        Category = "server-error"
	CategoryUnavailable        Category = "service-unavailable"
	CategoryTimeout            Category = "timeout"
	CategoryNetworkUnreachable Category = "network-unreachable"
	CategoryWorkflowNode       Category = "workflow-node-failure"
	CategoryUnknown            Category = "unknown"
)

// humanMessages 每个分类对应一句简短的用户提示，绝不静默丢弃。
var humanMessages = map[Category]string{
	CategoryBadRequest:         "请求参数有误，请检查后重试",
	CategoryUnauthenticated:    "登录状态已失效，请重新登录",
	CategoryForbidden:          "没有权限执行该操作",
	CategoryPayloadTooLarge:    "内容过大，请精简后重试",
	CategoryRateLimited:        "操作过于频繁，请稍后再试",
	CategoryServerError:        "服务器内部错误，请稍后重试",
	CategoryUnavailable:        "服务暂时不可用，请稍后重试",
	CategoryTimeout:            "请求超时，请稍后重试",
	CategoryNetworkUnreachable: "网络连接失败，请检查后端服务是否启动",
	CategoryWorkflowNode:       "AI 工作流节点执行失败",
	CategoryUnknown:            "请求失败，请稍后重试",
}

// Error 携带分类、状态码与技术细节的规范化错误。
type Error struct {
	Category  Category
	Status    int
	Code      string
	Detail    string
	TaskID    string
	MessageID string
	NodeID    string
	NodeTitle string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Category, e.Detail)
	}
	return string(e.Category)
}

// Human returns the short user-facing sentence for the error's category.
func (e *Error) Human() string {
	if msg, ok := humanMessages[e.Category]; ok {
		return msg
	}
	return humanMessages[CategoryUnknown]
}

// CategoryFromStatus 将 HTTP 状态码映射到错误分类。
func CategoryFromStatus(status int) Category {
	switch status {
	case http.StatusBadRequest:
		return CategoryBadRequest
	case http.StatusUnauthorized:
		return CategoryUnauthenticated
	case http.StatusForbidden:
		return CategoryForbidden
	case http.StatusRequestEntityTooLarge:
		return CategoryPayloadTooLarge
	case http.StatusTooManyRequests:
		return CategoryRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return CategoryUnavailable
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return CategoryTimeout
	}
	if status >= 500 {
		return CategoryServerError
	}
	if status >= 400 {
		return CategoryBadRequest
	}
	return CategoryUnknown
}

// StatusError 按状态码构造规范化错误。
func StatusError(status int, detail string) *Error {
	return &Error{Category: CategoryFromStatus(status), Status: status, Detail: detail}
}

// TransportError 归一化传输层失败：超时与网络不可达分开报告。
func TransportError(err error) *Error {
	category := CategoryNetworkUnreachable
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		category = CategoryTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		category = CategoryTimeout
	}
	return &Error{Category: category, Detail: err.Error()}
}

// AsError extracts a normalized *Error, wrapping foreign errors as unknown.
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Category: CategoryUnknown, Detail: err.Error()}
}
