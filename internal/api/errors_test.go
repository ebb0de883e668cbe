package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCategoryFromStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Category
	}{
		{http.StatusBadRequest, CategoryBadRequest},
		{http.StatusUnauthorized, CategoryUnauthenticated},
		{http.StatusForbidden, CategoryForbidden},
		{http.StatusNotFound, CategoryBadRequest},
		{http.StatusRequestEntityTooLarge, CategoryPayloadTooLarge},
		{http.StatusTooManyRequests, CategoryRateLimited},
		{http.StatusInternalServerError, CategoryServerError},
		{http.StatusBadGateway, CategoryUnavailable},
		{http.StatusServiceUnavailable, CategoryUnavailable},
		{http.StatusGatewayTimeout, CategoryTimeout},
		{200, CategoryUnknown},
	}
	for _, tc := range cases {
		if got := CategoryFromStatus(tc.status); got != tc.want {
			t.Errorf("status %d: expected %s, got %s", tc.status, tc.want, got)
		}
	}
}

func TestHumanMessageCoversEveryCategory(t *testing.T) {
	categories := []Category{
		CategoryBadRequest, CategoryUnauthenticated, CategoryForbidden,
		CategoryPayloadTooLarge, CategoryRateLimited, CategoryServerError,
		CategoryUnavailable, CategoryTimeout, CategoryNetworkUnreachable,
		CategoryWorkflowNode, CategoryUnknown,
	}
	for _, category := range categories {
		err := &Error{Category: category}
		if err.Human() == "" {
			t.Errorf("category %s has no human message", category)
		}
	}
}

func TestErrorStringIncludesDetail(t *testing.T) {
	err := &Error{Category: CategoryServerError, Detail: "db down"}
	if err.Error() != "server-error: db down" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}

	bare := &Error{Category: CategoryTimeout}
	if bare.Error() != "timeout" {
		t.Fatalf("unexpected bare error string: %s", bare.Error())
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransportErrorClassification(t *testing.T) {
	if got := TransportError(timeoutErr{}).Category; got != CategoryTimeout {
		t.Fatalf("net timeout should map to timeout, got %s", got)
	}
	if got := TransportError(context.DeadlineExceeded).Category; got != CategoryTimeout {
		t.Fatalf("deadline exceeded should map to timeout, got %s", got)
	}
	if got := TransportError(errors.New("connection refused")).Category; got != CategoryNetworkUnreachable {
		t.Fatalf("plain failure should map to network-unreachable, got %s", got)
	}
}

func TestAsErrorPassthroughAndWrap(t *testing.T) {
	original := StatusError(http.StatusForbidden, "nope")
	if AsError(fmt.Errorf("wrapped: %w", original)) != original {
		t.Fatal("AsError must unwrap to the original *Error")
	}

	foreign := AsError(errors.New("something else"))
	if foreign.Category != CategoryUnknown || foreign.Detail != "something else" {
		t.Fatalf("foreign error not normalized: %+v", foreign)
	}
}

func TestDecodeAPIErrorEnvelope(t *testing.T) {
	err := decodeAPIError(http.StatusBadRequest, []byte(`{"success":false,"errors":["用户名不能为空","邮箱格式不正确"]}`))
	if err.Detail != "用户名不能为空; 邮箱格式不正确" {
		t.Fatalf("errors list not joined: %q", err.Detail)
	}

	err = decodeAPIError(http.StatusUnauthorized, []byte(`{"success":false,"error":"令牌无效","code":"token_invalid"}`))
	if err.Detail != "令牌无效" || err.Code != "token_invalid" {
		t.Fatalf("envelope not decoded: %+v", err)
	}

	err = decodeAPIError(http.StatusInternalServerError, []byte("<html>gateway</html>"))
	if err.Category != CategoryServerError || err.Detail != "" {
		t.Fatalf("non-JSON body should fall back to category only: %+v", err)
	}
}
