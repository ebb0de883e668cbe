package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// TokenProvider 为外发请求提供访问令牌，并在令牌过期时执行一次静默刷新。
// 由会话存储实现，客户端通过依赖注入获得，避免全局单例耦合。
type TokenProvider interface {
	AccessToken() string
	// Refresh 尝试静默刷新访问令牌，会话已丢失时返回 false。
	Refresh(ctx context.Context) bool
}

// Client 统一配置的请求客户端：基础地址、JSON 编解码、请求日志、
// 鉴权头注入与 401 后的一次透明重试。
type Client struct {
	httpClient *http.Client
	baseURL    string
	verbose    bool
	tokens     TokenProvider
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client，测试时注入。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithVerbose 开启请求级日志。
func WithVerbose(v bool) Option {
	return func(c *Client) { c.verbose = v }
}

// WithTimeout sets the per-request transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New 在进程启动时构造一次，之后传给所有消费者。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenProvider 注入令牌来源。会话存储自身依赖 Client 发起请求，
// 因此在两者都构造完成后再接线。
func (c *Client) SetTokenProvider(p TokenProvider) {
	c.tokens = p
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// JSON 发起一个 JSON 请求并把响应体解码到 out（可为 nil）。
// 401 且尚未重试过时，先做一次静默刷新再重放原请求；二次失败原样上报。
func (c *Client) JSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return TransportError(err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Category: CategoryUnknown, Status: resp.StatusCode, Detail: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// Blob 下载二进制响应体（PDF 导出等）。
func (c *Client) Blob(ctx context.Context, method, path string) ([]byte, error) {
	resp, err := c.do(ctx, method, path, nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransportError(err)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// Stream 发起流式请求并返回未读取的响应。调用方负责关闭 Body；
// 非 2xx 时响应体已被消费并归一化为错误。
func (c *Client) Stream(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	resp, err := c.do(ctx, method, path, body, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return resp, nil
}

// AuthJSON 以显式令牌发起请求，绕过令牌注入与 401 重试。
// 刷新流程自身走这里，避免刷新失败再触发刷新。
func (c *Client) AuthJSON(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Category: CategoryUnknown, Detail: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Category: CategoryUnknown, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return TransportError(err)
	}
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Category: CategoryUnknown, Status: resp.StatusCode, Detail: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, streaming bool) (*http.Response, error) {
	authed := c.tokens != nil && c.tokens.AccessToken() != ""

	resp, err := c.send(ctx, method, path, body, streaming)
	if err != nil {
		return nil, err
	}

	// 仅对携带了访问令牌的请求做一次静默刷新后重放；
	// 登录、注册等匿名请求的 401 原样交给上层解码错误信封。
	// 刷新失败时同样返回原始响应，第二次 401 也按原样上报。
	if resp.StatusCode == http.StatusUnauthorized && authed {
		if !c.tokens.Refresh(ctx) {
			return resp, nil
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if c.verbose {
			log.Printf("[api] retrying %s %s after token refresh", method, path)
		}
		return c.send(ctx, method, path, body, streaming)
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, streaming bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Category: CategoryUnknown, Detail: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Category: CategoryUnknown, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if c.verbose {
		log.Printf("[api] %s %s", method, path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, TransportError(err)
	}
	return resp, nil
}

// decodeAPIError 优先取后端错误信封里的 error/errors 字段作为技术细节。
func decodeAPIError(status int, body []byte) *Error {
	var envelope struct {
		Error  string   `json:"error"`
		Errors []string `json:"errors"`
		Code   string   `json:"code"`
	}
	detail := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Error != "":
			detail = envelope.Error
		case len(envelope.Errors) > 0:
			detail = strings.Join(envelope.Errors, "; ")
		}
	}
	apiErr := StatusError(status, detail)
	apiErr.Code = envelope.Code
	return apiErr
}
