package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/moxuanyu/resumepilot/internal/api"
	"github.com/moxuanyu/resumepilot/internal/model/chat"
)

// Handlers 流式请求的三个回调。一次调用中 OnComplete 与 OnError
// 至多触发其一；OnDelta 在此之前可触发零到多次。
type Handlers struct {
	OnDelta    func(text string)
	OnComplete func(completion Completion)
	OnError    func(err error, detail *chat.ErrorDetail)
}

// Request 一次流式对话请求。
type Request struct {
	ConversationID string                 `json:"conversation_id"`
	Message        string                 `json:"message"`
	Inputs         map[string]interface{} `json:"inputs"`
}

// Client 把一个 SSE 响应体消费为强类型回调序列。
// 单遍、协作式、无背压：停止读取下一帧即自然终止。
type Client struct {
	api *api.Client
}

// NewClient 构造流式客户端。
func NewClient(apiClient *api.Client) *Client {
	return &Client{api: apiClient}
}

// Send 发起流式 POST 并消费响应直到终止事件或流结束。
// 所有结果经由回调送出；取消通过 ctx 显式传入。
func (c *Client) Send(ctx context.Context, req Request, h Handlers) {
	if req.Inputs == nil {
		req.Inputs = map[string]interface{}{}
	}

	resp, err := c.api.Stream(ctx, http.MethodPost, "/api/chatflow/stream", req)
	if err != nil {
		apiErr := api.AsError(err)
		h.OnError(apiErr, &chat.ErrorDetail{
			Category: string(apiErr.Category),
			Code:     apiErr.Code,
			Status:   apiErr.Status,
			Message:  apiErr.Human(),
		})
		return
	}
	defer resp.Body.Close()

	c.consume(resp.Body, h)
}

// consume 读帧、解码、分发。帧内 JSON 损坏只跳过该帧；
// 读取中断则上报错误并停止。
func (c *Client) consume(body io.Reader, h Handlers) {
	frames := NewFrameReader(body)

	for {
		frame, err := frames.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			apiErr := api.TransportError(err)
			h.OnError(apiErr, &chat.ErrorDetail{
				Category: string(apiErr.Category),
				Message:  apiErr.Human(),
			})
			return
		}

		event, err := ParseEvent(frame)
		if err != nil {
			log.Printf("[stream] skipping frame: %v", err)
			continue
		}

		switch event.Kind {
		case KindDelta:
			if event.Text != "" {
				h.OnDelta(event.Text)
			}

		case KindCompletion:
			h.OnComplete(*event.Completion)
			return

		case KindError:
			h.OnError(errors.New(event.Detail.Message), event.Detail)
			return

		default:
			log.Printf("[stream] ignoring event %q", event.RawEvent)
		}
	}
}
