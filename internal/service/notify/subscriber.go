package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moxuanyu/resumepilot/internal/api"
)

// Event 服务端推送的一条事件。
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// ResumeCreated resume_created 事件的载荷。
type ResumeCreated struct {
	ResumeID    string `json:"resume_id"`
	Title       string `json:"title"`
	RedirectURL string `json:"redirect_url"`
}

// DecodeResumeCreated 解出 resume_created 载荷。
func (e Event) DecodeResumeCreated() (ResumeCreated, error) {
	var payload ResumeCreated
	err := json.Unmarshal(e.Data, &payload)
	return payload, err
}

// Subscriber 客户端只打开一条长连接订阅，由服务端推送外部创建的简历，
// 取代周期性轮询式探测。
type Subscriber struct {
	baseURL string
	tokens  api.TokenProvider
}

// NewSubscriber 构造订阅器。
func NewSubscriber(baseURL string, tokens api.TokenProvider) *Subscriber {
	return &Subscriber{baseURL: strings.TrimRight(baseURL, "/"), tokens: tokens}
}

// Run 建立 WebSocket 连接并阻塞读取事件，ctx 取消后干净退出。
// ping 帧由协议层应答，不会传给 onEvent。
func (s *Subscriber) Run(ctx context.Context, onEvent func(Event)) error {
	wsURL := httpToWS(s.baseURL) + "/api/notifications/ws"

	header := http.Header{}
	if s.tokens != nil {
		if token := s.tokens.AccessToken(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return api.StatusError(resp.StatusCode, err.Error())
		}
		return api.TransportError(err)
	}
	defer conn.Close()

	log.Printf("[notify] subscribed to %s", wsURL)

	// ctx 取消时主动关连接，解除 ReadMessage 阻塞。
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("notification stream closed: %w", err)
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[notify] skipping malformed event: %v", err)
			continue
		}
		if event.Type == "ping" || event.Type == "connected" {
			continue
		}

		onEvent(event)
	}
}

func httpToWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
