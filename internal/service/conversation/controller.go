package conversation

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moxuanyu/resumepilot/internal/api"
	"github.com/moxuanyu/resumepilot/internal/model/chat"
	"github.com/moxuanyu/resumepilot/internal/service/stream"
)

var (
	ErrNoConversation = errors.New("conversation not started")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrBusy           = errors.New("a message is already in flight")
)

// Backend 控制器驱动的后端操作面，便于测试替换。
type Backend interface {
	StartConversation(ctx context.Context) (api.StartConversationResult, error)
	EndConversation(ctx context.Context, conversationID string) error
}

// Streamer 打开一轮流式回复。
type Streamer interface {
	Send(ctx context.Context, req stream.Request, h stream.Handlers)
}

// Notify 向用户浮现一条简短提示。
type Notify func(message string)

// Controller 持有对话状态，把流式回调转换为状态迁移。
// 所有修改都带 epoch 校验：Reset 之后迟到的回调不再写入任何状态。
type Controller struct {
	mu       sync.Mutex
	backend  Backend
	streamer Streamer
	notify   Notify
	onDelta  func(text string)

	conv     chat.Conversation
	epoch    int
	inFlight bool
}

// NewController 构造控制器。notify 为 nil 时提示仅写日志。
func NewController(backend Backend, streamer Streamer, notify Notify) *Controller {
	if notify == nil {
		notify = func(message string) { log.Printf("[chat] %s", message) }
	}
	return &Controller{
		backend:  backend,
		streamer: streamer,
		notify:   notify,
		conv:     chat.Conversation{Status: chat.StatusInactive},
	}
}

// SetDeltaListener 注册增量文本观察者，宿主用它做实时渲染。
func (c *Controller) SetDeltaListener(fn func(text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDelta = fn
}

// Snapshot 返回当前对话的一份拷贝。
func (c *Controller) Snapshot() chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.conv
	snapshot.Messages = make([]chat.Message, len(c.conv.Messages))
	copy(snapshot.Messages, c.conv.Messages)
	return snapshot
}

// Start 启动对话：inactive → starting → active，失败进入 error 并提示。
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.conv.Status == chat.StatusStarting || c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.conv.Status = chat.StatusStarting
	epoch := c.epoch
	c.mu.Unlock()

	result, err := c.backend.StartConversation(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return nil
	}

	if err != nil || !result.Success {
		c.conv.Status = chat.StatusError
		c.notify("启动AI助手失败，请重试")
		if err != nil {
			return err
		}
		return errors.New(result.Error)
	}

	c.conv.ID = result.ConversationID
	c.conv.Status = chat.StatusActive
	c.conv.Messages = []chat.Message{{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Content:   result.InitialMessage,
		Timestamp: time.Now().UTC(),
	}}
	return nil
}

// Send 发送一轮用户消息并流式接收回复，直到该轮终止才返回。
// 空白文本、未启动或已有在途请求时不发出任何网络调用。
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.conv.ID == "" {
		c.mu.Unlock()
		return ErrNoConversation
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	epoch := c.epoch
	conversationID := c.conv.ID

	now := time.Now().UTC()
	c.conv.Messages = append(c.conv.Messages, chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleUser,
		Content:   text,
		Timestamp: now,
	})
	placeholderID := uuid.NewString()
	c.conv.Messages = append(c.conv.Messages, chat.Message{
		ID:          placeholderID,
		Role:        chat.RoleAssistant,
		Timestamp:   now,
		IsStreaming: true,
	})
	c.mu.Unlock()

	var sendErr error
	c.streamer.Send(ctx, stream.Request{ConversationID: conversationID, Message: text}, stream.Handlers{
		OnDelta: func(delta string) {
			c.appendDelta(epoch, placeholderID, delta)
		},
		OnComplete: func(completion stream.Completion) {
			c.finalize(epoch, placeholderID, completion)
		},
		OnError: func(err error, detail *chat.ErrorDetail) {
			sendErr = err
			c.failStreaming(epoch, placeholderID, detail)
		},
	})

	c.mu.Lock()
	if c.epoch == epoch {
		c.inFlight = false
	}
	c.mu.Unlock()
	return sendErr
}

// appendDelta 只在流式阶段向占位消息追加文本。
func (c *Controller) appendDelta(epoch int, messageID, delta string) {
	var listener func(string)

	c.mu.Lock()
	if c.epoch == epoch {
		for i := range c.conv.Messages {
			if c.conv.Messages[i].ID == messageID && c.conv.Messages[i].IsStreaming {
				c.conv.Messages[i].Content += delta
				listener = c.onDelta
				break
			}
		}
	}
	c.mu.Unlock()

	if listener != nil {
		listener(delta)
	}
}

// finalize 定稿占位消息；携带产物时记下产物并进入 completed。
func (c *Controller) finalize(epoch int, messageID string, completion stream.Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}

	for i := range c.conv.Messages {
		if c.conv.Messages[i].ID == messageID {
			c.conv.Messages[i].IsStreaming = false
			break
		}
	}

	if completion.Artifact != nil {
		c.conv.Artifact = completion.Artifact
		c.conv.Status = chat.StatusCompleted
		c.notify("简历生成完成！")
	}
}

// failStreaming 移除占位消息，追加携带规范化细节的系统错误消息。
func (c *Controller) failStreaming(epoch int, messageID string, detail *chat.ErrorDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}

	for i := range c.conv.Messages {
		if c.conv.Messages[i].ID == messageID {
			c.conv.Messages = append(c.conv.Messages[:i], c.conv.Messages[i+1:]...)
			break
		}
	}

	c.conv.Status = chat.StatusError
	c.conv.Messages = append(c.conv.Messages, chat.Message{
		ID:          uuid.NewString(),
		Role:        chat.RoleSystem,
		Content:     "抱歉，消息发送失败，请重试。",
		Timestamp:   time.Now().UTC(),
		IsError:     true,
		ErrorDetail: detail,
	})
	c.notify("消息发送失败")
}

// End 仅在 active 状态下通知后端关闭对话；失败只记日志，从不阻塞关闭。
func (c *Controller) End(ctx context.Context) {
	c.mu.Lock()
	active := c.conv.Status == chat.StatusActive
	conversationID := c.conv.ID
	c.mu.Unlock()

	if !active || conversationID == "" {
		return
	}

	if err := c.backend.EndConversation(ctx, conversationID); err != nil {
		log.Printf("[chat] end conversation failed: %v", api.AsError(err))
	}
}

// Reset 无条件清空对话状态。epoch 自增使在途流的迟到回调全部失效。
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.inFlight = false
	c.conv = chat.Conversation{Status: chat.StatusInactive}
}
