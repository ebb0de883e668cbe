package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/moxuanyu/resumepilot/internal/api"
	"github.com/moxuanyu/resumepilot/internal/model/chat"
	"github.com/moxuanyu/resumepilot/internal/service/stream"
)

// fakeBackend 记录调用并返回预设结果。
type fakeBackend struct {
	startResult api.StartConversationResult
	startErr    error
	endCalls    []string
}

func (b *fakeBackend) StartConversation(_ context.Context) (api.StartConversationResult, error) {
	return b.startResult, b.startErr
}

func (b *fakeBackend) EndConversation(_ context.Context, id string) error {
	b.endCalls = append(b.endCalls, id)
	return nil
}

// fakeStreamer 按脚本驱动回调，模拟一轮流式回复。
type fakeStreamer struct {
	script func(h stream.Handlers)
	calls  int
}

func (s *fakeStreamer) Send(_ context.Context, _ stream.Request, h stream.Handlers) {
	s.calls++
	if s.script != nil {
		s.script(h)
	}
}

func startedController(t *testing.T, streamer *fakeStreamer) (*Controller, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{
		startResult: api.StartConversationResult{
			Success:        true,
			ConversationID: "conv-1",
			InitialMessage: "你好！我是简历助手。",
		},
	}
	c := NewController(backend, streamer, func(string) {})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return c, backend
}

func TestStartSeedsGreeting(t *testing.T) {
	c, _ := startedController(t, &fakeStreamer{})

	conv := c.Snapshot()
	if conv.Status != chat.StatusActive {
		t.Fatalf("expected active, got %s", conv.Status)
	}
	if conv.ID != "conv-1" {
		t.Fatalf("unexpected conversation id: %s", conv.ID)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Role != chat.RoleAssistant {
		t.Fatalf("expected seeded greeting, got %+v", conv.Messages)
	}
	if !conv.AcceptsInput() {
		t.Fatal("active conversation must accept input")
	}
}

func TestStartFailureEntersErrorState(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("connection refused")}
	c := NewController(backend, &fakeStreamer{}, func(string) {})

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := c.Snapshot().Status; got != chat.StatusError {
		t.Fatalf("expected error status, got %s", got)
	}
}

func TestSendStreamsIntoPlaceholder(t *testing.T) {
	streamer := &fakeStreamer{script: func(h stream.Handlers) {
		h.OnDelta("我叫")
		h.OnDelta("张三")
		h.OnComplete(stream.Completion{Status: "active"})
	}}
	c, _ := startedController(t, streamer)

	if err := c.Send(context.Background(), "你好"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	conv := c.Snapshot()
	// 问候 + 用户消息 + 定稿后的助手消息
	if len(conv.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv.Messages))
	}
	last := conv.Messages[2]
	if last.Content != "我叫张三" || last.IsStreaming {
		t.Fatalf("unexpected final message: %+v", last)
	}
	if conv.Status != chat.StatusActive {
		t.Fatalf("completion without artifact must stay active, got %s", conv.Status)
	}
}

func TestSendCompletionWithArtifact(t *testing.T) {
	artifact := &chat.Artifact{Markdown: "# 张三的简历", Title: "张三的简历", ResumeID: "r1"}
	streamer := &fakeStreamer{script: func(h stream.Handlers) {
		h.OnDelta("简历已生成")
		h.OnComplete(stream.Completion{Status: "completed", Artifact: artifact})
	}}

	notified := []string{}
	backend := &fakeBackend{startResult: api.StartConversationResult{Success: true, ConversationID: "conv-1"}}
	c := NewController(backend, streamer, func(m string) { notified = append(notified, m) })
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := c.Send(context.Background(), "完成了吗"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	conv := c.Snapshot()
	if conv.Status != chat.StatusCompleted {
		t.Fatalf("expected completed, got %s", conv.Status)
	}
	if conv.Artifact == nil || conv.Artifact.ResumeID != "r1" {
		t.Fatalf("artifact not recorded: %+v", conv.Artifact)
	}
	if !conv.AcceptsInput() {
		t.Fatal("completed conversation with artifact still accepts input")
	}
	if len(notified) == 0 {
		t.Fatal("expected completion notification")
	}
}

func TestSendErrorReplacesPlaceholder(t *testing.T) {
	streamer := &fakeStreamer{script: func(h stream.Handlers) {
		h.OnDelta("部分输出")
		h.OnError(errors.New("stream broken"), &chat.ErrorDetail{
			Category: string(api.CategoryServerError),
			Message:  "服务器内部错误，请稍后重试",
		})
	}}
	c, _ := startedController(t, streamer)

	if err := c.Send(context.Background(), "继续"); err == nil {
		t.Fatal("expected send error")
	}

	conv := c.Snapshot()
	if conv.Status != chat.StatusError {
		t.Fatalf("expected error status, got %s", conv.Status)
	}
	for _, message := range conv.Messages {
		if message.IsStreaming {
			t.Fatalf("streaming placeholder survived failure: %+v", message)
		}
	}
	last := conv.Messages[len(conv.Messages)-1]
	if !last.IsError || last.Role != chat.RoleSystem {
		t.Fatalf("expected system error message, got %+v", last)
	}
	if last.ErrorDetail == nil || last.ErrorDetail.Category != string(api.CategoryServerError) {
		t.Fatalf("error detail not preserved: %+v", last.ErrorDetail)
	}
}

func TestSendGuards(t *testing.T) {
	c := NewController(&fakeBackend{}, &fakeStreamer{}, func(string) {})

	if err := c.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if err := c.Send(context.Background(), "hi"); !errors.Is(err, ErrNoConversation) {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}
}

func TestResetInvalidatesLateCallbacks(t *testing.T) {
	var handlers stream.Handlers
	streamer := &fakeStreamer{script: func(h stream.Handlers) {
		handlers = h
		h.OnDelta("第一段")
	}}
	c, _ := startedController(t, streamer)

	if err := c.Send(context.Background(), "你好"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	c.Reset()

	// Reset 之后迟到的回调不得写入新状态。
	handlers.OnDelta("迟到的增量")
	handlers.OnComplete(stream.Completion{Artifact: &chat.Artifact{Markdown: "#"}})

	conv := c.Snapshot()
	if conv.Status != chat.StatusInactive {
		t.Fatalf("expected inactive after reset, got %s", conv.Status)
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("late callbacks leaked into reset state: %+v", conv.Messages)
	}
	if conv.Artifact != nil {
		t.Fatal("late completion leaked an artifact")
	}
}

func TestEndOnlyWhenActive(t *testing.T) {
	c, backend := startedController(t, &fakeStreamer{})

	c.End(context.Background())
	if len(backend.endCalls) != 1 || backend.endCalls[0] != "conv-1" {
		t.Fatalf("expected one end call, got %v", backend.endCalls)
	}

	c.Reset()
	c.End(context.Background())
	if len(backend.endCalls) != 1 {
		t.Fatalf("end after reset must not hit backend, got %v", backend.endCalls)
	}
}
