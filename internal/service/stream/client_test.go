package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moxuanyu/resumepilot/internal/api"
	"github.com/moxuanyu/resumepilot/internal/model/chat"
)

// recorder 捕获一次流式调用触发的全部回调。
type recorder struct {
	deltas      []string
	completions []Completion
	details     []*chat.ErrorDetail
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnDelta:    func(text string) { r.deltas = append(r.deltas, text) },
		OnComplete: func(c Completion) { r.completions = append(r.completions, c) },
		OnError:    func(_ error, d *chat.ErrorDetail) { r.details = append(r.details, d) },
	}
}

func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chatflow/stream" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			w.Write([]byte("data: " + frame + "\n\n"))
		}
	}))
}

func TestSendConcatenatesDeltas(t *testing.T) {
	server := sseServer(t,
		`{"event":"message","answer":"Hello"}`,
		`{"event":"message","answer":" world"}`,
		`{"event":"message_end","conversation_id":"c1"}`,
	)
	defer server.Close()

	rec := &recorder{}
	client := NewClient(api.New(server.URL))
	client.Send(context.Background(), Request{ConversationID: "c1", Message: "hi"}, rec.handlers())

	if got := strings.Join(rec.deltas, ""); got != "Hello world" {
		t.Fatalf("unexpected text: %q", got)
	}
	if len(rec.completions) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(rec.completions))
	}
	if len(rec.details) != 0 {
		t.Fatalf("unexpected errors: %+v", rec.details)
	}
}

func TestSendErrorEventTerminatesStream(t *testing.T) {
	server := sseServer(t,
		`{"event":"message","answer":"部分"}`,
		`{"event":"error","status":500,"code":"boom","message":"后端炸了"}`,
		`{"event":"message","answer":"不会再读到"}`,
	)
	defer server.Close()

	rec := &recorder{}
	client := NewClient(api.New(server.URL))
	client.Send(context.Background(), Request{ConversationID: "c1", Message: "hi"}, rec.handlers())

	if len(rec.details) != 1 {
		t.Fatalf("expected exactly 1 error, got %d", len(rec.details))
	}
	if len(rec.completions) != 0 {
		t.Fatal("completion must not fire after error")
	}
	if len(rec.deltas) != 1 {
		t.Fatalf("expected reading to stop at the error frame, got %v", rec.deltas)
	}
}

func TestSendNon2xxReportsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"error":"访问令牌无效"}`))
	}))
	defer server.Close()

	rec := &recorder{}
	client := NewClient(api.New(server.URL))
	client.Send(context.Background(), Request{ConversationID: "c1", Message: "hi"}, rec.handlers())

	if len(rec.details) != 1 {
		t.Fatalf("expected 1 error, got %d", len(rec.details))
	}
	if rec.details[0].Category != string(api.CategoryUnauthenticated) {
		t.Fatalf("unexpected category: %s", rec.details[0].Category)
	}
}

func TestSendSkipsMalformedFrames(t *testing.T) {
	server := sseServer(t,
		`{"event":"message","answer":"好的`,
		`{"event":"message","answer":"完整帧"}`,
		`{"event":"message_end"}`,
	)
	defer server.Close()

	rec := &recorder{}
	client := NewClient(api.New(server.URL))
	client.Send(context.Background(), Request{ConversationID: "c1", Message: "hi"}, rec.handlers())

	if len(rec.deltas) != 1 || rec.deltas[0] != "完整帧" {
		t.Fatalf("expected malformed frame to be skipped, got %v", rec.deltas)
	}
	if len(rec.completions) != 1 {
		t.Fatalf("expected completion after skipped frame, got %d", len(rec.completions))
	}
}

func TestSendCleanEOFWithoutCompletion(t *testing.T) {
	server := sseServer(t, `{"event":"message","answer":"半截"}`)
	defer server.Close()

	rec := &recorder{}
	client := NewClient(api.New(server.URL))
	client.Send(context.Background(), Request{ConversationID: "c1", Message: "hi"}, rec.handlers())

	if len(rec.completions) != 0 || len(rec.details) != 0 {
		t.Fatalf("clean EOF must end silently: completions=%d errors=%d",
			len(rec.completions), len(rec.details))
	}
}
