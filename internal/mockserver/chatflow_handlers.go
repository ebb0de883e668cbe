package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/moxuanyu/resumepilot/internal/model/chat"
	"github.com/moxuanyu/resumepilot/internal/model/resume"
	"github.com/moxuanyu/resumepilot/pkg/httpx"
)

// ChatflowHandler AI 简历访谈路由，含流式端点。
type ChatflowHandler struct {
	store     *Store
	assistant *Assistant
	hub       *Hub
}

// NewChatflowHandler 创建访谈处理器。
func NewChatflowHandler(store *Store, assistant *Assistant, hub *Hub) *ChatflowHandler {
	return &ChatflowHandler{store: store, assistant: assistant, hub: hub}
}

// RegisterRoutes 注册 /chatflow 路由，全部要求认证。
func (h *ChatflowHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chatflow/start", h.handleStart)
	r.Post("/chatflow/message", h.handleMessage)
	r.Post("/chatflow/stream", h.handleStream)
	r.Post("/chatflow/end", h.handleEnd)
	r.Post("/chatflow/create-resume", h.handleCreateResume)
	r.Get("/chatflow/history/{id}", h.handleHistory)
	r.Get("/chatflow/status", h.handleStatus)
}

func (h *ChatflowHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	conv := h.store.CreateConversation(currentUser(r).ID)
	greeting := h.assistant.Greeting()
	h.store.AppendMessages(conv.ID, chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Content:   greeting,
		Timestamp: time.Now().UTC(),
	})

	log.Printf("[chatflow] conversation %s started by %s", conv.ID, currentUser(r).Username)
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"conversation_id": conv.ID,
		"initial_message": greeting,
	})
}

type messageRequest struct {
	ConversationID string                 `json:"conversation_id"`
	Message        string                 `json:"message"`
	Inputs         map[string]interface{} `json:"inputs"`
}

func (h *ChatflowHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	req, conv, ok := h.decodeTurn(w, r)
	if !ok {
		return
	}

	conv, ok = h.store.AdvanceConversation(conv.ID, req.Message)
	if !ok {
		httpx.RespondError(w, http.StatusNotFound, "对话不存在")
		return
	}
	turn := h.assistant.NextTurn(conv)
	answer := h.assistant.Phrase(r.Context(), conv, turn.Answer, req.Message)
	h.recordTurn(conv.ID, req.Message, answer, turn.Suggestions)

	response := map[string]interface{}{
		"success":     true,
		"message":     answer,
		"suggestions": turn.Suggestions,
		"status":      "active",
	}
	if turn.Completed {
		record := h.createArtifactResume(currentUser(r).ID, conv, turn)
		response["status"] = "completed"
		response["resume_content"] = map[string]string{"markdown": turn.Markdown, "title": turn.Title}
		response["resume_id"] = record.ID
		response["edit_url"] = "/edit/" + record.ID
	}
	httpx.RespondJSON(w, http.StatusOK, response)
}

// handleStream 把一轮回复作为 SSE 流写出：若可用则转发模型增量，
// 否则把脚本回复切片后逐帧发送，最后一帧是 message_end。
func (h *ChatflowHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	req, conv, ok := h.decodeTurn(w, r)
	if !ok {
		return
	}

	httpx.SetupSSEHeaders(w)

	taskID := uuid.NewString()
	messageID := uuid.NewString()
	conv, advanced := h.store.AdvanceConversation(conv.ID, req.Message)
	if !advanced {
		httpx.SendSSEChunk(w, flusher, map[string]interface{}{
			"event":   "error",
			"status":  404,
			"message": "对话不存在",
		})
		return
	}
	turn := h.assistant.NextTurn(conv)

	answer, err := h.streamAnswer(r.Context(), w, flusher, conv, turn, req.Message)
	if err != nil {
		httpx.SendSSEChunk(w, flusher, map[string]interface{}{
			"event":      "error",
			"task_id":    taskID,
			"message_id": messageID,
			"status":     500,
			"code":       "model_error",
			"message":    err.Error(),
		})
		return
	}
	h.recordTurn(conv.ID, req.Message, answer, turn.Suggestions)

	end := map[string]interface{}{
		"event":           "message_end",
		"task_id":         taskID,
		"message_id":      messageID,
		"conversation_id": conv.ID,
		"status":          "active",
	}
	if turn.Completed {
		record := h.createArtifactResume(currentUser(r).ID, conv, turn)
		end["status"] = "completed"
		end["resume_content"] = map[string]string{"markdown": turn.Markdown, "title": turn.Title}
		end["resume_id"] = record.ID
		end["edit_url"] = "/edit/" + record.ID
	}
	httpx.SendSSEChunk(w, flusher, end)
}

// streamAnswer 发送增量帧并返回完整回复文本。
func (h *ChatflowHandler) streamAnswer(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, conv ConversationState, turn Turn, userMessage string) (string, error) {
	if h.assistant.ModelEnabled() && !turn.Completed {
		stream, err := h.assistant.StreamPhrase(ctx, conv, turn.Answer, userMessage)
		if err != nil {
			return "", err
		}
		defer stream.Close()

		chunks := make([]*schema.Message, 0, 8)
		for {
			chunk, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if recvErr != nil {
				return "", recvErr
			}
			if chunk == nil || chunk.Content == "" {
				continue
			}
			chunks = append(chunks, chunk)
			httpx.SendSSEChunk(w, flusher, map[string]interface{}{
				"event":  "message",
				"answer": chunk.Content,
			})
		}

		message, err := schema.ConcatMessages(chunks)
		if err != nil {
			return "", err
		}
		return message.Content, nil
	}

	// 脚本回复按字符切片模拟流式输出。
	runes := []rune(turn.Answer)
	const sliceSize = 8
	for start := 0; start < len(runes); start += sliceSize {
		stop := start + sliceSize
		if stop > len(runes) {
			stop = len(runes)
		}
		httpx.SendSSEChunk(w, flusher, map[string]interface{}{
			"event":  "message",
			"answer": string(runes[start:stop]),
		})
	}
	return turn.Answer, nil
}

func (h *ChatflowHandler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ConversationID == "" {
		httpx.RespondError(w, http.StatusBadRequest, "缺少conversation_id参数")
		return
	}

	h.store.EndConversation(payload.ConversationID)
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *ChatflowHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.store.Conversation(chi.URLParam(r, "id"))
	if !ok {
		httpx.RespondError(w, http.StatusNotFound, "对话不存在")
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": conv.Messages,
	})
}

func (h *ChatflowHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"available":    true,
		"model_backed": h.assistant.ModelEnabled(),
	})
}

func (h *ChatflowHandler) handleCreateResume(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MarkdownContent string `json:"markdown_content"`
		Title           string `json:"title"`
		ConversationID  string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.MarkdownContent == "" {
		httpx.RespondError(w, http.StatusBadRequest, "缺少简历内容")
		return
	}

	record := h.store.CreateResume(currentUser(r).ID, resume.Draft{
		Title:       payload.Title,
		RawMarkdown: payload.MarkdownContent,
	})
	h.hub.BroadcastResumeCreated(record.ID, record.Title, "/edit/"+record.ID)

	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"resume_id": record.ID,
	})
}

func (h *ChatflowHandler) decodeTurn(w http.ResponseWriter, r *http.Request) (messageRequest, ConversationState, bool) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return req, ConversationState{}, false
	}
	if req.ConversationID == "" || req.Message == "" {
		httpx.RespondError(w, http.StatusBadRequest, "缺少必要参数: conversation_id 和 message")
		return req, ConversationState{}, false
	}

	conv, ok := h.store.Conversation(req.ConversationID)
	if !ok {
		httpx.RespondError(w, http.StatusNotFound, "对话不存在")
		return req, ConversationState{}, false
	}
	if conv.UserID != currentUser(r).ID {
		httpx.RespondError(w, http.StatusForbidden, "无权访问该对话")
		return req, ConversationState{}, false
	}
	return req, conv, true
}

func (h *ChatflowHandler) recordTurn(conversationID, userMessage, answer string, suggestions []string) {
	now := time.Now().UTC()
	h.store.AppendMessages(conversationID,
		chat.Message{ID: uuid.NewString(), Role: chat.RoleUser, Content: userMessage, Timestamp: now},
		chat.Message{ID: uuid.NewString(), Role: chat.RoleAssistant, Content: answer, Timestamp: now, Suggestions: suggestions},
	)
}

// createArtifactResume 访谈完成后落库并广播通知。
func (h *ChatflowHandler) createArtifactResume(ownerID string, conv ConversationState, turn Turn) resume.Resume {
	record := h.store.CreateResume(ownerID, resume.Draft{
		Title:       turn.Title,
		RawMarkdown: turn.Markdown,
	})
	h.hub.BroadcastResumeCreated(record.ID, record.Title, "/edit/"+record.ID)
	log.Printf("[chatflow] conversation %s produced resume %s", conv.ID, record.ID)
	return record
}
