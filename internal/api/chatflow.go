package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/moxuanyu/resumepilot/internal/model/chat"
)

// StartConversationResult /api/chatflow/start 的响应。
type StartConversationResult struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversation_id"`
	InitialMessage string `json:"initial_message"`
	Error          string `json:"error,omitempty"`
}

// StartConversation 启动一次 AI 简历对话。
func (c *Client) StartConversation(ctx context.Context) (StartConversationResult, error) {
	var result StartConversationResult
	err := c.JSON(ctx, http.MethodPost, "/api/chatflow/start", struct{}{}, &result)
	return result, err
}

// ResumeContent 对话产出的简历内容。
type ResumeContent struct {
	Markdown string `json:"markdown"`
	Title    string `json:"title"`
}

// ChatflowMessageResult /api/chatflow/message 的响应，非流式的一轮回复。
type ChatflowMessageResult struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Suggestions   []string       `json:"suggestions,omitempty"`
	Status        string         `json:"status"`
	ResumeContent *ResumeContent `json:"resume_content,omitempty"`
	ResumeID      string         `json:"resume_id,omitempty"`
	EditURL       string         `json:"edit_url,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Artifact 把完成回复中的简历字段转成聊天产物；未完成时返回 nil。
func (r ChatflowMessageResult) Artifact() *chat.Artifact {
	if r.ResumeContent == nil {
		return nil
	}
	return &chat.Artifact{
		Markdown: r.ResumeContent.Markdown,
		Title:    r.ResumeContent.Title,
		ResumeID: r.ResumeID,
		EditURL:  r.EditURL,
	}
}

// SendChatflowMessage 发送一轮非流式对话消息，整段回复一次返回。
func (c *Client) SendChatflowMessage(ctx context.Context, conversationID, message string, inputs map[string]interface{}) (ChatflowMessageResult, error) {
	payload := map[string]interface{}{
		"conversation_id": conversationID,
		"message":         message,
	}
	if len(inputs) > 0 {
		payload["inputs"] = inputs
	}

	var result ChatflowMessageResult
	err := c.JSON(ctx, http.MethodPost, "/api/chatflow/message", payload, &result)
	return result, err
}

// EndConversation 通知后端关闭对话。
func (c *Client) EndConversation(ctx context.Context, conversationID string) error {
	payload := map[string]string{"conversation_id": conversationID}
	return c.JSON(ctx, http.MethodPost, "/api/chatflow/end", payload, nil)
}

// ConversationHistory 获取对话历史。
func (c *Client) ConversationHistory(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var result struct {
		Success  bool           `json:"success"`
		Messages []chat.Message `json:"messages"`
	}
	if err := c.JSON(ctx, http.MethodGet, "/api/chatflow/history/"+url.PathEscape(conversationID), nil, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// ChatflowStatus 检查 AI 服务可用性。
func (c *Client) ChatflowStatus(ctx context.Context) (bool, error) {
	var result struct {
		Success   bool `json:"success"`
		Available bool `json:"available"`
	}
	if err := c.JSON(ctx, http.MethodGet, "/api/chatflow/status", nil, &result); err != nil {
		return false, err
	}
	return result.Available, nil
}

// CreateResumeFromChatflow 由对话产出的 Markdown 手动创建简历。
func (c *Client) CreateResumeFromChatflow(ctx context.Context, markdown, title, conversationID string) (string, error) {
	payload := map[string]string{
		"markdown_content": markdown,
		"title":            title,
		"conversation_id":  conversationID,
	}
	var result struct {
		Success  bool   `json:"success"`
		ResumeID string `json:"resume_id"`
	}
	if err := c.JSON(ctx, http.MethodPost, "/api/chatflow/create-resume", payload, &result); err != nil {
		return "", err
	}
	return result.ResumeID, nil
}
