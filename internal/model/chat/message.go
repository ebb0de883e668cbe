package chat

import "time"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message 对话中的一条消息。流式阶段 Content 只追加；定稿后不再修改。
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Suggestions []string     `json:"suggestions,omitempty"`
	IsStreaming bool         `json:"isStreaming,omitempty"`
	IsError     bool         `json:"isError,omitempty"`
	ErrorDetail *ErrorDetail `json:"errorDetail,omitempty"`
}

// ErrorDetail 规范化后的错误信息，供用户展开查看技术细节。
type ErrorDetail struct {
	Category  string `json:"category"`
	Code      string `json:"code,omitempty"`
	Status    int    `json:"status,omitempty"`
	Message   string `json:"message"`
	TaskID    string `json:"task_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	NodeID    string `json:"node_id,omitempty"`
	NodeTitle string `json:"node_title,omitempty"`
}
