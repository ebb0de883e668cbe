package stream

import (
	"encoding/json"
	"fmt"

	"github.com/moxuanyu/resumepilot/internal/api"
	"github.com/moxuanyu/resumepilot/internal/model/chat"
)

// Kind 事件变体的判别标签。
type Kind int

const (
	// KindUnknown 未识别的判别值，仅记录日志后忽略。
	KindUnknown Kind = iota
	// KindDelta 增量文本。
	KindDelta
	// KindCompletion 消息结束，携带元数据与可能的简历产物。
	KindCompletion
	// KindError 显式错误事件或工作流/节点失败。
	KindError
)

// Completion message_end/end 事件携带的结构化元数据。
type Completion struct {
	Status         string
	TaskID         string
	MessageID      string
	ConversationID string
	Artifact       *chat.Artifact
}

// Event 一帧解析出的带标签事件。
type Event struct {
	Kind       Kind
	RawEvent   string
	Text       string
	Completion *Completion
	Detail     *chat.ErrorDetail
}

// wireFrame 覆盖 Dify 标准事件与旧版 type 格式的字段并集。
type wireFrame struct {
	Event string `json:"event"`
	Type  string `json:"type"`

	// message / chunk
	Answer  string `json:"answer"`
	Content string `json:"content"`

	// message_end / end
	Status         json.RawMessage `json:"status"`
	TaskID         string          `json:"task_id"`
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	ResumeContent  json.RawMessage `json:"resume_content"`
	ResumeID       string          `json:"resume_id"`
	EditURL        string          `json:"edit_url"`

	// error
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`

	// workflow_finished / node_finished
	WorkflowRunID string          `json:"workflow_run_id"`
	Data          json.RawMessage `json:"data"`
}

type nodeData struct {
	Status   string `json:"status"`
	Error    string `json:"error"`
	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type"`
	Title    string `json:"title"`
}

// ParseEvent 纯函数：把一帧 JSON 映射为带标签的事件变体。
// JSON 不合法时返回错误，由调用方跳过该帧并继续读流。
func ParseEvent(frame []byte) (Event, error) {
	var wire wireFrame
	if err := json.Unmarshal(frame, &wire); err != nil {
		return Event{}, fmt.Errorf("malformed frame: %w", err)
	}

	switch wire.Event {
	case "message":
		return Event{Kind: KindDelta, RawEvent: wire.Event, Text: wire.Answer}, nil

	case "message_end":
		return Event{Kind: KindCompletion, RawEvent: wire.Event, Completion: completionFrom(wire)}, nil

	case "error":
		return Event{
			Kind:     KindError,
			RawEvent: wire.Event,
			Detail: &chat.ErrorDetail{
				Category:  string(api.CategoryFromStatus(intStatus(wire.Status))),
				Code:      wire.Code,
				Status:    intStatus(wire.Status),
				Message:   messageOr(wire.Message, "对话流处理出错"),
				TaskID:    wire.TaskID,
				MessageID: wire.MessageID,
			},
		}, nil

	case "workflow_finished":
		var data nodeData
		if err := json.Unmarshal(wire.Data, &data); err == nil && data.Status == "failed" {
			return Event{
				Kind:     KindError,
				RawEvent: wire.Event,
				Detail: &chat.ErrorDetail{
					Category: string(api.CategoryWorkflowNode),
					Message:  messageOr(data.Error, "工作流执行失败"),
					NodeID:   wire.WorkflowRunID,
				},
			}, nil
		}
		return Event{Kind: KindUnknown, RawEvent: wire.Event}, nil

	case "node_finished":
		var data nodeData
		if err := json.Unmarshal(wire.Data, &data); err == nil && data.Status == "failed" {
			return Event{
				Kind:     KindError,
				RawEvent: wire.Event,
				Detail: &chat.ErrorDetail{
					Category:  string(api.CategoryWorkflowNode),
					Message:   messageOr(data.Error, fmt.Sprintf("节点 %s 执行失败", data.Title)),
					NodeID:    data.NodeID,
					NodeTitle: data.Title,
				},
			}, nil
		}
		return Event{Kind: KindUnknown, RawEvent: wire.Event}, nil
	}

	// 旧版 type 格式的向后兼容。
	switch wire.Type {
	case "chunk":
		return Event{Kind: KindDelta, RawEvent: wire.Type, Text: wire.Content}, nil
	case "end":
		return Event{Kind: KindCompletion, RawEvent: wire.Type, Completion: completionFrom(wire)}, nil
	case "error":
		return Event{
			Kind:     KindError,
			RawEvent: wire.Type,
			Detail: &chat.ErrorDetail{
				Category: string(api.CategoryUnknown),
				Message:  messageOr(wire.Error, "对话流处理出错"),
			},
		}, nil
	}

	raw := wire.Event
	if raw == "" {
		raw = wire.Type
	}
	return Event{Kind: KindUnknown, RawEvent: raw}, nil
}

// completionFrom 提取结束事件的元数据。resume_content 兼容两种形态：
// {markdown, title} 对象或裸字符串。
func completionFrom(wire wireFrame) *Completion {
	completion := &Completion{
		Status:         stringStatus(wire.Status),
		TaskID:         wire.TaskID,
		MessageID:      wire.MessageID,
		ConversationID: wire.ConversationID,
	}
	if completion.Status == "" {
		completion.Status = "completed"
	}

	if len(wire.ResumeContent) == 0 && wire.ResumeID == "" {
		return completion
	}

	artifact := &chat.Artifact{
		ResumeID: wire.ResumeID,
		EditURL:  wire.EditURL,
	}
	if len(wire.ResumeContent) > 0 {
		var structured struct {
			Markdown string `json:"markdown"`
			Title    string `json:"title"`
		}
		if err := json.Unmarshal(wire.ResumeContent, &structured); err == nil && structured.Markdown != "" {
			artifact.Markdown = structured.Markdown
			artifact.Title = structured.Title
		} else {
			var plain string
			if err := json.Unmarshal(wire.ResumeContent, &plain); err == nil {
				artifact.Markdown = plain
			}
		}
	}
	if artifact.Markdown == "" && artifact.ResumeID == "" {
		return completion
	}
	completion.Artifact = artifact
	return completion
}

// status 字段后端既发过数字也发过字符串。
func intStatus(raw json.RawMessage) int {
	var status int
	if err := json.Unmarshal(raw, &status); err == nil {
		return status
	}
	return 0
}

func stringStatus(raw json.RawMessage) string {
	var status string
	if err := json.Unmarshal(raw, &status); err == nil {
		return status
	}
	return ""
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
