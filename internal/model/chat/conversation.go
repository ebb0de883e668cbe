package chat

// Status 对话状态。除显式重置外状态单调前进：
// inactive → starting → active → (completed | error)。
type Status string

const (
	StatusInactive  Status = "inactive"
	StatusStarting  Status = "starting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Artifact 对话完成后产出的简历：Markdown 内容、记录 ID 与编辑入口。
type Artifact struct {
	Markdown string `json:"markdown"`
	Title    string `json:"title,omitempty"`
	ResumeID string `json:"resume_id,omitempty"`
	EditURL  string `json:"edit_url,omitempty"`
}

// Conversation 一次 AI 引导的简历草拟会话。
type Conversation struct {
	ID       string    `json:"conversation_id"`
	Status   Status    `json:"status"`
	Messages []Message `json:"messages"`
	Artifact *Artifact `json:"artifact,omitempty"`
}

// AcceptsInput reports whether further user turns are allowed.
// completed 并非终态：产出简历后仍可继续追问以迭代完善。
func (c Conversation) AcceptsInput() bool {
	return c.Status == StatusActive || (c.Status == StatusCompleted && c.Artifact != nil)
}
