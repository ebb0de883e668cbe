package resume

import "time"

// Resume 后端持有的简历记录，客户端在编辑器中缓存一份副本。
type Resume struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	RawMarkdown string    `json:"raw_markdown"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Draft is the mutable subset sent on create/update.
type Draft struct {
	Title       string `json:"title,omitempty"`
	RawMarkdown string `json:"raw_markdown,omitempty"`
}
