package models

import "time"

// ChatSource 是回答所引用的一条备忘录，按检索时的相似度顺序返回。
type ChatSource struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatAnswer 是一次问答调用的结果。
type ChatAnswer struct {
	Answer  string       `json:"answer"`
	Sources []ChatSource `json:"sources"`
}

// ChatTurn 是会话中的一轮对话，仅存在于调用方会话内，核心不持久化。
type ChatTurn struct {
	ID        string       `json:"id"`
	Role      string       `json:"role"` // "user" 或 "assistant"
	Content   string       `json:"content"`
	Sources   []ChatSource `json:"sources,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
