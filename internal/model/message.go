package model

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

type ActionKind string

const (
	ActionToolCall     ActionKind = "tool_call"
	ActionSubAgent     ActionKind = "sub_agent"
	ActionRetrieval    ActionKind = "retrieval"
	ActionMemoryRecall ActionKind = "memory_recall"
	ActionWebSearch    ActionKind = "web_search"
)

type ActionStatus string

const (
	ActionPending  ActionStatus = "pending"
	ActionRunning  ActionStatus = "running"
	ActionComplete ActionStatus = "complete"
	ActionFailed   ActionStatus = "failed"
)

// Action records one augmentation or tool invocation performed while
// producing a single assistant message. Append-only during generation,
// frozen once the parent message is persisted.
type Action struct {
	ID         string                 `json:"id"`
	Kind       ActionKind             `json:"kind"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Status     ActionStatus           `json:"status"`
	Result     string                 `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  int64                  `json:"started_at"`
	EndedAt    int64                  `json:"ended_at,omitempty"`
	Children   []Action               `json:"children,omitempty"`
}

type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Message is immutable once persisted.
type Message struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chat_id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	Thinking    string      `json:"thinking,omitempty"`
	Actions     []Action    `json:"actions,omitempty"`
	DocumentIDs []string    `json:"document_ids,omitempty"`
	Model       string      `json:"model,omitempty"`
	TokenUsage  TokenUsage  `json:"token_usage"`
	Ctime       int64       `json:"ctime"`
}
