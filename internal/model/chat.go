package model

// DefaultChatTitle is the placeholder a chat keeps until the model names it.
const DefaultChatTitle = "New Chat"

type Chat struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Title        string   `json:"title"`
	PersonaID    string   `json:"persona_id,omitempty"`
	ToolNames    []string `json:"tool_names,omitempty"`
	VoiceMode    bool     `json:"voice_mode"`
	MessageCount int      `json:"message_count"`
	LastActivity int64    `json:"last_activity"`
	Ctime        int64    `json:"ctime"`
}

type Persona struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id,omitempty"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}
