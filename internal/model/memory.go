package model

// Memory is a durable fact about one user. SupersededBy links to the memory
// that absorbed this one during consolidation; superseded records are kept
// for audit rather than deleted.
type Memory struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	Importance   float64   `json:"importance"`
	Embedding    []float32 `json:"-"`
	SourceChatID string    `json:"source_chat_id,omitempty"`
	AccessCount  int       `json:"access_count"`
	SupersededBy string    `json:"superseded_by,omitempty"`
	Ctime        int64     `json:"ctime"`
	LastAccessed int64     `json:"last_accessed"`
}
