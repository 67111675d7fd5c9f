package model

type Document struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	FileKey     string `json:"file_key,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	Ctime       int64  `json:"ctime"`
}

// DocumentChunk is the unit of retrieval: a bounded, overlapping slice of a
// source document with its embedding and position.
type DocumentChunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	UserID     string            `json:"user_id"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"-"`
	Ordinal    int               `json:"ordinal"`
	Meta       map[string]string `json:"meta,omitempty"`
	Ctime      int64             `json:"ctime"`
}
