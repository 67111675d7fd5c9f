package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/aivon/aivon/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// CreateBatch inserts all chunks of one ingested document in a single
// transaction so a failed ingestion leaves no partial chunk set behind.
func (r *ChunkRepo) CreateBatch(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const query = `
		INSERT INTO document_chunks (id, document_id, user_id, content, embedding, ordinal, meta, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range chunks {
		chunk := &chunks[i]
		meta, err := json.Marshal(chunk.Meta)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query,
			chunk.ID, chunk.DocumentID, chunk.UserID, chunk.Content,
			embeddingValue(chunk.Embedding), chunk.Ordinal, meta, chunk.Ctime); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const chunkColumns = `id, document_id, user_id, content, embedding, ordinal, meta, ctime`

// ListByUser returns all chunks of a user, optionally restricted to a
// document-id subset. The relevance scan over these rows is linear by design.
func (r *ChunkRepo) ListByUser(ctx context.Context, userID string, docIDs []string) ([]model.DocumentChunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM document_chunks WHERE user_id = ?`
	args := []interface{}{userID}
	if len(docIDs) > 0 {
		query += ` AND document_id IN (?)`
		var err error
		query, args, err = sqlx.In(query, userID, docIDs)
		if err != nil {
			return nil, err
		}
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []model.DocumentChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) ListMissingEmbedding(ctx context.Context, limit int) ([]model.DocumentChunk, error) {
	const query = `SELECT ` + chunkColumns + ` FROM document_chunks WHERE embedding IS NULL LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []model.DocumentChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	const query = `UPDATE document_chunks SET embedding = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, embeddingValue(embedding), chunkID)
	return err
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, docID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, docID)
	return err
}

func scanChunk(row rowScanner) (*model.DocumentChunk, error) {
	var chunk model.DocumentChunk
	var embedding pgvector.Vector
	var embeddingValid bool
	var meta []byte
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.UserID, &chunk.Content,
		&nullVector{vec: &embedding, valid: &embeddingValid}, &chunk.Ordinal, &meta, &chunk.Ctime); err != nil {
		return nil, err
	}
	if embeddingValid {
		chunk.Embedding = embedding.Slice()
	}
	if len(meta) > 0 && strings.TrimSpace(string(meta)) != "null" {
		if err := json.Unmarshal(meta, &chunk.Meta); err != nil {
			return nil, err
		}
	}
	return &chunk, nil
}
