package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/aivon/aivon/internal/model"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
)

type MemoryRepo struct {
	db *sql.DB
}

func NewMemoryRepo(db *sql.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

const memoryColumns = `id, user_id, content, category, importance, embedding, source_chat_id, access_count, superseded_by, ctime, last_accessed`

func (r *MemoryRepo) Create(ctx context.Context, mem *model.Memory) error {
	const query = `
		INSERT INTO memories (id, user_id, content, category, importance, embedding, source_chat_id, access_count, ctime, last_accessed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		mem.ID, mem.UserID, mem.Content, mem.Category, mem.Importance,
		embeddingValue(mem.Embedding), nullableString(mem.SourceChatID),
		mem.AccessCount, mem.Ctime, mem.LastAccessed)
	return err
}

// ListActiveByUser returns the user's memories that have not been superseded.
func (r *MemoryRepo) ListActiveByUser(ctx context.Context, userID string) ([]model.Memory, error) {
	const query = `SELECT ` + memoryColumns + ` FROM memories WHERE user_id = $1 AND superseded_by IS NULL ORDER BY ctime DESC`
	return r.list(ctx, query, userID)
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Memory, error) {
	const query = `SELECT ` + memoryColumns + ` FROM memories WHERE user_id = $1 ORDER BY ctime DESC LIMIT $2`
	return r.list(ctx, query, userID, limit)
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID, memID string) (*model.Memory, error) {
	const query = `SELECT ` + memoryColumns + ` FROM memories WHERE id = $1 AND user_id = $2`
	row := r.db.QueryRowContext(ctx, query, memID, userID)
	mem, err := scanMemory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return mem, nil
}

// ExistsByContent reports whether the user already holds a memory with this
// exact content. Used to keep background extraction idempotent.
func (r *MemoryRepo) ExistsByContent(ctx context.Context, userID, content string) (bool, error) {
	const query = `SELECT 1 FROM memories WHERE user_id = $1 AND content = $2 AND superseded_by IS NULL LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, query, userID, content).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkAccessed bumps access counters on the memories returned by a search.
func (r *MemoryRepo) MarkAccessed(ctx context.Context, ids []string, now int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id IN (?)`, now, ids)
	if err != nil {
		return err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// UpdateConsolidated rewrites the surviving memory of a merge.
func (r *MemoryRepo) UpdateConsolidated(ctx context.Context, userID, memID, content string, importance float64, embedding []float32) error {
	const query = `UPDATE memories SET content = $1, importance = $2, embedding = $3 WHERE id = $4 AND user_id = $5`
	_, err := r.db.ExecContext(ctx, query, content, importance, embeddingValue(embedding), memID, userID)
	return err
}

// MarkSuperseded points a merged-away memory at its survivor.
func (r *MemoryRepo) MarkSuperseded(ctx context.Context, userID, memID, survivorID string) error {
	const query = `UPDATE memories SET superseded_by = $1 WHERE id = $2 AND user_id = $3`
	_, err := r.db.ExecContext(ctx, query, survivorID, memID, userID)
	return err
}

func (r *MemoryRepo) UpdateEmbedding(ctx context.Context, memID string, embedding []float32) error {
	const query = `UPDATE memories SET embedding = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, embeddingValue(embedding), memID)
	return err
}

func (r *MemoryRepo) Delete(ctx context.Context, userID, memID string) error {
	const query = `DELETE FROM memories WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, memID, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *MemoryRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE user_id = $1`, userID)
	return err
}

// ListMissingEmbedding returns memories whose embedding was never written,
// typically because the embedding provider was down at creation time.
func (r *MemoryRepo) ListMissingEmbedding(ctx context.Context, limit int) ([]model.Memory, error) {
	const query = `SELECT ` + memoryColumns + ` FROM memories WHERE embedding IS NULL AND superseded_by IS NULL LIMIT $1`
	return r.list(ctx, query, limit)
}

// ListUserIDs returns the distinct owners of active memories, for sweep jobs.
func (r *MemoryRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM memories WHERE superseded_by IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MemoryRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.Memory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mems []model.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		mems = append(mems, *mem)
	}
	return mems, rows.Err()
}

func scanMemory(row rowScanner) (*model.Memory, error) {
	var mem model.Memory
	var embedding pgvector.Vector
	var embeddingValid bool
	var sourceChat, supersededBy sql.NullString
	// embedding is nullable; scan through a wrapper
	if err := row.Scan(&mem.ID, &mem.UserID, &mem.Content, &mem.Category, &mem.Importance,
		&nullVector{vec: &embedding, valid: &embeddingValid}, &sourceChat,
		&mem.AccessCount, &supersededBy, &mem.Ctime, &mem.LastAccessed); err != nil {
		return nil, err
	}
	if embeddingValid {
		mem.Embedding = embedding.Slice()
	}
	mem.SourceChatID = sourceChat.String
	mem.SupersededBy = supersededBy.String
	return &mem, nil
}

// nullVector scans a nullable pgvector column.
type nullVector struct {
	vec   *pgvector.Vector
	valid *bool
}

func (n *nullVector) Scan(src interface{}) error {
	if src == nil {
		*n.valid = false
		return nil
	}
	*n.valid = true
	return n.vec.Scan(src)
}

func embeddingValue(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}
