package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/pkg/dbutil"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":           doc.ID,
		"user_id":      doc.UserID,
		"title":        doc.Title,
		"content_type": doc.ContentType,
		"file_key":     doc.FileKey,
		"chunk_count":  doc.ChunkCount,
		"ctime":        doc.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

const documentColumns = `id, user_id, title, content_type, file_key, chunk_count, ctime`

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND user_id = $2`
	row := r.db.QueryRowContext(ctx, query, docID, userID)
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.ContentType, &doc.FileKey, &doc.ChunkCount, &doc.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) ListByUser(ctx context.Context, userID string) ([]model.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY ctime DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.ContentType, &doc.FileKey, &doc.ChunkCount, &doc.Ctime); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// TitlesByIDs resolves document titles for search results.
func (r *DocumentRepo) TitlesByIDs(ctx context.Context, userID string, docIDs []string) (map[string]string, error) {
	if len(docIDs) == 0 {
		return map[string]string{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, title FROM documents WHERE user_id = ? AND id IN (?)`, userID, docIDs)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	titles := make(map[string]string)
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func (r *DocumentRepo) UpdateChunkCount(ctx context.Context, docID string, count int) error {
	const query = `UPDATE documents SET chunk_count = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, count, docID)
	return err
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	const query = `DELETE FROM documents WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, docID, userID)
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
