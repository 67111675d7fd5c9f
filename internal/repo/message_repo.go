package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/aivon/aivon/internal/model"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, msg *model.Message) error {
	actions, err := json.Marshal(msg.Actions)
	if err != nil {
		return err
	}
	docIDs, err := json.Marshal(msg.DocumentIDs)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO messages (id, chat_id, role, content, thinking, actions, document_ids, model, prompt_tokens, completion_tokens, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		msg.ID, msg.ChatID, string(msg.Role), msg.Content, msg.Thinking,
		actions, docIDs, msg.Model, msg.TokenUsage.Prompt, msg.TokenUsage.Completion, msg.Ctime)
	return err
}

const messageColumns = `id, chat_id, role, content, thinking, actions, document_ids, model, prompt_tokens, completion_tokens, ctime`

func (r *MessageRepo) GetByID(ctx context.Context, msgID string) (*model.Message, error) {
	const query = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, msgID)
	msg, err := scanMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (r *MessageRepo) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	const query = `SELECT ` + messageColumns + ` FROM messages WHERE chat_id = $1 ORDER BY ctime ASC, id ASC`
	return r.list(ctx, query, chatID)
}

// ListRecent returns the newest messages of a chat in chronological order.
func (r *MessageRepo) ListRecent(ctx context.Context, chatID string, limit int) ([]model.Message, error) {
	const query = `
		SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + ` FROM messages WHERE chat_id = $1 ORDER BY ctime DESC, id DESC LIMIT $2
		) recent ORDER BY ctime ASC, id ASC
	`
	return r.list(ctx, query, chatID, limit)
}

func (r *MessageRepo) CountByChat(ctx context.Context, chatID string) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE chat_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, chatID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var msg model.Message
	var role string
	var actions, docIDs []byte
	if err := row.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &msg.Thinking,
		&actions, &docIDs, &msg.Model, &msg.TokenUsage.Prompt, &msg.TokenUsage.Completion, &msg.Ctime); err != nil {
		return nil, err
	}
	msg.Role = model.MessageRole(role)
	msg.TokenUsage.Total = msg.TokenUsage.Prompt + msg.TokenUsage.Completion
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &msg.Actions); err != nil {
			return nil, err
		}
	}
	if len(docIDs) > 0 {
		if err := json.Unmarshal(docIDs, &msg.DocumentIDs); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}
