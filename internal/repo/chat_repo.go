package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/pkg/dbutil"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) Create(ctx context.Context, chat *model.Chat) error {
	tools, err := json.Marshal(chat.ToolNames)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":            chat.ID,
		"user_id":       chat.UserID,
		"title":         chat.Title,
		"persona_id":    nullableString(chat.PersonaID),
		"tool_names":    tools,
		"voice_mode":    chat.VoiceMode,
		"message_count": chat.MessageCount,
		"last_activity": chat.LastActivity,
		"ctime":         chat.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("chats", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

const chatColumns = `id, user_id, title, persona_id, tool_names, voice_mode, message_count, last_activity, ctime`

func (r *ChatRepo) GetByID(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	const query = `SELECT ` + chatColumns + ` FROM chats WHERE id = $1 AND user_id = $2`
	row := r.db.QueryRowContext(ctx, query, chatID, userID)
	chat, err := scanChat(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return chat, nil
}

func (r *ChatRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Chat, error) {
	const query = `SELECT ` + chatColumns + ` FROM chats WHERE user_id = $1 ORDER BY last_activity DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chats []model.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, rows.Err()
}

// Touch bumps last-activity and the running message counter, returning the
// new total so callers can drive every-Nth-message triggers.
func (r *ChatRepo) Touch(ctx context.Context, userID, chatID string, now int64, newMessages int) (int, error) {
	const query = `
		UPDATE chats SET last_activity = $1, message_count = message_count + $2
		WHERE id = $3 AND user_id = $4
		RETURNING message_count
	`
	var total int
	if err := r.db.QueryRowContext(ctx, query, now, newMessages, chatID, userID).Scan(&total); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErr.ErrNotFound
		}
		return 0, err
	}
	return total, nil
}

func (r *ChatRepo) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	const query = `UPDATE chats SET title = $1 WHERE id = $2 AND user_id = $3`
	result, err := r.db.ExecContext(ctx, query, title, chatID, userID)
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

// UpdateSettings rewrites the chat's persona, tool selection and voice flag.
func (r *ChatRepo) UpdateSettings(ctx context.Context, userID, chatID, personaID string, toolNames []string, voiceMode bool) error {
	tools, err := json.Marshal(toolNames)
	if err != nil {
		return err
	}
	const query = `UPDATE chats SET persona_id = $1, tool_names = $2, voice_mode = $3 WHERE id = $4 AND user_id = $5`
	result, err := r.db.ExecContext(ctx, query, nullableString(personaID), tools, voiceMode, chatID, userID)
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

func (r *ChatRepo) Delete(ctx context.Context, userID, chatID string) error {
	const query = `DELETE FROM chats WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, chatID, userID)
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
	_, err = r.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID)
	return err
}

func (r *ChatRepo) TotalMessagesByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COALESCE(SUM(message_count), 0) FROM chats WHERE user_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChat(row rowScanner) (*model.Chat, error) {
	var chat model.Chat
	var personaID sql.NullString
	var tools []byte
	if err := row.Scan(&chat.ID, &chat.UserID, &chat.Title, &personaID, &tools,
		&chat.VoiceMode, &chat.MessageCount, &chat.LastActivity, &chat.Ctime); err != nil {
		return nil, err
	}
	chat.PersonaID = personaID.String
	if len(tools) > 0 {
		if err := json.Unmarshal(tools, &chat.ToolNames); err != nil {
			return nil, err
		}
	}
	return &chat, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
