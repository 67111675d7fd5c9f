package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/pkg/dbutil"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
)

// DefaultPersonaID is seeded by migration and used when a chat has no
// persona of its own.
const DefaultPersonaID = "persona-default"

type PersonaRepo struct {
	db *sql.DB
}

func NewPersonaRepo(db *sql.DB) *PersonaRepo {
	return &PersonaRepo{db: db}
}

func (r *PersonaRepo) Create(ctx context.Context, persona *model.Persona) error {
	data := map[string]interface{}{
		"id":            persona.ID,
		"user_id":       nullableString(persona.UserID),
		"name":          persona.Name,
		"system_prompt": persona.SystemPrompt,
		"ctime":         persona.Ctime,
		"mtime":         persona.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("personas", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

const personaColumns = `id, user_id, name, system_prompt, ctime, mtime`

// GetByID resolves a persona the user may use: their own or a built-in one.
func (r *PersonaRepo) GetByID(ctx context.Context, userID, personaID string) (*model.Persona, error) {
	const query = `SELECT ` + personaColumns + ` FROM personas WHERE id = $1 AND (user_id = $2 OR user_id IS NULL)`
	row := r.db.QueryRowContext(ctx, query, personaID, userID)
	persona, err := scanPersona(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return persona, nil
}

func (r *PersonaRepo) ListForUser(ctx context.Context, userID string) ([]model.Persona, error) {
	const query = `SELECT ` + personaColumns + ` FROM personas WHERE user_id = $1 OR user_id IS NULL ORDER BY ctime ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var personas []model.Persona
	for rows.Next() {
		persona, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		personas = append(personas, *persona)
	}
	return personas, rows.Err()
}

func (r *PersonaRepo) Update(ctx context.Context, userID string, persona *model.Persona) error {
	const query = `UPDATE personas SET name = $1, system_prompt = $2, mtime = $3 WHERE id = $4 AND user_id = $5`
	result, err := r.db.ExecContext(ctx, query, persona.Name, persona.SystemPrompt, persona.Mtime, persona.ID, userID)
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

func (r *PersonaRepo) Delete(ctx context.Context, userID, personaID string) error {
	const query = `DELETE FROM personas WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, personaID, userID)
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

func scanPersona(row rowScanner) (*model.Persona, error) {
	var persona model.Persona
	var userID sql.NullString
	if err := row.Scan(&persona.ID, &userID, &persona.Name, &persona.SystemPrompt, &persona.Ctime, &persona.Mtime); err != nil {
		return nil, err
	}
	persona.UserID = userID.String
	return &persona, nil
}
