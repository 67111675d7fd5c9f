package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/pkg/dbutil"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
)

type ToolRepo struct {
	db *sql.DB
}

func NewToolRepo(db *sql.DB) *ToolRepo {
	return &ToolRepo{db: db}
}

const toolColumns = `name, display_name, description, permission, default_enabled, mtime`

func (r *ToolRepo) List(ctx context.Context) ([]model.ToolDefinition, error) {
	const query = `SELECT ` + toolColumns + ` FROM tool_definitions ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []model.ToolDefinition
	for rows.Next() {
		var def model.ToolDefinition
		var perm string
		if err := rows.Scan(&def.Name, &def.DisplayName, &def.Description, &perm, &def.DefaultEnabled, &def.Mtime); err != nil {
			return nil, err
		}
		def.Permission = model.ToolPermission(perm)
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *ToolRepo) UpdatePermission(ctx context.Context, name string, permission model.ToolPermission, defaultEnabled bool, now int64) error {
	where := map[string]interface{}{"name": name}
	update := map[string]interface{}{
		"permission":      string(permission),
		"default_enabled": defaultEnabled,
		"mtime":           now,
	}
	sqlStr, args, err := builder.BuildUpdate("tool_definitions", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
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

// Overrides returns the per-user enable/disable choices keyed by tool name.
func (r *ToolRepo) Overrides(ctx context.Context, userID string) (map[string]bool, error) {
	const query = `SELECT tool_name, enabled FROM tool_user_overrides WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	overrides := make(map[string]bool)
	for rows.Next() {
		var name string
		var enabled bool
		if err := rows.Scan(&name, &enabled); err != nil {
			return nil, err
		}
		overrides[name] = enabled
	}
	return overrides, rows.Err()
}

func (r *ToolRepo) SetOverride(ctx context.Context, userID, toolName string, enabled bool, now int64) error {
	const query = `
		INSERT INTO tool_user_overrides (user_id, tool_name, enabled, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, tool_name) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query, userID, toolName, enabled, now)
	return err
}

func (r *ToolRepo) ClearOverride(ctx context.Context, userID, toolName string) error {
	const query = `DELETE FROM tool_user_overrides WHERE user_id = $1 AND tool_name = $2`
	_, err := r.db.ExecContext(ctx, query, userID, toolName)
	return err
}
