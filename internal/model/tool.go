package model

type ToolPermission string

const (
	ToolDisabled   ToolPermission = "disabled"
	ToolAdminOnly  ToolPermission = "admin_only"
	ToolAlwaysOn   ToolPermission = "always_on"
	ToolUserToggle ToolPermission = "user_toggle"
	ToolOptIn      ToolPermission = "opt_in"
)

type ToolDefinition struct {
	Name           string         `json:"name"`
	DisplayName    string         `json:"display_name"`
	Description    string         `json:"description"`
	Permission     ToolPermission `json:"permission"`
	DefaultEnabled bool           `json:"default_enabled"`
	Mtime          int64          `json:"mtime"`
}

type ToolUserOverride struct {
	UserID   string `json:"user_id"`
	ToolName string `json:"tool_name"`
	Enabled  bool   `json:"enabled"`
	Mtime    int64  `json:"mtime"`
}
