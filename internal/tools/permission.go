package tools

import (
	"context"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/repo"
)

// Allowed decides whether one user may invoke one tool. The override is the
// user's stored toggle, nil when the user never touched it.
//
//	disabled     nobody, overrides ignored
//	admin_only   admins only, overrides ignored
//	always_on    everybody, overrides ignored
//	user_toggle  the override wins, otherwise the tool's default
//	opt_in       off until the user explicitly enables it
func Allowed(def model.ToolDefinition, isAdmin bool, override *bool) bool {
	switch def.Permission {
	case model.ToolDisabled:
		return false
	case model.ToolAdminOnly:
		return isAdmin
	case model.ToolAlwaysOn:
		return true
	case model.ToolUserToggle:
		if override != nil {
			return *override
		}
		return def.DefaultEnabled
	case model.ToolOptIn:
		return override != nil && *override
	default:
		return false
	}
}

// Resolver combines the stored tool definitions, per-user overrides and the
// in-process registry into the tool set one turn may use.
type Resolver struct {
	repo     *repo.ToolRepo
	registry *Registry
}

func NewResolver(toolRepo *repo.ToolRepo, registry *Registry) *Resolver {
	return &Resolver{repo: toolRepo, registry: registry}
}

// EnabledForUser returns the tools the user may invoke. A non-empty
// chatTools list further restricts the set to the chat's selection.
func (r *Resolver) EnabledForUser(ctx context.Context, userID string, isAdmin bool, chatTools []string) ([]Tool, error) {
	defs, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	overrides, err := r.repo.Overrides(ctx, userID)
	if err != nil {
		return nil, err
	}
	selected := make(map[string]bool, len(chatTools))
	for _, name := range chatTools {
		selected[name] = true
	}
	var out []Tool
	for _, def := range defs {
		var override *bool
		if v, ok := overrides[def.Name]; ok {
			override = &v
		}
		if !Allowed(def, isAdmin, override) {
			continue
		}
		if len(selected) > 0 && !selected[def.Name] {
			continue
		}
		tool, ok := r.registry.Get(def.Name)
		if !ok {
			continue
		}
		out = append(out, tool)
	}
	return out, nil
}

// Specs converts a tool set to the wire shape sent with a chat request.
func Specs(list []Tool) []ai.ToolSpec {
	if len(list) == 0 {
		return nil
	}
	specs := make([]ai.ToolSpec, 0, len(list))
	for _, t := range list {
		specs = append(specs, ai.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return specs
}
