package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/pkg/errcode"
	"github.com/aivon/aivon/internal/pkg/response"
	"github.com/aivon/aivon/internal/repo"
	"github.com/aivon/aivon/internal/tools"
)

type ToolHandler struct {
	repo *repo.ToolRepo
}

func NewToolHandler(toolRepo *repo.ToolRepo) *ToolHandler {
	return &ToolHandler{repo: toolRepo}
}

type toolView struct {
	model.ToolDefinition
	Enabled     bool  `json:"enabled"`
	HasOverride bool  `json:"has_override"`
	Override    *bool `json:"override,omitempty"`
}

// List reports every registered tool with the effective enabled state for
// the calling user.
func (h *ToolHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	defs, err := h.repo.List(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	overrides, err := h.repo.Overrides(ctx, getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	isAdmin := getIsAdmin(c)
	views := make([]toolView, 0, len(defs))
	for _, def := range defs {
		var override *bool
		if v, ok := overrides[def.Name]; ok {
			enabled := v
			override = &enabled
		}
		views = append(views, toolView{
			ToolDefinition: def,
			Enabled:        tools.Allowed(def, isAdmin, override),
			HasOverride:    override != nil,
			Override:       override,
		})
	}
	response.Success(c, views)
}

type setOverrideRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *ToolHandler) SetOverride(c *gin.Context) {
	var req setOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	name := c.Param("name")
	if err := h.repo.SetOverride(c.Request.Context(), getUserID(c), name, req.Enabled, time.Now().Unix()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ToolHandler) ClearOverride(c *gin.Context) {
	if err := h.repo.ClearOverride(c.Request.Context(), getUserID(c), c.Param("name")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type updatePermissionRequest struct {
	Permission     string `json:"permission"`
	DefaultEnabled bool   `json:"default_enabled"`
}

var validPermissions = map[model.ToolPermission]bool{
	model.ToolDisabled:   true,
	model.ToolAdminOnly:  true,
	model.ToolAlwaysOn:   true,
	model.ToolUserToggle: true,
	model.ToolOptIn:      true,
}

// UpdatePermission changes the site-wide availability of a tool. Admin only.
func (h *ToolHandler) UpdatePermission(c *gin.Context) {
	var req updatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	perm := model.ToolPermission(req.Permission)
	if !validPermissions[perm] {
		response.Error(c, errcode.ErrInvalid, "unknown permission level")
		return
	}
	if err := h.repo.UpdatePermission(c.Request.Context(), c.Param("name"), perm, req.DefaultEnabled, time.Now().Unix()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
