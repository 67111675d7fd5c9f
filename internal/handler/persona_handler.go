package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/pkg/errcode"
	"github.com/aivon/aivon/internal/pkg/response"
	"github.com/aivon/aivon/internal/repo"
	"github.com/aivon/aivon/internal/service"
)

type PersonaHandler struct {
	personas *repo.PersonaRepo
}

func NewPersonaHandler(personas *repo.PersonaRepo) *PersonaHandler {
	return &PersonaHandler{personas: personas}
}

type personaRequest struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
}

func (h *PersonaHandler) Create(c *gin.Context) {
	var req personaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Name == "" || req.SystemPrompt == "" {
		response.Error(c, errcode.ErrInvalid, "name and system_prompt required")
		return
	}
	now := time.Now().Unix()
	persona := &model.Persona{
		ID:           service.NewID(),
		UserID:       getUserID(c),
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		Ctime:        now,
		Mtime:        now,
	}
	if err := h.personas.Create(c.Request.Context(), persona); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, persona)
}

func (h *PersonaHandler) List(c *gin.Context) {
	personas, err := h.personas.ListForUser(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, personas)
}

func (h *PersonaHandler) Update(c *gin.Context) {
	var req personaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	userID := getUserID(c)
	persona, err := h.personas.GetByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if req.Name != "" {
		persona.Name = req.Name
	}
	if req.SystemPrompt != "" {
		persona.SystemPrompt = req.SystemPrompt
	}
	persona.Mtime = time.Now().Unix()
	if err := h.personas.Update(c.Request.Context(), userID, persona); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, persona)
}

func (h *PersonaHandler) Delete(c *gin.Context) {
	if err := h.personas.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
