package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/orchestrator"
	"github.com/aivon/aivon/internal/pkg/errcode"
	"github.com/aivon/aivon/internal/pkg/response"
	"github.com/aivon/aivon/internal/repo"
	"github.com/aivon/aivon/internal/service"
)

type ChatHandler struct {
	chats *repo.ChatRepo
	msgs  *repo.MessageRepo
	orch  *orchestrator.Orchestrator
}

func NewChatHandler(chats *repo.ChatRepo, msgs *repo.MessageRepo, orch *orchestrator.Orchestrator) *ChatHandler {
	return &ChatHandler{chats: chats, msgs: msgs, orch: orch}
}

type createChatRequest struct {
	PersonaID string   `json:"persona_id"`
	ToolNames []string `json:"tool_names"`
	VoiceMode bool     `json:"voice_mode"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req createChatRequest
	// empty body means all defaults
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	now := time.Now().Unix()
	chat := &model.Chat{
		ID:           service.NewID(),
		UserID:       getUserID(c),
		Title:        model.DefaultChatTitle,
		PersonaID:    req.PersonaID,
		ToolNames:    req.ToolNames,
		VoiceMode:    req.VoiceMode,
		LastActivity: now,
		Ctime:        now,
	}
	if err := h.chats.Create(c.Request.Context(), chat); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chat)
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chats.ListByUser(c.Request.Context(), getUserID(c), 200)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chats)
}

func (h *ChatHandler) Get(c *gin.Context) {
	chat, err := h.chats.GetByID(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, chat)
}

func (h *ChatHandler) Messages(c *gin.Context) {
	// ownership check first; messages are keyed by chat only
	if _, err := h.chats.GetByID(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	msgs, err := h.msgs.ListByChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, msgs)
}

type updateChatRequest struct {
	Title     *string   `json:"title"`
	PersonaID *string   `json:"persona_id"`
	ToolNames *[]string `json:"tool_names"`
	VoiceMode *bool     `json:"voice_mode"`
}

func (h *ChatHandler) Update(c *gin.Context) {
	var req updateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	userID := getUserID(c)
	chat, err := h.chats.GetByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if req.PersonaID != nil {
		chat.PersonaID = *req.PersonaID
	}
	if req.ToolNames != nil {
		chat.ToolNames = *req.ToolNames
	}
	if req.VoiceMode != nil {
		chat.VoiceMode = *req.VoiceMode
	}
	if err := h.chats.UpdateSettings(c.Request.Context(), userID, chat.ID, chat.PersonaID, chat.ToolNames, chat.VoiceMode); err != nil {
		handleError(c, err)
		return
	}
	if req.Title != nil && *req.Title != "" {
		chat.Title = *req.Title
		if err := h.chats.UpdateTitle(c.Request.Context(), userID, chat.ID, chat.Title); err != nil {
			handleError(c, err)
			return
		}
	}
	response.Success(c, chat)
}

func (h *ChatHandler) Delete(c *gin.Context) {
	if err := h.chats.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type generateRequest struct {
	Text        string   `json:"text"`
	DocumentIDs []string `json:"document_ids"`
	Model       string   `json:"model"`
}

// Generate runs a turn buffered and returns the assistant message.
func (h *ChatHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	msg, err := h.orch.Generate(c.Request.Context(), orchestrator.Request{
		UserID:        getUserID(c),
		IsAdmin:       getIsAdmin(c),
		ChatID:        c.Param("id"),
		Text:          req.Text,
		DocumentIDs:   req.DocumentIDs,
		ModelOverride: req.Model,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, msg)
}

// GenerateStream runs a turn and delivers events over SSE. Errors after the
// stream opens travel as error events; errors before it opens use the normal
// JSON envelope.
func (h *ChatHandler) GenerateStream(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, errcode.ErrInternal, "streaming unsupported")
		return
	}

	opened := false
	sink := func(ev orchestrator.Event) error {
		if !opened {
			header := c.Writer.Header()
			header.Set("Content-Type", "text/event-stream")
			header.Set("Cache-Control", "no-cache")
			header.Set("Connection", "keep-alive")
			header.Set("X-Accel-Buffering", "no")
			c.Writer.WriteHeader(http.StatusOK)
			opened = true
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := h.orch.GenerateStream(c.Request.Context(), orchestrator.Request{
		UserID:        getUserID(c),
		IsAdmin:       getIsAdmin(c),
		ChatID:        c.Param("id"),
		Text:          req.Text,
		DocumentIDs:   req.DocumentIDs,
		ModelOverride: req.Model,
	}, sink)
	if err != nil && !opened {
		handleError(c, err)
	}
}
