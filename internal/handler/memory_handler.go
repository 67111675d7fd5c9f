package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/aivon/aivon/internal/memory"
	"github.com/aivon/aivon/internal/pkg/errcode"
	"github.com/aivon/aivon/internal/pkg/response"
)

type MemoryHandler struct {
	memories *memory.Service
}

func NewMemoryHandler(memories *memory.Service) *MemoryHandler {
	return &MemoryHandler{memories: memories}
}

func (h *MemoryHandler) List(c *gin.Context) {
	mems, err := h.memories.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, mems)
}

type createMemoryRequest struct {
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
}

func (h *MemoryHandler) Create(c *gin.Context) {
	var req createMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Content == "" {
		response.Error(c, errcode.ErrInvalid, "content required")
		return
	}
	mem, err := h.memories.Add(c.Request.Context(), getUserID(c), req.Content, req.Category, req.Importance, "")
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, mem)
}

func (h *MemoryHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.Error(c, errcode.ErrInvalid, "q required")
		return
	}
	results, err := h.memories.Search(c.Request.Context(), getUserID(c), query)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, results)
}

func (h *MemoryHandler) Delete(c *gin.Context) {
	if err := h.memories.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *MemoryHandler) DeleteAll(c *gin.Context) {
	if err := h.memories.DeleteAll(c.Request.Context(), getUserID(c)); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
