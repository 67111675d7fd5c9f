package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aivon/aivon/internal/filestore"
	"github.com/aivon/aivon/internal/pkg/errcode"
	"github.com/aivon/aivon/internal/pkg/response"
)

type FileHandler struct {
	store filestore.Store
}

func NewFileHandler(store filestore.Store) *FileHandler {
	return &FileHandler{store: store}
}

// Serve streams a stored file by key. Used by the local store; the s3 store
// hands out URLs that bypass this route.
func (h *FileHandler) Serve(c *gin.Context) {
	rc, err := h.store.Open(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, errcode.ErrNotFound, "file not found")
		return
	}
	defer rc.Close()
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
