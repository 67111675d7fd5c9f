package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/middleware"
	"github.com/aivon/aivon/internal/pkg/errcode"
	appErr "github.com/aivon/aivon/internal/pkg/errors"
	"github.com/aivon/aivon/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func getIsAdmin(c *gin.Context) bool {
	value, _ := c.Get(middleware.ContextIsAdminKey)
	isAdmin, _ := value.(bool)
	return isAdmin
}

func handleError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTurnLimit, "too many active conversations, try again shortly")
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "model unavailable, try again shortly")
	default:
		logutil.GetLogger(c.Request.Context()).Error("request failed",
			zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
