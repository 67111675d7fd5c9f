package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aivon/aivon/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Chats     *ChatHandler
	Documents *DocumentHandler
	Memories  *MemoryHandler
	Personas  *PersonaHandler
	Tools     *ToolHandler
	Stats     *StatsHandler
	Files     *FileHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)
	api.GET("/files/:key", deps.Files.Serve)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/auth/me", deps.Auth.Me)

	authGroup.POST("/chats", deps.Chats.Create)
	authGroup.GET("/chats", deps.Chats.List)
	authGroup.GET("/chats/:id", deps.Chats.Get)
	authGroup.PUT("/chats/:id", deps.Chats.Update)
	authGroup.DELETE("/chats/:id", deps.Chats.Delete)
	authGroup.GET("/chats/:id/messages", deps.Chats.Messages)

	generate := authGroup.Group("")
	generate.Use(middleware.RateLimit(time.Second))
	generate.POST("/chats/:id/generate", deps.Chats.Generate)
	generate.POST("/chats/:id/generate/stream", deps.Chats.GenerateStream)

	authGroup.POST("/documents", deps.Documents.Upload)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.GET("/documents/:id/download", deps.Documents.Download)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.GET("/memories", deps.Memories.List)
	authGroup.POST("/memories", deps.Memories.Create)
	authGroup.GET("/memories/search", deps.Memories.Search)
	authGroup.DELETE("/memories/:id", deps.Memories.Delete)
	authGroup.DELETE("/memories", deps.Memories.DeleteAll)

	authGroup.POST("/personas", deps.Personas.Create)
	authGroup.GET("/personas", deps.Personas.List)
	authGroup.PUT("/personas/:id", deps.Personas.Update)
	authGroup.DELETE("/personas/:id", deps.Personas.Delete)

	authGroup.GET("/tools", deps.Tools.List)
	authGroup.PUT("/tools/:name/override", deps.Tools.SetOverride)
	authGroup.DELETE("/tools/:name/override", deps.Tools.ClearOverride)

	authGroup.GET("/stats", deps.Stats.Get)

	adminGroup := authGroup.Group("")
	adminGroup.Use(middleware.AdminOnly())
	adminGroup.PUT("/tools/:name/permission", deps.Tools.UpdatePermission)
}
