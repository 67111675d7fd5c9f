package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/config"
	"github.com/aivon/aivon/internal/db"
	"github.com/aivon/aivon/internal/embedcache"
	"github.com/aivon/aivon/internal/filestore"
	"github.com/aivon/aivon/internal/handler"
	"github.com/aivon/aivon/internal/job"
	"github.com/aivon/aivon/internal/memory"
	"github.com/aivon/aivon/internal/middleware"
	"github.com/aivon/aivon/internal/orchestrator"
	"github.com/aivon/aivon/internal/rag"
	"github.com/aivon/aivon/internal/repo"
	"github.com/aivon/aivon/internal/schedule"
	"github.com/aivon/aivon/internal/service"
	"github.com/aivon/aivon/internal/tools"
	"github.com/aivon/aivon/internal/websearch"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "aivon",
		Short: "aivon assistant backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run aivon server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("chat_model", cfg.AI.ChatModel),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(database)
	chatRepo := repo.NewChatRepo(database)
	messageRepo := repo.NewMessageRepo(database)
	memoryRepo := repo.NewMemoryRepo(database)
	documentRepo := repo.NewDocumentRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	toolRepo := repo.NewToolRepo(database)
	personaRepo := repo.NewPersonaRepo(database)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(database)

	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedCacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.EmbedCacheSize,
		time.Duration(cfg.AI.EmbedCacheTTL)*time.Minute)
	manager := ai.NewManager(aiProvider, embedder, ai.ManagerConfig{
		ChatModel:     cfg.AI.ChatModel,
		TitleModel:    cfg.AI.TitleModel,
		Temperature:   cfg.AI.Temperature,
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	})

	searchClient := websearch.NewClient(cfg.WebSearch.BaseURL,
		time.Duration(cfg.WebSearch.Timeout)*time.Second)

	registry := tools.NewRegistry()
	registry.Register(&tools.CurrentTimeTool{})
	registry.Register(&tools.CalculatorTool{})
	registry.Register(tools.NewWebSearchTool(searchClient))
	resolver := tools.NewResolver(toolRepo, registry)

	ragService := rag.NewService(documentRepo, chunkRepo, manager, service.NewID, rag.Config{
		TopK:         cfg.Pipeline.DocumentTopK,
		ChunkSize:    cfg.Pipeline.ChunkSize,
		ChunkOverlap: cfg.Pipeline.ChunkOverlap,
	})
	memoryService := memory.NewService(memoryRepo, manager, manager, service.NewID, memory.Config{
		TopK:                 cfg.Memory.TopK,
		ConsolidateThreshold: cfg.Memory.ConsolidateThreshold,
		MaxExtractedPerTurn:  cfg.Memory.ExtractWindow,
	})

	orch := orchestrator.New(orchestrator.Deps{
		Chats:    chatRepo,
		Messages: messageRepo,
		Personas: personaRepo,
		Memories: memoryService,
		Docs:     ragService,
		Web:      searchClient,
		Tools:    resolver,
		LLM:      manager,
		Limiter:  orchestrator.NewLimiter(cfg.Pipeline.MaxActiveTurns),
		NewID:    service.NewID,
	}, orchestrator.Config{
		HistoryLimit:     cfg.Pipeline.HistoryLimit,
		ToolRounds:       cfg.Pipeline.ToolRounds,
		ConsolidateEvery: cfg.Memory.ConsolidateEvery,
	})

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	authService := service.NewAuthService(userRepo, cfg.JWTSecret,
		time.Hour*time.Duration(cfg.JWTTTLHours))
	documentService := service.NewDocumentService(documentRepo, ragService, store)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Chats:     handler.NewChatHandler(chatRepo, messageRepo, orch),
		Documents: handler.NewDocumentHandler(documentService),
		Memories:  handler.NewMemoryHandler(memoryService),
		Personas:  handler.NewPersonaHandler(personaRepo),
		Tools:     handler.NewToolHandler(toolRepo),
		Stats:     handler.NewStatsHandler(orch, chatRepo),
		Files:     handler.NewFileHandler(store),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			// chat routes carry SSE; gzip would buffer the stream
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/chats"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewScheduler()
	if err := scheduler.AddJob(job.NewMemoryConsolidationJob(memoryRepo, memoryService), "0 3 * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingBackfillJob(memoryRepo, chunkRepo, embedder), "*/5 * * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embedCacheRepo, 0), "30 4 * * *"); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go orch.Warmup(ctx)

	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
