package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database    DatabaseConfig   `json:"database"`
	JWTSecret   string           `json:"jwt_secret"`
	Port        int              `json:"port"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	AI          AIConfig         `json:"ai"`
	WebSearch   WebSearchConfig  `json:"web_search"`
	Memory      MemoryConfig     `json:"memory"`
	Pipeline    PipelineConfig   `json:"pipeline"`
	FileStore   FileStoreConfig  `json:"file_store"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Data           interface{} `json:"data"`
	ChatModel      string      `json:"chat_model"`
	TitleModel     string      `json:"title_model"`
	EmbedModel     string      `json:"embed_model"`
	Temperature    float64     `json:"temperature"`
	Timeout        int         `json:"timeout"`
	MaxInputChars  int         `json:"max_input_chars"`
	EmbedCacheSize int         `json:"embed_cache_size"`
	EmbedCacheTTL  int         `json:"embed_cache_ttl_minutes"`
}

type WebSearchConfig struct {
	BaseURL string `json:"base_url"`
	Timeout int    `json:"timeout"`
}

type MemoryConfig struct {
	ConsolidateEvery     int     `json:"consolidate_every"`
	ConsolidateThreshold float64 `json:"consolidate_threshold"`
	ExtractWindow        int     `json:"extract_window"`
	TopK                 int     `json:"top_k"`
}

type PipelineConfig struct {
	MaxActiveTurns int `json:"max_active_turns"`
	HistoryLimit   int `json:"history_limit"`
	DocumentTopK   int `json:"document_top_k"`
	ToolRounds     int `json:"tool_rounds"`
	ChunkSize      int `json:"chunk_size"`
	ChunkOverlap   int `json:"chunk_overlap"`
}

type FileStoreConfig struct {
	Type      string   `json:"type"`
	Dir       string   `json:"dir"`
	PublicURL string   `json:"public_url"`
	S3        S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	PublicURL string `json:"public_url"`
	UseSSL    bool   `json:"use_ssl"`
}

// envOverrides carries the deploy-sensitive values that may be injected via
// environment instead of the config file.
type envOverrides struct {
	DBHost     string `envconfig:"AIVON_DB_HOST"`
	DBPassword string `envconfig:"AIVON_DB_PASSWORD"`
	JWTSecret  string `envconfig:"AIVON_JWT_SECRET"`
	AIBaseURL  string `envconfig:"AIVON_AI_BASE_URL"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read env overrides: %w", err)
	}
	if env.DBHost != "" {
		cfg.Database.Host = env.DBHost
	}
	if env.DBPassword != "" {
		cfg.Database.Password = env.DBPassword
	}
	if env.JWTSecret != "" {
		cfg.JWTSecret = env.JWTSecret
	}
	if env.AIBaseURL != "" {
		if m, ok := cfg.AI.Data.(map[string]interface{}); ok {
			m["base_url"] = env.AIBaseURL
		}
	}

	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	applyAIDefaults(&cfg.AI)
	applyMemoryDefaults(&cfg.Memory)
	applyPipelineDefaults(&cfg.Pipeline)
	if cfg.WebSearch.Timeout == 0 {
		cfg.WebSearch.Timeout = 15
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	switch cfg.FileStore.Type {
	case "local":
		if cfg.FileStore.Dir == "" {
			return nil, fmt.Errorf("file_store.dir is required for local store")
		}
	case "s3":
		if cfg.FileStore.S3.Endpoint == "" || cfg.FileStore.S3.Bucket == "" || cfg.FileStore.S3.SecretID == "" || cfg.FileStore.S3.SecretKey == "" {
			return nil, fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
		if cfg.FileStore.S3.Region == "" {
			cfg.FileStore.S3.Region = "us-east-1"
		}
	default:
		return nil, fmt.Errorf("file_store.type must be local or s3")
	}
	return &cfg, nil
}

func applyAIDefaults(cfg *AIConfig) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "llama3.1:8b"
	}
	if cfg.TitleModel == "" {
		cfg.TitleModel = cfg.ChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "nomic-embed-text"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120
	}
	if cfg.MaxInputChars == 0 {
		cfg.MaxInputChars = 100000
	}
	if cfg.EmbedCacheSize == 0 {
		cfg.EmbedCacheSize = 4096
	}
	if cfg.EmbedCacheTTL == 0 {
		cfg.EmbedCacheTTL = 120
	}
}

func applyMemoryDefaults(cfg *MemoryConfig) {
	if cfg.ConsolidateEvery == 0 {
		cfg.ConsolidateEvery = 10
	}
	if cfg.ConsolidateThreshold == 0 {
		cfg.ConsolidateThreshold = 0.92
	}
	if cfg.ExtractWindow == 0 {
		cfg.ExtractWindow = 3
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
}

func applyPipelineDefaults(cfg *PipelineConfig) {
	if cfg.MaxActiveTurns == 0 {
		cfg.MaxActiveTurns = 8
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.DocumentTopK == 0 {
		cfg.DocumentTopK = 5
	}
	if cfg.ToolRounds == 0 {
		cfg.ToolRounds = 4
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1200
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 200
	}
}
