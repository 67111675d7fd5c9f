package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"host": "localhost", "port": 5432, "user": "aivon", "db_name": "aivon"},
		"jwt_secret": "secret",
		"port": 8080,
		"file_store": {"type": "local", "dir": "/tmp/files"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 72, cfg.JWTTTLHours)
	require.Equal(t, "openai", cfg.AI.Provider)
	require.Equal(t, 8, cfg.Pipeline.MaxActiveTurns)
	require.Equal(t, 20, cfg.Pipeline.HistoryLimit)
	require.Equal(t, 4, cfg.Pipeline.ToolRounds)
	require.Equal(t, 1200, cfg.Pipeline.ChunkSize)
	require.Equal(t, 200, cfg.Pipeline.ChunkOverlap)
	require.Equal(t, 10, cfg.Memory.ConsolidateEvery)
	require.InDelta(t, 0.92, cfg.Memory.ConsolidateThreshold, 1e-9)
	require.Equal(t, 5, cfg.Memory.TopK)
}

func TestLoadMissingSecret(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"host": "localhost"},
		"port": 8080
	}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AIVON_DB_PASSWORD", "from-env")
	t.Setenv("AIVON_JWT_SECRET", "env-secret")
	path := writeConfig(t, `{
		"database": {"host": "localhost", "password": "from-file"},
		"jwt_secret": "file-secret",
		"port": 8080,
		"file_store": {"type": "local", "dir": "/tmp/files"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Database.Password)
	require.Equal(t, "env-secret", cfg.JWTSecret)
}

func TestLoadBadStoreType(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"host": "localhost"},
		"jwt_secret": "secret",
		"port": 8080,
		"file_store": {"type": "ftp"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}
