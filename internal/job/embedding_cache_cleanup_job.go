package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/repo"
)

// EmbeddingCacheCleanupJob drops persisted embedding cache rows older than
// the retention window.
type EmbeddingCacheCleanupJob struct {
	cache     *repo.EmbeddingCacheRepo
	retention time.Duration
}

func NewEmbeddingCacheCleanupJob(cache *repo.EmbeddingCacheRepo, retention time.Duration) *EmbeddingCacheCleanupJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &EmbeddingCacheCleanupJob{cache: cache, retention: retention}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention).Unix()
	deleted, err := j.cache.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("embedding cache pruned", zap.Int64("deleted", deleted))
	}
	return nil
}
