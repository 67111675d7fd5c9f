// Package job holds the scheduled maintenance work: memory consolidation,
// embedding backfill and embedding cache cleanup.
package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/memory"
	"github.com/aivon/aivon/internal/repo"
)

// MemoryConsolidationJob sweeps every user's active memories and merges
// near-duplicates. Per-message consolidation already runs inline after
// turns; this catches users who stopped chatting mid-window.
type MemoryConsolidationJob struct {
	memories *repo.MemoryRepo
	service  *memory.Service
}

func NewMemoryConsolidationJob(memories *repo.MemoryRepo, service *memory.Service) *MemoryConsolidationJob {
	return &MemoryConsolidationJob{memories: memories, service: service}
}

func (j *MemoryConsolidationJob) Name() string {
	return "memory_consolidation"
}

func (j *MemoryConsolidationJob) Run(ctx context.Context) error {
	userIDs, err := j.memories.ListUserIDs(ctx)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	var merged int
	for _, userID := range userIDs {
		n, err := j.service.Consolidate(ctx, userID)
		if err != nil {
			logger.Warn("consolidate user failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		merged += n
	}
	if merged > 0 {
		logger.Info("memories consolidated", zap.Int("merged", merged), zap.Int("users", len(userIDs)))
	}
	return nil
}
