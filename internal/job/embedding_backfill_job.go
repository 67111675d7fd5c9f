package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/model"
)

const backfillBatchSize = 64

type memoryVectorStore interface {
	ListMissingEmbedding(ctx context.Context, limit int) ([]model.Memory, error)
	UpdateEmbedding(ctx context.Context, memID string, embedding []float32) error
}

type chunkVectorStore interface {
	ListMissingEmbedding(ctx context.Context, limit int) ([]model.DocumentChunk, error)
	UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32) error
}

// EmbeddingBackfillJob embeds memories and document chunks whose vectors are
// missing. Rows end up without vectors when the embedding provider was down
// at write time; writes never block on embeddings.
type EmbeddingBackfillJob struct {
	memories memoryVectorStore
	chunks   chunkVectorStore
	embedder ai.IEmbedder
}

func NewEmbeddingBackfillJob(memories memoryVectorStore, chunks chunkVectorStore, embedder ai.IEmbedder) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{memories: memories, chunks: chunks, embedder: embedder}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)

	mems, err := j.memories.ListMissingEmbedding(ctx, backfillBatchSize)
	if err != nil {
		return err
	}
	var filled int
	for _, mem := range mems {
		// memories embed and query in the similarity space; the retrieval
		// task types would put backfilled rows in a different space than
		// recall queries
		vec, err := j.embedder.Embed(ctx, mem.Content, ai.TaskSimilarity)
		if err != nil {
			logger.Warn("embed memory failed", zap.String("memory_id", mem.ID), zap.Error(err))
			break
		}
		if err := j.memories.UpdateEmbedding(ctx, mem.ID, vec); err != nil {
			return err
		}
		filled++
	}

	chunks, err := j.chunks.ListMissingEmbedding(ctx, backfillBatchSize)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		vec, err := j.embedder.Embed(ctx, chunk.Content, ai.TaskRetrievalDocument)
		if err != nil {
			logger.Warn("embed chunk failed", zap.String("chunk_id", chunk.ID), zap.Error(err))
			break
		}
		if err := j.chunks.UpdateEmbedding(ctx, chunk.ID, vec); err != nil {
			return err
		}
		filled++
	}

	if filled > 0 {
		logger.Info("embeddings backfilled", zap.Int("count", filled))
	}
	return nil
}
