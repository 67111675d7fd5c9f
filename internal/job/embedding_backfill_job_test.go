package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/model"
)

type fakeMemoryStore struct {
	missing []model.Memory
	updated map[string][]float32
}

func (f *fakeMemoryStore) ListMissingEmbedding(ctx context.Context, limit int) ([]model.Memory, error) {
	return f.missing, nil
}

func (f *fakeMemoryStore) UpdateEmbedding(ctx context.Context, memID string, embedding []float32) error {
	if f.updated == nil {
		f.updated = map[string][]float32{}
	}
	f.updated[memID] = embedding
	return nil
}

type fakeChunkStore struct {
	missing []model.DocumentChunk
	updated map[string][]float32
}

func (f *fakeChunkStore) ListMissingEmbedding(ctx context.Context, limit int) ([]model.DocumentChunk, error) {
	return f.missing, nil
}

func (f *fakeChunkStore) UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	if f.updated == nil {
		f.updated = map[string][]float32{}
	}
	f.updated[chunkID] = embedding
	return nil
}

type recordingEmbedder struct {
	taskTypes map[string]string
}

func (r *recordingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if r.taskTypes == nil {
		r.taskTypes = map[string]string{}
	}
	r.taskTypes[text] = taskType
	return []float32{0.1, 0.2}, nil
}

func (r *recordingEmbedder) ModelName() string { return "test-embed" }

func TestBackfillUsesMatchingTaskTypes(t *testing.T) {
	mems := &fakeMemoryStore{missing: []model.Memory{{ID: "m1", Content: "likes tea"}}}
	chunks := &fakeChunkStore{missing: []model.DocumentChunk{{ID: "c1", Content: "chapter one"}}}
	embedder := &recordingEmbedder{}

	j := NewEmbeddingBackfillJob(mems, chunks, embedder)
	require.NoError(t, j.Run(context.Background()))

	// memory vectors must land in the same space the recall queries use
	require.Equal(t, ai.TaskSimilarity, embedder.taskTypes["likes tea"])
	require.Equal(t, ai.TaskRetrievalDocument, embedder.taskTypes["chapter one"])
	require.Contains(t, mems.updated, "m1")
	require.Contains(t, chunks.updated, "c1")
}
