// Package rag ingests uploaded documents into embedded chunks and answers
// per-user similarity searches over them.
package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/pkg/vec"
	"github.com/aivon/aivon/internal/repo"
)

// Embedder is the slice of the ai manager this package needs.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type SearchResult struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Ordinal    int     `json:"ordinal"`
	Score      float64 `json:"score"`
}

type Config struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
}

// minChunkScore filters out chunks that match the query in name only; below
// this similarity the content is noise in the prompt.
const minChunkScore = 0.25

type Service struct {
	docs     *repo.DocumentRepo
	chunks   *repo.ChunkRepo
	embedder Embedder
	newID    func() string
	cfg      Config
}

func NewService(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, embedder Embedder, newID func() string, cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	return &Service{docs: docs, chunks: chunks, embedder: embedder, newID: newID, cfg: cfg}
}

// Ingest extracts, chunks and embeds one uploaded document and returns the
// chunk count. A chunk whose embedding call fails is stored without a vector;
// the backfill job picks it up later rather than failing the whole upload.
func (s *Service) Ingest(ctx context.Context, doc *model.Document, raw []byte) (int, error) {
	text, err := ExtractText(doc.Title, raw)
	if err != nil {
		return 0, err
	}
	pieces := Chunk(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("document %s has no extractable text", doc.ID)
	}
	now := time.Now().Unix()
	chunks := make([]model.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := s.embedder.Embed(ctx, piece, ai.TaskRetrievalDocument)
		if err != nil {
			logutil.GetLogger(ctx).Warn("embed chunk failed, storing without vector",
				zap.String("document_id", doc.ID), zap.Int("ordinal", i), zap.Error(err))
			embedding = nil
		}
		chunks = append(chunks, model.DocumentChunk{
			ID:         s.newID(),
			DocumentID: doc.ID,
			UserID:     doc.UserID,
			Content:    piece,
			Embedding:  embedding,
			Ordinal:    i,
			Ctime:      now,
		})
	}
	if err := s.chunks.CreateBatch(ctx, chunks); err != nil {
		return 0, err
	}
	if err := s.docs.UpdateChunkCount(ctx, doc.ID, len(chunks)); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Search embeds the query and ranks the user's chunks by cosine similarity,
// optionally restricted to a document subset. An embedding failure degrades
// to empty results so the turn proceeds without retrieval.
func (s *Service) Search(ctx context.Context, userID, query string, docIDs []string) ([]SearchResult, error) {
	queryVec, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		logutil.GetLogger(ctx).Warn("embed query failed, skipping document retrieval", zap.Error(err))
		return nil, nil
	}
	chunks, err := s.chunks.ListByUser(ctx, userID, docIDs)
	if err != nil {
		return nil, err
	}
	type scored struct {
		chunk *model.DocumentChunk
		score float64
	}
	var candidates []scored
	for i := range chunks {
		score := vec.Cosine(queryVec, chunks[i].Embedding)
		if score < minChunkScore {
			continue
		}
		candidates = append(candidates, scored{chunk: &chunks[i], score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > s.cfg.TopK {
		candidates = candidates[:s.cfg.TopK]
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	idSet := make(map[string]struct{})
	for _, c := range candidates {
		idSet[c.chunk.DocumentID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	titles, err := s.docs.TitlesByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, SearchResult{
			DocumentID: c.chunk.DocumentID,
			Title:      titles[c.chunk.DocumentID],
			Content:    c.chunk.Content,
			Ordinal:    c.chunk.Ordinal,
			Score:      c.score,
		})
	}
	return results, nil
}

// DeleteDocument removes a document and its chunks.
func (s *Service) DeleteDocument(ctx context.Context, userID, docID string) error {
	if err := s.chunks.DeleteByDocument(ctx, docID); err != nil {
		return err
	}
	return s.docs.Delete(ctx, userID, docID)
}
