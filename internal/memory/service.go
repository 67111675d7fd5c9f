// Package memory stores durable per-user facts and recalls them by blended
// relevance. Extraction runs after a turn completes; consolidation merges
// near-duplicates in the background.
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/aivon/aivon/internal/ai"
	"github.com/aivon/aivon/internal/model"
	"github.com/aivon/aivon/internal/pkg/vec"
	"github.com/aivon/aivon/internal/repo"
)

type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type Extractor interface {
	ExtractMemories(ctx context.Context, transcript string, max int) ([]string, error)
}

type Config struct {
	TopK                 int
	ConsolidateThreshold float64
	MaxExtractedPerTurn  int
}

const (
	defaultTopK      = 5
	defaultThreshold = 0.92
	// below this similarity a memory is unrelated to the query regardless of
	// freshness or importance
	minSimilarity     = 0.25
	defaultImportance = 0.5
)

type Scored struct {
	model.Memory
	Score float64 `json:"score"`
}

type Service struct {
	repo      *repo.MemoryRepo
	embedder  Embedder
	extractor Extractor
	newID     func() string
	cfg       Config
}

func NewService(memRepo *repo.MemoryRepo, embedder Embedder, extractor Extractor, newID func() string, cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.ConsolidateThreshold <= 0 || cfg.ConsolidateThreshold > 1 {
		cfg.ConsolidateThreshold = defaultThreshold
	}
	if cfg.MaxExtractedPerTurn <= 0 {
		cfg.MaxExtractedPerTurn = 3
	}
	return &Service{repo: memRepo, embedder: embedder, extractor: extractor, newID: newID, cfg: cfg}
}

// Add stores a fact. An embedding failure is tolerated: the memory lands
// without a vector and the backfill job embeds it once the provider is back.
func (s *Service) Add(ctx context.Context, userID, content, category string, importance float64, sourceChatID string) (*model.Memory, error) {
	if importance <= 0 || importance > 1 {
		importance = defaultImportance
	}
	if category == "" {
		category = "general"
	}
	embedding, err := s.embedder.Embed(ctx, content, ai.TaskSimilarity)
	if err != nil {
		logutil.GetLogger(ctx).Warn("embed memory failed, storing without vector", zap.Error(err))
		embedding = nil
	}
	now := time.Now().Unix()
	mem := &model.Memory{
		ID:           s.newID(),
		UserID:       userID,
		Content:      content,
		Category:     category,
		Importance:   importance,
		Embedding:    embedding,
		SourceChatID: sourceChatID,
		Ctime:        now,
		LastAccessed: now,
	}
	if err := s.repo.Create(ctx, mem); err != nil {
		return nil, err
	}
	return mem, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]model.Memory, error) {
	return s.repo.ListActiveByUser(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, memID string) error {
	return s.repo.Delete(ctx, userID, memID)
}

func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}

// Search ranks the user's active memories against the query and bumps access
// counters on what it returns. A failed query embedding degrades to no recall.
func (s *Service) Search(ctx context.Context, userID, query string) ([]Scored, error) {
	queryVec, err := s.embedder.Embed(ctx, query, ai.TaskSimilarity)
	if err != nil {
		logutil.GetLogger(ctx).Warn("embed recall query failed, skipping memory recall", zap.Error(err))
		return nil, nil
	}
	mems, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	var results []Scored
	for i := range mems {
		similarity := vec.Cosine(queryVec, mems[i].Embedding)
		if similarity < minSimilarity {
			continue
		}
		score := Relevance(similarity, RecencyScore(mems[i].LastAccessed, now), mems[i].Importance)
		results = append(results, Scored{Memory: mems[i], Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > s.cfg.TopK {
		results = results[:s.cfg.TopK]
	}
	if len(results) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(results))
	for i := range results {
		ids = append(ids, results[i].ID)
	}
	if err := s.repo.MarkAccessed(ctx, ids, now); err != nil {
		logutil.GetLogger(ctx).Warn("mark memories accessed failed", zap.Error(err))
	}
	return results, nil
}

// ExtractFromTurn runs the extraction prompt over one completed turn and
// stores the new facts, skipping exact duplicates. Returns how many landed.
func (s *Service) ExtractFromTurn(ctx context.Context, userID, chatID, transcript string) (int, error) {
	facts, err := s.extractor.ExtractMemories(ctx, transcript, s.cfg.MaxExtractedPerTurn)
	if err != nil {
		return 0, err
	}
	stored := 0
	for _, fact := range facts {
		exists, err := s.repo.ExistsByContent(ctx, userID, fact)
		if err != nil {
			return stored, err
		}
		if exists {
			continue
		}
		if _, err := s.Add(ctx, userID, fact, "auto", defaultImportance, chatID); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// Consolidate merges near-duplicate memories of one user. The higher
// importance record survives; the other is marked superseded and kept.
// Returns the number of merges performed.
func (s *Service) Consolidate(ctx context.Context, userID string) (int, error) {
	mems, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	pairs := consolidationPairs(mems, s.cfg.ConsolidateThreshold)
	for _, p := range pairs {
		survivor, loser := &mems[p.survivor], &mems[p.loser]
		importance := survivor.Importance
		if loser.Importance > importance {
			importance = loser.Importance
		}
		if err := s.repo.UpdateConsolidated(ctx, userID, survivor.ID, survivor.Content, importance, survivor.Embedding); err != nil {
			return 0, err
		}
		if err := s.repo.MarkSuperseded(ctx, userID, loser.ID, survivor.ID); err != nil {
			return 0, err
		}
		logutil.GetLogger(ctx).Info("memories consolidated",
			zap.String("user_id", userID),
			zap.String("survivor", survivor.ID),
			zap.String("superseded", loser.ID))
	}
	return len(pairs), nil
}

type mergePair struct {
	survivor int
	loser    int
}

// consolidationPairs finds the greedy set of near-duplicate merges. A record
// already merged away cannot merge again, but a survivor can absorb several.
func consolidationPairs(mems []model.Memory, threshold float64) []mergePair {
	taken := make([]bool, len(mems))
	var pairs []mergePair
	for i := 0; i < len(mems); i++ {
		if taken[i] {
			continue
		}
		for j := i + 1; j < len(mems); j++ {
			if taken[j] {
				continue
			}
			if vec.Cosine(mems[i].Embedding, mems[j].Embedding) < threshold {
				continue
			}
			survivor, loser := i, j
			if mems[j].Importance > mems[i].Importance ||
				(mems[j].Importance == mems[i].Importance && mems[j].Ctime < mems[i].Ctime) {
				survivor, loser = j, i
			}
			pairs = append(pairs, mergePair{survivor: survivor, loser: loser})
			taken[loser] = true
			if loser == i {
				break
			}
		}
	}
	return pairs
}
