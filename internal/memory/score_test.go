package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aivon/aivon/internal/pkg/vec"
)

func TestRecencyScoreFreshIsOne(t *testing.T) {
	now := time.Now().Unix()
	require.InDelta(t, 1.0, RecencyScore(now, now), 1e-9)
	require.InDelta(t, 1.0, RecencyScore(now+60, now), 1e-9)
}

func TestRecencyScoreMonotonicDecay(t *testing.T) {
	now := time.Now().Unix()
	day := int64(24 * 60 * 60)
	prev := RecencyScore(now, now)
	for days := int64(1); days <= 120; days += 7 {
		score := RecencyScore(now-days*day, now)
		require.LessOrEqual(t, score, prev, "score must not increase with age (%d days)", days)
		require.GreaterOrEqual(t, score, 0.1)
		prev = score
	}
}

func TestRecencyScoreFloorAtWindow(t *testing.T) {
	now := time.Now().Unix()
	day := int64(24 * 60 * 60)
	require.InDelta(t, 0.1, RecencyScore(now-90*day, now), 1e-9)
	require.InDelta(t, 0.1, RecencyScore(now-365*day, now), 1e-9)
}

func TestRecencyScoreMidpoint(t *testing.T) {
	now := time.Now().Unix()
	day := int64(24 * 60 * 60)
	require.InDelta(t, 0.55, RecencyScore(now-45*day, now), 1e-3)
}

func TestRelevanceWeights(t *testing.T) {
	require.InDelta(t, 1.0, Relevance(1, 1, 1), 1e-9)
	require.InDelta(t, 0.6, Relevance(1, 0, 0), 1e-9)
	require.InDelta(t, 0.2, Relevance(0, 1, 0), 1e-9)
	require.InDelta(t, 0.2, Relevance(0, 0, 1), 1e-9)
}

func TestCosineWellFormed(t *testing.T) {
	a := []float32{1, 0, 0}
	require.InDelta(t, 1.0, vec.Cosine(a, a), 1e-9)
	require.InDelta(t, 0.0, vec.Cosine(a, []float32{0, 1, 0}), 1e-9)
}

func TestCosineDegenerateInputsScoreZero(t *testing.T) {
	require.Zero(t, vec.Cosine(nil, []float32{1, 2}))
	require.Zero(t, vec.Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	require.Zero(t, vec.Cosine([]float32{0, 0}, []float32{0, 0}))
}
