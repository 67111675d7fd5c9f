package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aivon/aivon/internal/model"
)

func TestConsolidationPairsMergesNearDuplicates(t *testing.T) {
	mems := []model.Memory{
		{ID: "a", Importance: 0.5, Ctime: 100, Embedding: []float32{1, 0, 0}},
		{ID: "b", Importance: 0.8, Ctime: 200, Embedding: []float32{0.99, 0.05, 0}},
		{ID: "c", Importance: 0.5, Ctime: 300, Embedding: []float32{0, 1, 0}},
	}
	pairs := consolidationPairs(mems, 0.92)
	require.Len(t, pairs, 1)
	require.Equal(t, "b", mems[pairs[0].survivor].ID, "higher importance record survives")
	require.Equal(t, "a", mems[pairs[0].loser].ID)
}

func TestConsolidationPairsTieBreaksOnAge(t *testing.T) {
	mems := []model.Memory{
		{ID: "newer", Importance: 0.5, Ctime: 200, Embedding: []float32{1, 0}},
		{ID: "older", Importance: 0.5, Ctime: 100, Embedding: []float32{1, 0}},
	}
	pairs := consolidationPairs(mems, 0.92)
	require.Len(t, pairs, 1)
	require.Equal(t, "older", mems[pairs[0].survivor].ID)
}

func TestConsolidationPairsBelowThreshold(t *testing.T) {
	mems := []model.Memory{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{0, 1}},
	}
	require.Empty(t, consolidationPairs(mems, 0.92))
}

func TestConsolidationPairsSkipsMissingEmbeddings(t *testing.T) {
	mems := []model.Memory{
		{ID: "a", Embedding: nil},
		{ID: "b", Embedding: nil},
	}
	require.Empty(t, consolidationPairs(mems, 0.92))
}

func TestConsolidationPairsSurvivorAbsorbsSeveral(t *testing.T) {
	v := []float32{1, 0, 0}
	mems := []model.Memory{
		{ID: "a", Importance: 0.9, Ctime: 100, Embedding: v},
		{ID: "b", Importance: 0.5, Ctime: 200, Embedding: v},
		{ID: "c", Importance: 0.5, Ctime: 300, Embedding: v},
	}
	pairs := consolidationPairs(mems, 0.92)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		require.Equal(t, "a", mems[p.survivor].ID)
	}
}
