package vec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float32{1, 0, 0}, []float32{1, 0, 0}), 1e-9)
	require.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	require.InDelta(t, 1.0, Cosine([]float32{2, 2}, []float32{5, 5}), 1e-9)
}

func TestCosineDegenerate(t *testing.T) {
	require.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	require.Equal(t, 0.0, Cosine(nil, nil))
	require.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}
