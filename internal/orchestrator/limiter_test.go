package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/aivon/aivon/internal/pkg/errors"
)

func TestLimiterRejectsAtCap(t *testing.T) {
	l := NewLimiter(2)
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Acquire())
	require.ErrorIs(t, l.Acquire(), appErr.ErrTooMany)

	l.Release(time.Second)
	require.NoError(t, l.Acquire())
}

func TestLimiterStats(t *testing.T) {
	l := NewLimiter(4)
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Acquire())
	l.Release(2 * time.Second)
	l.Release(4 * time.Second)

	active, avg := l.Stats()
	require.Equal(t, 0, active)
	require.Equal(t, 3*time.Second, avg)
}

func TestLimiterPercentiles(t *testing.T) {
	l := NewLimiter(1)
	p50, p90, p99 := l.Percentiles()
	require.Zero(t, p50)
	require.Zero(t, p90)
	require.Zero(t, p99)

	for i := 1; i <= 10; i++ {
		require.NoError(t, l.Acquire())
		l.Release(time.Duration(i) * time.Second)
	}
	p50, p90, p99 = l.Percentiles()
	require.Equal(t, 5*time.Second, p50)
	require.Equal(t, 9*time.Second, p90)
	require.Equal(t, 9*time.Second, p99)
}

func TestLimiterRollingWindow(t *testing.T) {
	l := NewLimiter(1)
	for i := 0; i < latencySampleSize*2; i++ {
		require.NoError(t, l.Acquire())
		l.Release(time.Second)
	}
	_, avg := l.Stats()
	require.Equal(t, time.Second, avg)
}
