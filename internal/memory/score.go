package memory

import "time"

// Relevance blends how well a memory matches the query with how fresh and
// how important it is. Similarity dominates; recency and importance break
// ties between equally similar facts.
const (
	weightSimilarity = 0.6
	weightRecency    = 0.2
	weightImportance = 0.2

	recencyWindow = 90 * 24 * time.Hour
	recencyFloor  = 0.1
)

func Relevance(similarity, recency, importance float64) float64 {
	return weightSimilarity*similarity + weightRecency*recency + weightImportance*importance
}

// RecencyScore decays linearly from 1.0 at age zero to the floor at the
// window edge. Memories older than the window all score the floor; they stay
// findable but never outrank a fresh match.
func RecencyScore(lastAccessed, now int64) float64 {
	age := now - lastAccessed
	if age <= 0 {
		return 1.0
	}
	frac := float64(age) / recencyWindow.Seconds()
	if frac >= 1 {
		return recencyFloor
	}
	return 1.0 - frac*(1.0-recencyFloor)
}
