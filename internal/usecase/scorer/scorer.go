// Package scorer computes the multi-factor ranking score used to order
// search results: a weighted combination of vector similarity, recency,
// priority, and usage frequency.
package scorer

import (
	"math"
	"sort"
	"strings"
	"time"

	"memoryvault/internal/domain"
)

// Weights configures the composite score's linear combination. They are not
// required to sum to 1; they are used as configured.
type Weights struct {
	Similarity float64
	Recency    float64
	Priority   float64
	Usage      float64
}

// DefaultWeights matches the rewrite's default composite blend.
var DefaultWeights = Weights{Similarity: 0.4, Recency: 0.2, Priority: 0.2, Usage: 0.2}

// Breakdown holds the individual component scores behind a composite.
type Breakdown struct {
	Similarity float64
	Recency    float64
	Priority   float64
	Usage      float64
	Composite  float64
}

var priorityScores = map[domain.Priority]float64{
	domain.PriorityCore:   1.0,
	domain.PriorityHigh:   0.75,
	domain.PriorityNormal: 0.5,
	domain.PriorityLow:    0.25,
}

// Recency returns exp(-days/30) where days is the elapsed time between
// createdAt and now, clamped to [0, ∞). Future timestamps saturate at 1.0.
func Recency(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	days := now.Sub(createdAt).Hours() / 24
	if days < 0 {
		return 1.0
	}
	score := math.Exp(-days / 30.0)
	return clamp01(score)
}

// PriorityScore maps a priority level to its score. Unknown or empty
// priorities score as NORMAL (0.5); comparison is case-insensitive.
func PriorityScore(priority domain.Priority) float64 {
	normalized := domain.Priority(strings.ToUpper(string(priority)))
	if s, ok := priorityScores[normalized]; ok {
		return s
	}
	return 0.5
}

// Usage returns log(accessCount+1)/log(100), clamped to [0, 1]. Negative
// counts are treated as 0.
func Usage(accessCount int64) float64 {
	if accessCount < 0 {
		accessCount = 0
	}
	if accessCount == 0 {
		return 0
	}
	return clamp01(math.Log(float64(accessCount)+1) / math.Log(100))
}

// Composite combines similarity, recency, priority, and usage per weights,
// clamped to [0, 1].
func Composite(similarity float64, createdAt time.Time, priority domain.Priority, accessCount int64, now time.Time, weights Weights) Breakdown {
	b := Breakdown{
		Similarity: clamp01(similarity),
		Recency:    Recency(createdAt, now),
		Priority:   PriorityScore(priority),
		Usage:      Usage(accessCount),
	}
	b.Composite = clamp01(
		weights.Similarity*b.Similarity +
			weights.Recency*b.Recency +
			weights.Priority*b.Priority +
			weights.Usage*b.Usage,
	)
	return b
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Ranked pairs a memory with its composite score for sorting.
type Ranked struct {
	Memory domain.Memory
	Score  Breakdown
}

// Rank scores each (memory, similarity) pair and returns them sorted by
// composite score, descending. Ties are broken by original input order
// (a stable sort).
func Rank(memories []domain.Memory, similarities map[int64]float32, now time.Time, weights Weights) []Ranked {
	ranked := make([]Ranked, len(memories))
	for i, m := range memories {
		sim := float64(similarities[m.ID])
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			// A missing created_at is treated as "now" for ranking purposes,
			// not as the epoch Recency would otherwise score as 0.
			createdAt = now
		}
		ranked[i] = Ranked{
			Memory: m,
			Score:  Composite(sim, createdAt, m.Priority, m.AccessCount, now, weights),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Composite > ranked[j].Score.Composite
	})
	return ranked
}
