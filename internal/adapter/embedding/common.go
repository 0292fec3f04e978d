package embedding

import (
	"math"
	"net/http"
	"time"

	"memoryvault/internal/domain"
)

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// l2Normalize returns a unit-norm copy of vec. A zero vector stays zero.
func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, f := range vec {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(vec))
	for i, f := range vec {
		out[i] = f / norm
	}
	return out
}

// splitBatch partitions texts into the non-empty ones (with their original
// indices) to send to a provider, per the wrapper contract: an empty string
// within a batch yields an all-zero vector without involving the provider,
// and a batch that is entirely empty fails outright.
func splitBatch(texts []string) (nonEmpty []string, indices []int, allEmpty bool) {
	for i, t := range texts {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
			indices = append(indices, i)
		}
	}
	return nonEmpty, indices, len(nonEmpty) == 0 && len(texts) > 0
}

// assembleBatch merges provider results for nonEmpty/indices back into a
// dims-wide output aligned with the original texts slice (zero vectors for
// the empty slots).
func assembleBatch(n, dims int, indices []int, results [][]float32) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dims)
	}
	for k, idx := range indices {
		out[idx] = l2Normalize(results[k])
	}
	return out
}

func wrapModelError(op string, err error) error {
	return domain.NewDomainError(op, domain.ErrModelError, err.Error())
}
