package store

import (
	"fmt"
	"math"

	"numainda/pkg/domain"
)

// CosineSimilarity returns 1 - cosine distance between a and b, matching
// pgvector's <=> operator. Zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func checkDim(embedding []float32, dim int) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector is empty", domain.ErrValidation)
	}
	if dim > 0 && len(embedding) != dim {
		return fmt.Errorf("%w: embedding dimension mismatch: got %d, want %d", domain.ErrValidation, len(embedding), dim)
	}
	return nil
}
