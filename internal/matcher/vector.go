package matcher

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/faceid/internal/store"
)

// ErrDimensionMismatch is returned when a stored embedding does not share the
// query vector's dimensionality. Comparing such vectors is undefined.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// euclidean computes the Euclidean distance between two embeddings.
func euclidean(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// similarity maps a distance onto a (0,1] score, monotonically decreasing.
// It is a convention shared with enrollment clients, not a calibrated metric.
func similarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// nearest scans the template set and returns the subject with the smallest
// distance to the query. The strict less-than keeps the first-seen winner on
// exact ties, and the store's sorted order makes that reproducible.
func nearest(query []float32, templates []store.Template) (string, float64, error) {
	best := UnknownSubject
	minDistance := math.Inf(1)
	for _, t := range templates {
		d, err := euclidean(query, t.Embedding)
		if err != nil {
			return "", 0, fmt.Errorf("subject %s: %w", t.SubjectID, err)
		}
		if d < minDistance {
			minDistance = d
			best = t.SubjectID
		}
	}
	return best, minDistance, nil
}
