package vectordb

import (
	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"
)

// MetricKind selects the distance/similarity function used by a search.
type MetricKind int

const (
	// MetricEuclideanSq is squared Euclidean distance: lower is closer.
	MetricEuclideanSq MetricKind = iota
	// MetricCosine is cosine distance (1 - cosine similarity): lower is closer.
	MetricCosine
	// MetricDot is negative dot product, so that lower is still closer,
	// matching the convention of the other metrics.
	MetricDot
	// MetricManhattan is L1 distance: lower is closer.
	MetricManhattan
)

func (k MetricKind) String() string {
	switch k {
	case MetricEuclideanSq:
		return "euclidean_sq"
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dot"
	case MetricManhattan:
		return "manhattan"
	default:
		return "unknown"
	}
}

// MetricFn computes a distance between two equal-length float32 vectors.
// Euclidean², cosine, and Manhattan are always non-negative; a dimension
// mismatch returns +Inf rather than a silently wrong number. MetricDot is
// the one exception allowed to return a genuinely negative value (it ranks
// by -dot, so a strongly aligned pair of vectors yields a negative score);
// callers that need a non-negative distance should use cosine instead.
type MetricFn func(a, b []float32) float32

// Metric returns the MetricFn for kind. Panics on an unknown kind, since the
// kind is always a compile-time constant chosen by the caller, never
// untrusted input.
func Metric(kind MetricKind) MetricFn {
	switch kind {
	case MetricEuclideanSq:
		return euclideanSq
	case MetricCosine:
		return cosineDist
	case MetricDot:
		return negDot
	case MetricManhattan:
		return manhattan
	default:
		panic("vectordb: unknown metric kind")
	}
}

func euclideanSq(a, b []float32) float32 {
	if len(a) != len(b) {
		return math32.Inf(1)
	}
	diff := vek32.Sub(a, b)
	return vek32.Dot(diff, diff)
}

func cosineDist(a, b []float32) float32 {
	if len(a) != len(b) {
		return math32.Inf(1)
	}
	dot := vek32.Dot(a, b)
	normA := math32.Sqrt(vek32.Dot(a, a))
	normB := math32.Sqrt(vek32.Dot(b, b))
	if normA == 0 || normB == 0 {
		return 1.0
	}
	sim := dot / (normA * normB)
	if sim > 1.0 {
		sim = 1.0
	} else if sim < -1.0 {
		sim = -1.0
	}
	return 1.0 - sim
}

func negDot(a, b []float32) float32 {
	if len(a) != len(b) {
		return math32.Inf(1)
	}
	return -vek32.Dot(a, b)
}

func manhattan(a, b []float32) float32 {
	if len(a) != len(b) {
		return math32.Inf(1)
	}
	var sum float32
	for i := range a {
		sum += math32.Abs(a[i] - b[i])
	}
	return sum
}
