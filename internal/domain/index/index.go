// Package index holds the value types shared by every vector index backend.
package index

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
)

// MaxDimensions is the largest vector the index accepts (the pgvector column limit).
const MaxDimensions = 16000

// Metric is the similarity metric of an index.
type Metric string

// Cosine is the only supported metric.
const Cosine Metric = "cosine"

// Spec describes the shape of a per-class index.
type Spec struct {
	Dimensions int
	Metric     Metric
}

// NewSpec validates and creates an index spec. An empty metric defaults to cosine.
func NewSpec(dimensions int, metric Metric) (Spec, error) {
	if metric == "" {
		metric = Cosine
	}
	s := Spec{Dimensions: dimensions, Metric: metric}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Validate checks the spec. Failures wrap ErrIndexCreation.
func (s Spec) Validate() error {
	if s.Dimensions <= 0 || s.Dimensions > MaxDimensions {
		return fmt.Errorf("%w: dimensions must be in [1, %d], got %d",
			domain.ErrIndexCreation, MaxDimensions, s.Dimensions)
	}
	if s.Metric != Cosine {
		return fmt.Errorf("%w: unsupported similarity metric %q", domain.ErrIndexCreation, s.Metric)
	}
	return nil
}

// ConflictError reports an existing index whose recorded shape differs from the request.
func ConflictError(class entity.Class, existing, requested Spec) error {
	return fmt.Errorf("%w: %s index has %d dimensions (%s), requested %d (%s)",
		domain.ErrIndexCreation, class,
		existing.Dimensions, existing.Metric,
		requested.Dimensions, requested.Metric)
}

// Query is a thresholded top-K nearest-neighbour request.
type Query struct {
	Vector        []float32
	TopK          int
	MinSimilarity float64
	Filter        Filter
}

// Hit is one entity returned by a query.
type Hit struct {
	ID         string
	Summary    string
	Attributes entity.Attributes
	Similarity float64
}

// SortHits orders hits by similarity descending, ties by id ascending.
func SortHits(hits []Hit) {
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Threshold drops hits below minSimilarity and truncates to topK. hits must be sorted.
func Threshold(hits []Hit, topK int, minSimilarity float64) []Hit {
	out := hits[:0]
	for _, h := range hits {
		if h.Similarity < minSimilarity {
			continue
		}
		out = append(out, h)
		if len(out) == topK {
			break
		}
	}
	return out
}

// IsZero reports whether v has no non-zero component. Such vectors have no direction.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
