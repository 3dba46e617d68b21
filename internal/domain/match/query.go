// Package match defines match queries and their ranked, explained results.
package match

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
)

// Query defaults and limits.
const (
	DefaultTopK            = 50
	MaxTopK                = 1000
	DefaultSkillMatchFloor = 0.5
)

// Query asks for the entities of the counterpart class that best match an anchor.
// For job → candidates matching the anchor is a job id.
type Query struct {
	anchorID          string
	topK              int
	minSimilarity     float64
	requireSkillMatch bool
	skillMatchFloor   float64
	filter            index.Filter
}

// NewQuery validates and creates a Query.
// topK of zero means DefaultTopK; values above MaxTopK are clamped.
// A nil floor means DefaultSkillMatchFloor.
func NewQuery(anchorID string, topK int, minSimilarity float64, requireSkillMatch bool, floor *float64) (Query, error) {
	if err := entity.ValidateID(anchorID); err != nil {
		return Query{}, err
	}
	switch {
	case topK < 0:
		return Query{}, fmt.Errorf("top_k must be positive, got %d: %w", topK, domain.ErrInvalidArgument)
	case topK == 0:
		topK = DefaultTopK
	case topK > MaxTopK:
		topK = MaxTopK
	}
	if !inUnitInterval(minSimilarity) {
		return Query{}, fmt.Errorf("min_similarity must be in [0, 1], got %v: %w", minSimilarity, domain.ErrInvalidArgument)
	}
	f := DefaultSkillMatchFloor
	if floor != nil {
		f = *floor
		if !inUnitInterval(f) {
			return Query{}, fmt.Errorf("skill_match_floor must be in [0, 1], got %v: %w", f, domain.ErrInvalidArgument)
		}
	}
	return Query{
		anchorID:          anchorID,
		topK:              topK,
		minSimilarity:     minSimilarity,
		requireSkillMatch: requireSkillMatch,
		skillMatchFloor:   f,
	}, nil
}

// WithFilter returns a copy of q restricted by an attribute pre-filter.
func (q Query) WithFilter(f index.Filter) Query {
	q.filter = f
	return q
}

// AnchorID returns the id of the job (or candidate) being matched.
func (q Query) AnchorID() string { return q.anchorID }

// TopK returns the maximum number of index hits to score.
func (q Query) TopK() int { return q.topK }

// MinSimilarity returns the similarity threshold.
func (q Query) MinSimilarity() float64 { return q.minSimilarity }

// RequireSkillMatch reports whether hits below the skill floor are dropped.
func (q Query) RequireSkillMatch() bool { return q.requireSkillMatch }

// SkillMatchFloor returns the minimum skill match score when RequireSkillMatch is set.
func (q Query) SkillMatchFloor() float64 { return q.skillMatchFloor }

// Filter returns the attribute pre-filter.
func (q Query) Filter() index.Filter { return q.filter }

// Admits reports whether a skill score survives the skill floor.
func (q Query) Admits(skillScore float64) bool {
	return !q.requireSkillMatch || skillScore >= q.skillMatchFloor
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
