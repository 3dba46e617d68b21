package index

import (
	"fmt"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

// MaxFilterSkills caps the any-of skill list of a filter.
const MaxFilterSkills = 32

// Filter restricts a query to entities whose attributes qualify before top-K selection.
// The zero value matches everything.
type Filter struct {
	anySkills     skill.Set
	minExperience *int
	maxExperience *int
}

// NewFilter validates and creates a Filter.
func NewFilter(anySkills skill.Set, minExperience, maxExperience *int) (Filter, error) {
	if anySkills.Len() > MaxFilterSkills {
		return Filter{}, fmt.Errorf("too many filter skills (max %d): %w", MaxFilterSkills, domain.ErrInvalidArgument)
	}
	if minExperience != nil && *minExperience < 0 {
		return Filter{}, fmt.Errorf("min experience must be non-negative: %w", domain.ErrInvalidArgument)
	}
	if maxExperience != nil && *maxExperience < 0 {
		return Filter{}, fmt.Errorf("max experience must be non-negative: %w", domain.ErrInvalidArgument)
	}
	if minExperience != nil && maxExperience != nil && *minExperience > *maxExperience {
		return Filter{}, fmt.Errorf("min experience %d exceeds max %d: %w",
			*minExperience, *maxExperience, domain.ErrInvalidArgument)
	}
	return Filter{anySkills: anySkills, minExperience: minExperience, maxExperience: maxExperience}, nil
}

// AnySkills returns the skills of which at least one must be present.
func (f Filter) AnySkills() skill.Set { return f.anySkills }

// MinExperience returns the inclusive lower bound on experience, nil when unbounded.
func (f Filter) MinExperience() *int { return f.minExperience }

// MaxExperience returns the inclusive upper bound on experience, nil when unbounded.
func (f Filter) MaxExperience() *int { return f.maxExperience }

// HasExperienceRange reports whether either experience bound is set.
func (f Filter) HasExperienceRange() bool {
	return f.minExperience != nil || f.maxExperience != nil
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return f.anySkills.IsEmpty() && !f.HasExperienceRange()
}

// Matches evaluates the filter against attributes.
// An experience bound never matches an entity without recorded experience.
func (f Filter) Matches(a entity.Attributes) bool {
	if !f.anySkills.IsEmpty() && !f.anySkills.Intersects(a.Skills()) {
		return false
	}
	if !f.HasExperienceRange() {
		return true
	}
	exp := a.Experience()
	if exp == nil {
		return false
	}
	if f.minExperience != nil && *exp < *f.minExperience {
		return false
	}
	if f.maxExperience != nil && *exp > *f.maxExperience {
		return false
	}
	return true
}
