// Package scoring holds the attribute scorer and the composite weighting policy.
// Every function here is pure.
package scoring

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

// SkillOverlap is the result of comparing a candidate's skills to a job's requirements.
type SkillOverlap struct {
	Score   float64
	Matched []string
	Missing []string
}

// SkillMatch returns |candidate ∩ required| / |required| together with the
// intersection and required − candidate. An empty requirement scores 1.0.
func SkillMatch(candidate, required skill.Set) SkillOverlap {
	if required.IsEmpty() {
		return SkillOverlap{Score: 1.0, Matched: []string{}, Missing: []string{}}
	}

	req := required.Slice()
	matched := make([]string, 0, len(req))
	missing := make([]string, 0, len(req))
	for _, s := range req {
		if candidate.Contains(s) {
			matched = append(matched, s)
		} else {
			missing = append(missing, s)
		}
	}

	return SkillOverlap{
		Score:   float64(len(matched)) / float64(len(req)),
		Matched: matched,
		Missing: missing,
	}
}

// ExperienceMatch is true when there is no requirement, or the candidate has
// recorded experience that meets it.
func ExperienceMatch(candidate, required *int) bool {
	if required == nil {
		return true
	}
	return candidate != nil && *candidate >= *required
}

// Weights is the composite ranking policy.
type Weights struct {
	Similarity float64
	Skill      float64
	Experience float64
}

// DefaultWeights reproduces the source ranking: 60 similarity, 30 skills, 10 experience.
func DefaultWeights() Weights {
	return Weights{Similarity: 60, Skill: 30, Experience: 10}
}

// Validate rejects negative, non-finite or all-zero weights.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"similarity": w.Similarity,
		"skill":      w.Skill,
		"experience": w.Experience,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s weight must be a non-negative number, got %v: %w", name, v, domain.ErrInvalidArgument)
		}
	}
	if w.Sum() == 0 {
		return fmt.Errorf("at least one weight must be positive: %w", domain.ErrInvalidArgument)
	}
	return nil
}

// Sum returns the best achievable score for a perfectly similar candidate.
func (w Weights) Sum() float64 { return w.Similarity + w.Skill + w.Experience }

// Overall combines the sub-scores into one ranking value.
func (w Weights) Overall(similarity, skillScore float64, experienceMatch bool) float64 {
	score := similarity*w.Similarity + skillScore*w.Skill
	if experienceMatch {
		score += w.Experience
	}
	return score
}
