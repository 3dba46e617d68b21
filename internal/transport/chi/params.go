package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
	"github.com/kailas-cloud/vecmatch/internal/domain/match"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

// MatchParams are the query parameters of the match and recommendation endpoints.
type MatchParams struct {
	TopK              *int      `json:"top_k,omitempty"`
	MinSimilarity     *float64  `json:"min_similarity,omitempty"`
	RequireSkillMatch *bool     `json:"require_skill_match,omitempty"`
	SkillMatchFloor   *float64  `json:"skill_match_floor,omitempty"`
	AnySkill          *[]string `json:"any_skill,omitempty"`
	MinExperience     *int      `json:"min_experience,omitempty"`
	MaxExperience     *int      `json:"max_experience,omitempty"`
}

// bindPathID binds the {id} path parameter.
func bindPathID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", fmt.Errorf("invalid id: %w: %w", domain.ErrInvalidArgument, err)
	}
	return id, nil
}

// bindMatchParams binds the match query string. any_skill is repeatable.
func bindMatchParams(r *http.Request) (MatchParams, error) {
	var p MatchParams
	q := r.URL.Query()

	binds := []struct {
		name string
		dest any
	}{
		{"top_k", &p.TopK},
		{"min_similarity", &p.MinSimilarity},
		{"require_skill_match", &p.RequireSkillMatch},
		{"skill_match_floor", &p.SkillMatchFloor},
		{"any_skill", &p.AnySkill},
		{"min_experience", &p.MinExperience},
		{"max_experience", &p.MaxExperience},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return MatchParams{}, fmt.Errorf("invalid %s: %w: %w", b.name, domain.ErrInvalidArgument, err)
		}
	}
	return p, nil
}

// query validates the parameters into a match query anchored at anchorID.
func (p MatchParams) query(anchorID string, d MatchDefaults) (match.Query, error) {
	topK := d.TopK
	if p.TopK != nil {
		if *p.TopK <= 0 {
			return match.Query{}, fmt.Errorf("top_k must be positive: %w", domain.ErrInvalidArgument)
		}
		topK = *p.TopK
	}
	minSim := 0.0
	if p.MinSimilarity != nil {
		minSim = *p.MinSimilarity
	}
	require := p.RequireSkillMatch != nil && *p.RequireSkillMatch

	floor := p.SkillMatchFloor
	if floor == nil {
		floor = &d.SkillMatchFloor
	}

	q, err := match.NewQuery(anchorID, topK, minSim, require, floor)
	if err != nil {
		return match.Query{}, err
	}

	var anySkill []string
	if p.AnySkill != nil {
		anySkill = *p.AnySkill
	}
	if len(anySkill) > 0 || p.MinExperience != nil || p.MaxExperience != nil {
		f, err := index.NewFilter(skill.NewSet(anySkill...), p.MinExperience, p.MaxExperience)
		if err != nil {
			return match.Query{}, err
		}
		q = q.WithFilter(f)
	}
	return q, nil
}
