package kvindex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/vecmatch/internal/db"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

// Hash field names.
const (
	fieldID         = "id"
	fieldVector     = "vector"
	fieldSummary    = "summary"
	fieldSkills     = "skills"
	fieldSkillTags  = "skill_tags"
	fieldExperience = "experience"

	metaDimensions = "dimensions"
	metaMetric     = "metric"
)

var returnFields = []string{fieldID, fieldSummary, fieldSkills, fieldExperience}

// skillTag maps a normalized skill to an opaque TAG value.
// Hex digests never need query escaping and cannot contain the separator.
func skillTag(name string) string {
	return strconv.FormatUint(xxhash.Sum64String(name), 16)
}

func skillTags(s skill.Set) []string {
	items := s.Slice()
	tags := make([]string, len(items))
	for i, name := range items {
		tags[i] = skillTag(name)
	}
	return tags
}

// buildHashFields converts an entity into a flat map for HSET.
func buildHashFields(e entity.Entity) (map[string]string, error) {
	attrs := e.Attributes()
	skills, err := json.Marshal(attrs.Skills().Slice())
	if err != nil {
		return nil, fmt.Errorf("marshal skills: %w", err)
	}

	m := map[string]string{
		fieldID:      e.ID(),
		fieldVector:  db.EncodeVector(e.Vector()),
		fieldSummary: e.Summary(),
		fieldSkills:  string(skills),
	}
	if tags := skillTags(attrs.Skills()); len(tags) > 0 {
		m[fieldSkillTags] = strings.Join(tags, ",")
	}
	// Entities without experience leave the NUMERIC field out, so range filters skip them.
	if exp := attrs.Experience(); exp != nil {
		m[fieldExperience] = strconv.Itoa(*exp)
	}
	return m, nil
}

func parseAttributes(m map[string]string) (entity.Attributes, error) {
	var names []string
	if raw := m[fieldSkills]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return entity.Attributes{}, fmt.Errorf("parse skills: %w", err)
		}
	}
	var exp *int
	if raw, ok := m[fieldExperience]; ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return entity.Attributes{}, fmt.Errorf("parse experience %q: %w", raw, err)
		}
		exp = &n
	}
	return entity.NewAttributes(skill.NewSet(names...), exp), nil
}

// parseEntity rebuilds a stored entity from its hash.
func parseEntity(id string, m map[string]string) (entity.Entity, error) {
	attrs, err := parseAttributes(m)
	if err != nil {
		return entity.Entity{}, err
	}
	vec, err := db.DecodeVector(m[fieldVector])
	if err != nil {
		return entity.Entity{}, err
	}
	return entity.Reconstruct(id, vec, m[fieldSummary], attrs), nil
}

// buildFilter translates the attribute filter into an FT.SEARCH pre-filter.
func buildFilter(f index.Filter) string {
	var skillClause string
	if tags := skillTags(f.AnySkills()); len(tags) > 0 {
		skillClause = db.TagAny(fieldSkillTags, tags...)
	}
	return db.And(skillClause, db.NumericRange(fieldExperience, f.MinExperience(), f.MaxExperience()))
}

func parseSpec(m map[string]string) (index.Spec, bool, error) {
	raw, ok := m[metaDimensions]
	if !ok {
		return index.Spec{}, false, nil
	}
	dims, err := strconv.Atoi(raw)
	if err != nil {
		return index.Spec{}, false, fmt.Errorf("parse recorded dimensions %q: %w", raw, err)
	}
	return index.Spec{Dimensions: dims, Metric: index.Metric(m[metaMetric])}, true, nil
}

func specFields(s index.Spec) map[string]string {
	return map[string]string{
		metaDimensions: strconv.Itoa(s.Dimensions),
		metaMetric:     string(s.Metric),
	}
}
