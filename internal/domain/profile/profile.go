// Package profile holds the raw candidate and job records supplied by callers for ingestion.
package profile

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

// MaxTextBytes caps the text sent to the encoder.
const MaxTextBytes = 64 << 10

// MaxSkills caps the number of skills per record.
const MaxSkills = 256

// Record is a candidate profile or a job posting before encoding.
type Record struct {
	class      entity.Class
	id         string
	text       string
	skills     skill.Set
	experience *int
}

// NewCandidate validates a candidate profile.
func NewCandidate(id, profileText string, skills []string, experienceYears *int) (Record, error) {
	return newRecord(entity.Candidate, id, profileText, skills, experienceYears)
}

// NewJob validates a job posting. skills and experience are the requirements.
func NewJob(id, description string, requiredSkills []string, experienceRequired *int) (Record, error) {
	return newRecord(entity.Job, id, description, requiredSkills, experienceRequired)
}

func newRecord(class entity.Class, id, text string, skills []string, experience *int) (Record, error) {
	if err := entity.ValidateID(id); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Record{}, fmt.Errorf("%s %q: text is required: %w", class, id, domain.ErrInvalidArgument)
	}
	if len(text) > MaxTextBytes {
		return Record{}, fmt.Errorf("%s %q: text exceeds %d bytes: %w", class, id, MaxTextBytes, domain.ErrInvalidArgument)
	}
	if !utf8.ValidString(text) {
		return Record{}, fmt.Errorf("%s %q: text is not valid UTF-8: %w", class, id, domain.ErrInvalidArgument)
	}
	if len(skills) > MaxSkills {
		return Record{}, fmt.Errorf("%s %q: more than %d skills: %w", class, id, MaxSkills, domain.ErrInvalidArgument)
	}
	for _, s := range skills {
		if len(skill.Normalize(s)) > skill.MaxLength {
			return Record{}, fmt.Errorf("%s %q: skill exceeds %d bytes: %w", class, id, skill.MaxLength, domain.ErrInvalidArgument)
		}
	}
	if experience != nil && *experience < 0 {
		return Record{}, fmt.Errorf("%s %q: negative experience: %w", class, id, domain.ErrInvalidArgument)
	}
	return Record{
		class:      class,
		id:         id,
		text:       text,
		skills:     skill.NewSet(skills...),
		experience: experience,
	}, nil
}

// Class returns the entity class of the record.
func (r Record) Class() entity.Class { return r.class }

// ID returns the record identifier.
func (r Record) ID() string { return r.id }

// Text returns the profile text or job description.
func (r Record) Text() string { return r.text }

// Attributes returns the structured attributes stored next to the vector.
func (r Record) Attributes() entity.Attributes {
	return entity.NewAttributes(r.skills, r.experience)
}

// Embed pairs the record with its vector.
func (r Record) Embed(vector []float32) (entity.Entity, error) {
	return entity.New(r.id, vector, r.text, r.Attributes())
}
