// Package entity defines the embedded entity stored in the vector index.
package entity

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

// MaxIDLength is the longest accepted entity identifier.
const MaxIDLength = 256

// Class partitions the index: a job query searches candidates and vice versa.
type Class string

// Entity classes.
const (
	Candidate Class = "candidate"
	Job       Class = "job"
)

// Classes lists every class in provisioning order.
var Classes = []Class{Candidate, Job}

// ParseClass validates a class name.
func ParseClass(s string) (Class, error) {
	c := Class(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown entity class %q: %w", s, domain.ErrInvalidArgument)
	}
	return c, nil
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool { return c == Candidate || c == Job }

// Counterpart returns the class searched when c is the anchor of a match query.
func (c Class) Counterpart() Class {
	if c == Job {
		return Candidate
	}
	return Job
}

func (c Class) String() string { return string(c) }

// Attributes is the structured side of an entity.
// For jobs, Skills are the required skills and Experience the required years.
type Attributes struct {
	skills     skill.Set
	experience *int
}

// NewAttributes creates an attribute bag. A nil experience means "not recorded".
func NewAttributes(skills skill.Set, experience *int) Attributes {
	return Attributes{skills: skills, experience: copyInt(experience)}
}

// Skills returns the skill set.
func (a Attributes) Skills() skill.Set { return a.skills }

// Experience returns a copy of the experience years, nil when absent.
func (a Attributes) Experience() *int { return copyInt(a.experience) }

// HasExperience reports whether experience is recorded.
func (a Attributes) HasExperience() bool { return a.experience != nil }

// Entity is an immutable (id, vector, summary, attributes) tuple.
type Entity struct {
	id      string
	vector  []float32
	summary string
	attrs   Attributes
}

// New validates and creates an Entity. The vector is copied.
func New(id string, vector []float32, summary string, attrs Attributes) (Entity, error) {
	if err := ValidateID(id); err != nil {
		return Entity{}, err
	}
	if len(vector) == 0 {
		return Entity{}, fmt.Errorf("entity %q: %w", id, domain.ErrEmbeddingMissing)
	}
	if exp := attrs.experience; exp != nil && *exp < 0 {
		return Entity{}, fmt.Errorf("negative experience %d: %w", *exp, domain.ErrInvalidArgument)
	}
	return Entity{
		id:      id,
		vector:  slices.Clone(vector),
		summary: summary,
		attrs:   attrs,
	}, nil
}

// Reconstruct hydrates an Entity from storage without validation.
func Reconstruct(id string, vector []float32, summary string, attrs Attributes) Entity {
	return Entity{id: id, vector: vector, summary: summary, attrs: attrs}
}

// ID returns the entity identifier.
func (e Entity) ID() string { return e.id }

// Vector returns the stored vector. Callers must not modify it.
func (e Entity) Vector() []float32 { return e.vector }

// Summary returns the text the vector was produced from.
func (e Entity) Summary() string { return e.summary }

// Attributes returns the structured attributes.
func (e Entity) Attributes() Attributes { return e.attrs }

// ValidateID checks an entity identifier.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("entity id is required: %w", domain.ErrInvalidArgument)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("entity id exceeds %d bytes: %w", MaxIDLength, domain.ErrInvalidArgument)
	}
	if strings.ContainsFunc(id, unicode.IsControl) {
		return fmt.Errorf("entity id contains control characters: %w", domain.ErrInvalidArgument)
	}
	return nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
