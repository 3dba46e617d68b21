// Package skill normalizes free-form skill names into comparable sets.
package skill

import (
	"slices"
	"strings"
)

// MaxLength is the longest accepted skill name after normalization.
const MaxLength = 128

// Set is an immutable, normalized, sorted set of skill names.
// The zero value is the empty set.
type Set struct {
	items []string
}

// Normalize trims and lowercases a skill name. Inner whitespace runs collapse to one space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NewSet builds a set from raw names. Blank entries are dropped, duplicates collapse.
func NewSet(raw ...string) Set {
	items := make([]string, 0, len(raw))
	for _, r := range raw {
		n := Normalize(r)
		if n == "" {
			continue
		}
		items = append(items, n)
	}
	slices.Sort(items)
	return Set{items: slices.Compact(items)}
}

// Len returns the number of skills.
func (s Set) Len() int { return len(s.items) }

// IsEmpty reports whether the set has no skills.
func (s Set) IsEmpty() bool { return len(s.items) == 0 }

// Contains reports whether name (normalized) is in the set.
func (s Set) Contains(name string) bool {
	_, ok := slices.BinarySearch(s.items, Normalize(name))
	return ok
}

// Slice returns a copy of the skills in ascending order.
func (s Set) Slice() []string {
	return slices.Clone(s.items)
}

// Equal reports whether both sets hold the same skills.
func (s Set) Equal(o Set) bool {
	return slices.Equal(s.items, o.items)
}

// Intersects reports whether the sets share at least one skill.
func (s Set) Intersects(o Set) bool {
	i, j := 0, 0
	for i < len(s.items) && j < len(o.items) {
		switch {
		case s.items[i] == o.items[j]:
			return true
		case s.items[i] < o.items[j]:
			i++
		default:
			j++
		}
	}
	return false
}
