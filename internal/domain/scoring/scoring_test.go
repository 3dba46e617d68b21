package scoring

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
)

func intPtr(v int) *int { return &v }

func TestSkillMatch(t *testing.T) {
	tests := []struct {
		name        string
		candidate   skill.Set
		required    skill.Set
		wantScore   float64
		wantMatched []string
		wantMissing []string
	}{
		{
			name:        "full match",
			candidate:   skill.NewSet("python", "sql", "aws"),
			required:    skill.NewSet("python", "sql"),
			wantScore:   1.0,
			wantMatched: []string{"python", "sql"},
			wantMissing: []string{},
		},
		{
			name:        "half match",
			candidate:   skill.NewSet("python"),
			required:    skill.NewSet("python", "sql"),
			wantScore:   0.5,
			wantMatched: []string{"python"},
			wantMissing: []string{"sql"},
		},
		{
			name:        "no match",
			candidate:   skill.NewSet("java"),
			required:    skill.NewSet("go", "sql", "k8s"),
			wantScore:   0,
			wantMatched: []string{},
			wantMissing: []string{"go", "k8s", "sql"},
		},
		{
			name:        "empty requirement",
			candidate:   skill.NewSet("go"),
			required:    skill.NewSet(),
			wantScore:   1.0,
			wantMatched: []string{},
			wantMissing: []string{},
		},
		{
			name:        "empty requirement and empty candidate",
			wantScore:   1.0,
			wantMatched: []string{},
			wantMissing: []string{},
		},
		{
			name:        "case insensitive",
			candidate:   skill.NewSet("PostgreSQL"),
			required:    skill.NewSet("postgresql"),
			wantScore:   1.0,
			wantMatched: []string{"postgresql"},
			wantMissing: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SkillMatch(tt.candidate, tt.required)
			if math.Abs(got.Score-tt.wantScore) > 1e-9 {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if !slices.Equal(got.Matched, tt.wantMatched) {
				t.Errorf("Matched = %v, want %v", got.Matched, tt.wantMatched)
			}
			if !slices.Equal(got.Missing, tt.wantMissing) {
				t.Errorf("Missing = %v, want %v", got.Missing, tt.wantMissing)
			}
		})
	}
}

func TestSkillMatch_PartitionsRequirement(t *testing.T) {
	required := skill.NewSet("a", "b", "c", "d")
	got := SkillMatch(skill.NewSet("b", "d", "z"), required)
	union := append(slices.Clone(got.Matched), got.Missing...)
	slices.Sort(union)
	if !slices.Equal(union, required.Slice()) {
		t.Errorf("matched ∪ missing = %v, want %v", union, required.Slice())
	}
}

func TestExperienceMatch(t *testing.T) {
	tests := []struct {
		name      string
		candidate *int
		required  *int
		want      bool
	}{
		{"no requirement", nil, nil, true},
		{"no requirement with experience", intPtr(2), nil, true},
		{"meets", intPtr(5), intPtr(3), true},
		{"exactly meets", intPtr(3), intPtr(3), true},
		{"below", intPtr(1), intPtr(3), false},
		{"unrecorded", nil, intPtr(3), false},
		{"zero requirement unrecorded", nil, intPtr(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExperienceMatch(tt.candidate, tt.required); got != tt.want {
				t.Errorf("ExperienceMatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeights_Overall(t *testing.T) {
	w := DefaultWeights()
	if got := w.Overall(0.9, 1.0, true); math.Abs(got-94) > 1e-9 {
		t.Errorf("Overall(0.9, 1, true) = %v, want 94", got)
	}
	if got := w.Overall(0.95, 0.5, false); math.Abs(got-72) > 1e-9 {
		t.Errorf("Overall(0.95, 0.5, false) = %v, want 72", got)
	}
	if w.Sum() != 100 {
		t.Errorf("Sum() = %v, want 100", w.Sum())
	}
}

func TestWeights_Monotonic(t *testing.T) {
	w := DefaultWeights()
	for _, exp := range []bool{true, false} {
		for _, sk := range []float64{0, 0.5, 1} {
			if w.Overall(0.8, sk, exp) < w.Overall(0.7, sk, exp) {
				t.Errorf("higher similarity scored lower (skill=%v exp=%v)", sk, exp)
			}
		}
	}
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		w       Weights
		wantErr bool
	}{
		{"default", DefaultWeights(), false},
		{"similarity only", Weights{Similarity: 1}, false},
		{"negative", Weights{Similarity: -1, Skill: 1}, true},
		{"nan", Weights{Similarity: math.NaN()}, true},
		{"inf", Weights{Skill: math.Inf(1)}, true},
		{"all zero", Weights{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
