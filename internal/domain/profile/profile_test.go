package profile

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
)

func intPtr(v int) *int { return &v }

func TestNewCandidate(t *testing.T) {
	r, err := NewCandidate("c1", "Backend engineer", []string{"Python", " sql ", "python"}, intPtr(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Class() != entity.Candidate {
		t.Errorf("Class() = %q", r.Class())
	}
	if got := r.Attributes().Skills().Slice(); !slices.Equal(got, []string{"python", "sql"}) {
		t.Errorf("skills = %v", got)
	}
	e, err := r.Embed([]float32{1, 0})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if e.Summary() != "Backend engineer" || *e.Attributes().Experience() != 5 {
		t.Errorf("unexpected entity %+v", e)
	}
}

func TestNewJob_NoRequirements(t *testing.T) {
	r, err := NewJob("j1", "Anything goes", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Class() != entity.Job || !r.Attributes().Skills().IsEmpty() || r.Attributes().HasExperience() {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestNewRecord_Invalid(t *testing.T) {
	tooMany := make([]string, MaxSkills+1)
	for i := range tooMany {
		tooMany[i] = "s"
	}
	tests := []struct {
		name   string
		id     string
		text   string
		skills []string
		exp    *int
	}{
		{"empty id", "", "text", nil, nil},
		{"blank text", "c1", "   ", nil, nil},
		{"huge text", "c1", strings.Repeat("a", MaxTextBytes+1), nil, nil},
		{"invalid utf8", "c1", "\xff\xfe", nil, nil},
		{"too many skills", "c1", "text", tooMany, nil},
		{"long skill", "c1", "text", []string{strings.Repeat("k", 200)}, nil},
		{"negative experience", "c1", "text", nil, intPtr(-2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCandidate(tt.id, tt.text, tt.skills, tt.exp)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestEmbed_EmptyVector(t *testing.T) {
	r, _ := NewJob("j1", "text", nil, nil)
	if _, err := r.Embed(nil); !errors.Is(err, domain.ErrEmbeddingMissing) {
		t.Errorf("expected ErrEmbeddingMissing, got %v", err)
	}
}

type echoEncoder struct{ got []string }

func (e *echoEncoder) Encode(_ context.Context, text string) (domain.EncodingResult, error) {
	e.got = append(e.got, text)
	return domain.EncodingResult{Vector: []float32{1}}, nil
}

func TestWithInstructions(t *testing.T) {
	base := &echoEncoder{}
	encs := WithInstructions(base, "candidate: ", "")

	_, _ = encs.For(entity.Candidate).Encode(context.Background(), "a")
	_, _ = encs.For(entity.Job).Encode(context.Background(), "b")

	if !slices.Equal(base.got, []string{"candidate: a", "b"}) {
		t.Errorf("encoded texts = %v", base.got)
	}
}
