package vecmatch

import (
	"context"
	"errors"
	"testing"
)

type applicant struct {
	ID     string   `vecmatch:"id"`
	Resume string   `vecmatch:"text"`
	Tags   []string `vecmatch:"skills"`
	Years  *int     `vecmatch:"experience"`
	Notes  string
}

type posting struct {
	Ref   string   `vecmatch:"id"`
	Body  string   `vecmatch:"text"`
	Needs []string `vecmatch:"skills"`
	Min   int      `vecmatch:"experience"`
	Skip  string   `vecmatch:"-"`
}

func TestParseSchema(t *testing.T) {
	meta, err := parseSchema[applicant]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.idIdx != 0 || meta.textIdx != 1 || meta.skillsIdx != 2 || meta.experienceIdx != 3 {
		t.Errorf("indexes = %d/%d/%d/%d", meta.idIdx, meta.textIdx, meta.skillsIdx, meta.experienceIdx)
	}
}

func TestParseSchema_Pointer(t *testing.T) {
	if _, err := parseSchema[*applicant](); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseSchema_Errors(t *testing.T) {
	type noID struct {
		Text string `vecmatch:"text"`
	}
	type noText struct {
		ID string `vecmatch:"id"`
	}
	type dupID struct {
		A    string `vecmatch:"id"`
		B    string `vecmatch:"id"`
		Text string `vecmatch:"text"`
	}
	type badRole struct {
		ID   string `vecmatch:"id"`
		Text string `vecmatch:"text"`
		X    string `vecmatch:"salary"`
	}
	type badType struct {
		ID   int    `vecmatch:"id"`
		Text string `vecmatch:"text"`
	}
	type badSkills struct {
		ID     string `vecmatch:"id"`
		Text   string `vecmatch:"text"`
		Skills string `vecmatch:"skills"`
	}

	tests := []struct {
		name  string
		parse func() error
	}{
		{"not a struct", func() error { _, err := parseSchema[string](); return err }},
		{"missing id", func() error { _, err := parseSchema[noID](); return err }},
		{"missing text", func() error { _, err := parseSchema[noText](); return err }},
		{"duplicate id", func() error { _, err := parseSchema[dupID](); return err }},
		{"unknown role", func() error { _, err := parseSchema[badRole](); return err }},
		{"id not a string", func() error { _, err := parseSchema[badType](); return err }},
		{"skills not a slice", func() error { _, err := parseSchema[badSkills](); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.parse(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestExtract(t *testing.T) {
	meta, _ := parseSchema[posting]()
	p, err := meta.extract(posting{Ref: "j1", Body: "Go role", Needs: []string{"go"}, Min: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.id != "j1" || p.text != "Go role" || len(p.skills) != 1 || p.experience == nil || *p.experience != 2 {
		t.Errorf("fields = %+v", p)
	}
}

func TestExtract_NilExperience(t *testing.T) {
	meta, _ := parseSchema[applicant]()
	p, err := meta.extract(applicant{ID: "c1", Resume: "text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.experience != nil {
		t.Errorf("experience = %v, want nil", *p.experience)
	}
}

func TestExtract_NilPointer(t *testing.T) {
	meta, _ := parseSchema[*applicant]()
	var a *applicant
	if _, err := meta.extract(a); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestTypedHandles(t *testing.T) {
	c := newMemoryClient(t)
	defer c.Close()
	ctx := context.Background()

	jobs, err := NewJobs[posting](c)
	if err != nil {
		t.Fatalf("NewJobs: %v", err)
	}
	people, err := NewCandidates[*applicant](c)
	if err != nil {
		t.Fatalf("NewCandidates: %v", err)
	}

	if err := jobs.Upsert(ctx, posting{Ref: "j1", Body: "Golang services", Needs: []string{"go"}, Min: 1}); err != nil {
		t.Fatalf("jobs.Upsert: %v", err)
	}
	results, err := people.UpsertBatch(ctx, []*applicant{
		{ID: "a1", Resume: "Golang engineer", Tags: []string{"Go"}, Years: intPtr(3)},
		{ID: "a2", Resume: "Java engineer", Tags: []string{"java"}},
	})
	if err != nil {
		t.Fatalf("people.UpsertBatch: %v", err)
	}
	for _, r := range results {
		if !r.OK {
			t.Fatalf("%s: %v", r.ID, r.Err)
		}
	}

	resp, err := jobs.Matches(ctx, "j1", MatchQuery{RequireSkillMatch: true})
	if err != nil {
		t.Fatalf("jobs.Matches: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].CandidateID != "a1" {
		t.Fatalf("matches = %+v, want only a1", resp.Matches)
	}

	rec, err := people.Recommend(ctx, "a1", MatchQuery{})
	if err != nil {
		t.Fatalf("people.Recommend: %v", err)
	}
	if len(rec.Matches) != 1 || rec.Matches[0].JobID != "j1" {
		t.Fatalf("recommendations = %+v", rec.Matches)
	}

	if err := people.Delete(ctx, "a1"); err != nil {
		t.Fatalf("people.Delete: %v", err)
	}
	if err := jobs.Delete(ctx, "j1"); err != nil {
		t.Fatalf("jobs.Delete: %v", err)
	}
	if _, err := jobs.Matches(ctx, "j1", MatchQuery{}); !errors.Is(err, ErrJobNotIndexed) {
		t.Fatalf("err = %v, want ErrJobNotIndexed", err)
	}
}
