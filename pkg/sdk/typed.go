package vecmatch

import (
	"context"
	"fmt"
)

// Candidates is a schema-first handle for indexing an application's own
// candidate type. T is a struct tagged with vecmatch:"id", vecmatch:"text"
// and optionally vecmatch:"skills" and vecmatch:"experience".
//
//	type Applicant struct {
//	    ID     string   `vecmatch:"id"`
//	    Resume string   `vecmatch:"text"`
//	    Tags   []string `vecmatch:"skills"`
//	    Years  *int     `vecmatch:"experience"`
//	}
//
//	applicants, _ := vecmatch.NewCandidates[Applicant](client)
//	_ = applicants.Upsert(ctx, a)
type Candidates[T any] struct {
	client *Client
	meta   *schemaMeta
}

// NewCandidates parses T once and returns a typed candidate handle.
func NewCandidates[T any](client *Client) (*Candidates[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, err
	}
	return &Candidates[T]{client: client, meta: meta}, nil
}

func (s *Candidates[T]) toCandidate(item T) (Candidate, error) {
	p, err := s.meta.extract(item)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{ID: p.id, ProfileText: p.text, Skills: p.skills, ExperienceYears: p.experience}, nil
}

// Upsert encodes and stores one item.
func (s *Candidates[T]) Upsert(ctx context.Context, item T) error {
	c, err := s.toCandidate(item)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return s.client.UpsertCandidate(ctx, c)
}

// UpsertBatch stores items in one batch.
func (s *Candidates[T]) UpsertBatch(ctx context.Context, items []T) ([]BatchResult, error) {
	cands := make([]Candidate, len(items))
	for i, item := range items {
		var err error
		if cands[i], err = s.toCandidate(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return s.client.UpsertCandidates(ctx, cands), nil
}

// Delete removes an item by ID.
func (s *Candidates[T]) Delete(ctx context.Context, id string) error {
	return s.client.DeleteCandidate(ctx, id)
}

// Recommend ranks jobs for the candidate with the given ID.
func (s *Candidates[T]) Recommend(ctx context.Context, id string, q MatchQuery) (MatchResponse, error) {
	return s.client.RecommendJobs(ctx, id, q)
}

// Jobs is the schema-first handle for an application's own job type.
// Tags are the same as for Candidates; skills are the required skills and
// experience the required years.
type Jobs[T any] struct {
	client *Client
	meta   *schemaMeta
}

// NewJobs parses T once and returns a typed job handle.
func NewJobs[T any](client *Client) (*Jobs[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, err
	}
	return &Jobs[T]{client: client, meta: meta}, nil
}

func (s *Jobs[T]) toJob(item T) (Job, error) {
	p, err := s.meta.extract(item)
	if err != nil {
		return Job{}, err
	}
	return Job{ID: p.id, Description: p.text, RequiredSkills: p.skills, ExperienceRequired: p.experience}, nil
}

// Upsert encodes and stores one item.
func (s *Jobs[T]) Upsert(ctx context.Context, item T) error {
	j, err := s.toJob(item)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return s.client.UpsertJob(ctx, j)
}

// UpsertBatch stores items in one batch.
func (s *Jobs[T]) UpsertBatch(ctx context.Context, items []T) ([]BatchResult, error) {
	jobs := make([]Job, len(items))
	for i, item := range items {
		var err error
		if jobs[i], err = s.toJob(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return s.client.UpsertJobs(ctx, jobs), nil
}

// Delete removes an item by ID.
func (s *Jobs[T]) Delete(ctx context.Context, id string) error {
	return s.client.DeleteJob(ctx, id)
}

// Matches ranks candidates for the job with the given ID.
func (s *Jobs[T]) Matches(ctx context.Context, id string, q MatchQuery) (MatchResponse, error) {
	return s.client.FindMatches(ctx, id, q)
}
