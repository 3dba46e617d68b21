package chi

import (
	"fmt"

	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	"github.com/kailas-cloud/vecmatch/internal/domain/match"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
)

// UpsertCandidateRequest is the body of PUT /v1/candidates/{id}.
type UpsertCandidateRequest struct {
	ProfileText     string   `json:"profile_text"`
	Skills          []string `json:"skills"`
	ExperienceYears *int     `json:"experience_years,omitempty"`
}

// UpsertJobRequest is the body of PUT /v1/jobs/{id}.
type UpsertJobRequest struct {
	Description        string   `json:"description"`
	RequiredSkills     []string `json:"required_skills"`
	ExperienceRequired *int     `json:"experience_required,omitempty"`
}

// BatchCandidate is one item of a candidate batch.
type BatchCandidate struct {
	ID string `json:"id"`
	UpsertCandidateRequest
}

// BatchJob is one item of a job batch.
type BatchJob struct {
	ID string `json:"id"`
	UpsertJobRequest
}

// BatchCandidatesRequest is the body of POST /v1/candidates/batch.
type BatchCandidatesRequest struct {
	Candidates []BatchCandidate `json:"candidates"`
}

// BatchJobsRequest is the body of POST /v1/jobs/batch.
type BatchJobsRequest struct {
	Jobs []BatchJob `json:"jobs"`
}

// BatchDeleteRequest is the body of POST /v1/{candidates,jobs}/batch/delete.
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// UpsertResponse acknowledges a single upsert.
type UpsertResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// BatchResultItem is the outcome of one batch item.
type BatchResultItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchResponse reports per-item batch outcomes.
type BatchResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// MatchResult explains one candidate/job pairing.
type MatchResult struct {
	CandidateID     string   `json:"candidate_id"`
	JobID           string   `json:"job_id"`
	SimilarityScore float64  `json:"similarity_score"`
	SkillMatchScore float64  `json:"skill_match_score"`
	ExperienceMatch bool     `json:"experience_match"`
	OverallScore    float64  `json:"overall_score"`
	MatchedSkills   []string `json:"matched_skills"`
	MissingSkills   []string `json:"missing_skills"`
}

// MatchResponse is the body of GET /v1/jobs/{id}/matches.
type MatchResponse struct {
	JobID                   string        `json:"job_id"`
	TotalCandidatesSearched int           `json:"total_candidates_searched"`
	Matches                 []MatchResult `json:"matches"`
	SearchTimeMS            float64       `json:"search_time_ms"`
}

// RecommendationResponse is the body of GET /v1/candidates/{id}/jobs.
type RecommendationResponse struct {
	CandidateID       string        `json:"candidate_id"`
	TotalJobsSearched int           `json:"total_jobs_searched"`
	Matches           []MatchResult `json:"matches"`
	SearchTimeMS      float64       `json:"search_time_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}

func matchesToDTO(results []match.Result) []MatchResult {
	out := make([]MatchResult, len(results))
	for i, r := range results {
		out[i] = MatchResult{
			CandidateID:     r.CandidateID,
			JobID:           r.JobID,
			SimilarityScore: r.Similarity,
			SkillMatchScore: r.SkillMatchScore,
			ExperienceMatch: r.ExperienceMatch,
			OverallScore:    r.OverallScore,
			MatchedSkills:   nonNil(r.MatchedSkills),
			MissingSkills:   nonNil(r.MissingSkills),
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func batchToDTO(results []dombatch.Result) BatchResponse {
	items := make([]BatchResultItem, len(results))
	for i, r := range results {
		items[i] = BatchResultItem{ID: r.ID(), Status: string(r.Status())}
		if r.Err() != nil {
			items[i].Error = &ErrorResponse{Code: errorCode(r.Err()), Message: safeDomainMessage(r.Err())}
		}
	}
	succeeded, failed := dombatch.Counts(results)
	return BatchResponse{Items: items, Succeeded: succeeded, Failed: failed}
}

// parsed is a validated batch: the accepted records, their positions in the
// request and a result slot for every item, pre-filled for rejected ones.
type parsed struct {
	records   []profile.Record
	positions []int
	results   []dombatch.Result
}

func (p *parsed) add(pos int, id string, rec profile.Record, err error) {
	if err != nil {
		p.results[pos] = dombatch.NewError(itemID(id, pos), err)
		return
	}
	p.records = append(p.records, rec)
	p.positions = append(p.positions, pos)
}

// merge places the results of the accepted records into their request positions.
func (p *parsed) merge(accepted []dombatch.Result) []dombatch.Result {
	for i, r := range accepted {
		p.results[p.positions[i]] = r
	}
	return p.results
}

func (b BatchCandidatesRequest) parse() *parsed {
	p := &parsed{results: make([]dombatch.Result, len(b.Candidates))}
	for i, c := range b.Candidates {
		rec, err := profile.NewCandidate(c.ID, c.ProfileText, c.Skills, c.ExperienceYears)
		p.add(i, c.ID, rec, err)
	}
	return p
}

func (b BatchJobsRequest) parse() *parsed {
	p := &parsed{results: make([]dombatch.Result, len(b.Jobs))}
	for i, j := range b.Jobs {
		rec, err := profile.NewJob(j.ID, j.Description, j.RequiredSkills, j.ExperienceRequired)
		p.add(i, j.ID, rec, err)
	}
	return p
}

// itemID names an item in a batch result, falling back to its position when the id is empty.
func itemID(id string, pos int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("#%d", pos)
}
