package vecmatch

import "time"

// Candidate is a job seeker profile.
type Candidate struct {
	ID              string
	ProfileText     string
	Skills          []string
	ExperienceYears *int // nil when unknown
}

// Job is a job posting.
type Job struct {
	ID                 string
	Description        string
	RequiredSkills     []string
	ExperienceRequired *int // nil when the posting states no requirement
}

// MatchQuery tunes a FindMatches or RecommendJobs call.
// The zero value asks for the default top 50 with no threshold.
type MatchQuery struct {
	TopK              int
	MinSimilarity     float64
	RequireSkillMatch bool
	SkillMatchFloor   *float64 // nil means 0.5

	// Attribute pre-filter applied inside the index before top-K.
	AnySkills     []string
	MinExperience *int
	MaxExperience *int
}

// Match explains how one candidate scored against one job.
type Match struct {
	CandidateID     string
	JobID           string
	Similarity      float64
	SkillMatchScore float64
	ExperienceMatch bool
	OverallScore    float64
	MatchedSkills   []string
	MissingSkills   []string
}

// MatchResponse is a ranked answer. AnchorID is the job id for FindMatches
// and the candidate id for RecommendJobs.
type MatchResponse struct {
	AnchorID      string
	TotalSearched int
	Matches       []Match
	SearchTime    time.Duration
}

// BatchResult is the outcome of one record in a batch upsert.
type BatchResult struct {
	ID  string
	OK  bool
	Err error
}
