package match

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Result explains how one candidate scored against one job.
type Result struct {
	CandidateID     string
	JobID           string
	Similarity      float64
	SkillMatchScore float64
	ExperienceMatch bool
	OverallScore    float64
	MatchedSkills   []string
	MissingSkills   []string
}

// Rank orders results by overall score, then similarity (both descending),
// then by the id of the ranked entity ascending.
func Rank(results []Result, rankedID func(Result) string) {
	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.OverallScore, a.OverallScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(rankedID(a), rankedID(b))
	})
}

// ByCandidate selects the candidate id for job → candidates ranking.
func ByCandidate(r Result) string { return r.CandidateID }

// ByJob selects the job id for candidate → jobs ranking.
func ByJob(r Result) string { return r.JobID }

// Response is the ranked answer to a Query.
type Response struct {
	anchorID string
	searched int
	matches  []Result
	elapsed  time.Duration
}

// NewResponse creates a Response. A nil matches slice becomes empty.
func NewResponse(anchorID string, matches []Result, elapsed time.Duration) Response {
	if matches == nil {
		matches = []Result{}
	}
	return Response{anchorID: anchorID, searched: len(matches), matches: matches, elapsed: elapsed}
}

// AnchorID returns the job id (or candidate id for recommendations).
func (r Response) AnchorID() string { return r.anchorID }

// TotalSearched returns the number of entities scored after filtering.
func (r Response) TotalSearched() int { return r.searched }

// Matches returns the ranked results.
func (r Response) Matches() []Result { return r.matches }

// Elapsed returns the wall-clock search time.
func (r Response) Elapsed() time.Duration { return r.elapsed }

// SearchTimeMS returns the elapsed time in milliseconds rounded to 2 decimals.
func (r Response) SearchTimeMS() float64 {
	ms := float64(r.elapsed) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
