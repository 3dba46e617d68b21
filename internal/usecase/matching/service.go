// Package matching ranks candidates for jobs (and jobs for candidates) by
// combining vector similarity with skill and experience matching.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
	"github.com/kailas-cloud/vecmatch/internal/domain/match"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
	"github.com/kailas-cloud/vecmatch/internal/domain/scoring"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// Service orchestrates encoding, index lookups, attribute scoring and ranking.
// It holds no mutable state; all durable state lives in the Index.
type Service struct {
	index    Index
	encoders profile.Encoders
	weights  scoring.Weights
	logger   *zap.Logger
}

// New creates a matching service with the default 60/30/10 weights.
func New(idx Index, encoders profile.Encoders, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		index:    idx,
		encoders: encoders,
		weights:  scoring.DefaultWeights(),
		logger:   logger,
	}
}

// WithWeights replaces the ranking weights.
func (s *Service) WithWeights(w scoring.Weights) (*Service, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	s.weights = w
	return s, nil
}

// Weights returns the ranking weights in use.
func (s *Service) Weights() scoring.Weights { return s.weights }

// EnsureIndexes provisions the candidate and job indexes concurrently.
func (s *Service) EnsureIndexes(ctx context.Context, spec index.Spec) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, class := range entity.Classes {
		g.Go(func() error {
			if err := s.index.EnsureIndex(gctx, class, spec); err != nil {
				return fmt.Errorf("ensure %s index: %w", class, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("indexes ready",
		zap.Int("dimensions", spec.Dimensions),
		zap.String("metric", string(spec.Metric)),
	)
	return nil
}

// FindMatches ranks candidates for the job named by q.
func (s *Service) FindMatches(ctx context.Context, q match.Query) (match.Response, error) {
	return s.rank(ctx, entity.Job, q)
}

// RecommendJobs ranks jobs for the candidate named by q, with the same scoring.
func (s *Service) RecommendJobs(ctx context.Context, q match.Query) (match.Response, error) {
	return s.rank(ctx, entity.Candidate, q)
}

func (s *Service) rank(ctx context.Context, anchorClass entity.Class, q match.Query) (resp match.Response, err error) {
	start := time.Now()
	direction := string(anchorClass) + "_to_" + string(anchorClass.Counterpart())
	defer func() {
		metrics.MatchRequestsTotal.WithLabelValues(direction, metrics.Status(err)).Inc()
		if err == nil {
			metrics.MatchDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
			metrics.MatchResultsReturned.WithLabelValues(direction).Observe(float64(resp.TotalSearched()))
		}
	}()

	anchor, ok, err := s.index.Get(ctx, anchorClass, q.AnchorID())
	if err != nil {
		return match.Response{}, fmt.Errorf("get %s %q: %w", anchorClass, q.AnchorID(), err)
	}
	if !ok {
		return match.Response{}, notIndexed(anchorClass, q.AnchorID())
	}

	hits, err := s.index.Query(ctx, anchorClass.Counterpart(), index.Query{
		Vector:        anchor.Vector(),
		TopK:          q.TopK(),
		MinSimilarity: q.MinSimilarity(),
		Filter:        q.Filter(),
	})
	if err != nil {
		return match.Response{}, fmt.Errorf("query %s index: %w", anchorClass.Counterpart(), err)
	}

	results := make([]match.Result, 0, len(hits))
	dropped := 0
	for _, h := range hits {
		r, keep := s.score(anchorClass, anchor, h, q)
		if !keep {
			dropped++
			continue
		}
		results = append(results, r)
	}

	rankedID := match.ByCandidate
	if anchorClass == entity.Candidate {
		rankedID = match.ByJob
	}
	match.Rank(results, rankedID)

	if dropped > 0 {
		metrics.MatchDroppedTotal.WithLabelValues(direction).Add(float64(dropped))
	}
	resp = match.NewResponse(q.AnchorID(), results, time.Since(start))
	s.logger.Debug("ranked",
		zap.String("direction", direction),
		zap.String("anchor_id", q.AnchorID()),
		zap.Int("hits", len(hits)),
		zap.Int("dropped", dropped),
		zap.Int("returned", resp.TotalSearched()),
		zap.Float64("search_time_ms", resp.SearchTimeMS()),
	)
	return resp, nil
}

// score computes the sub-scores for one hit. The job side always supplies the requirements.
func (s *Service) score(anchorClass entity.Class, anchor entity.Entity, h index.Hit, q match.Query) (match.Result, bool) {
	candidateID, jobID := h.ID, anchor.ID()
	candidate, job := h.Attributes, anchor.Attributes()
	if anchorClass == entity.Candidate {
		candidateID, jobID = anchor.ID(), h.ID
		candidate, job = anchor.Attributes(), h.Attributes
	}

	overlap := scoring.SkillMatch(candidate.Skills(), job.Skills())
	if !q.Admits(overlap.Score) {
		return match.Result{}, false
	}
	expMatch := scoring.ExperienceMatch(candidate.Experience(), job.Experience())

	return match.Result{
		CandidateID:     candidateID,
		JobID:           jobID,
		Similarity:      h.Similarity,
		SkillMatchScore: overlap.Score,
		ExperienceMatch: expMatch,
		OverallScore:    s.weights.Overall(h.Similarity, overlap.Score, expMatch),
		MatchedSkills:   overlap.Matched,
		MissingSkills:   overlap.Missing,
	}, true
}

func notIndexed(class entity.Class, id string) error {
	if class == entity.Candidate {
		return fmt.Errorf("%w: %q", domain.ErrCandidateNotIndexed, id)
	}
	return fmt.Errorf("%w: %q", domain.ErrJobNotIndexed, id)
}

// encodingError classifies encoder failures as ErrEncoding while keeping the cause.
func encodingError(class entity.Class, id string, err error) error {
	if errors.Is(err, domain.ErrEncoding) {
		return fmt.Errorf("encode %s %q: %w", class, id, err)
	}
	return fmt.Errorf("encode %s %q: %w: %w", class, id, domain.ErrEncoding, err)
}
