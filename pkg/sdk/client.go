package vecmatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbPostgres "github.com/kailas-cloud/vecmatch/internal/db/postgres"
	dbValkey "github.com/kailas-cloud/vecmatch/internal/db/valkey"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/index"
	"github.com/kailas-cloud/vecmatch/internal/domain/match"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
	"github.com/kailas-cloud/vecmatch/internal/domain/scoring"
	"github.com/kailas-cloud/vecmatch/internal/domain/skill"
	"github.com/kailas-cloud/vecmatch/internal/repository/kvindex"
	"github.com/kailas-cloud/vecmatch/internal/repository/memory"
	"github.com/kailas-cloud/vecmatch/internal/repository/pgindex"
	batchuc "github.com/kailas-cloud/vecmatch/internal/usecase/batch"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchinguc "github.com/kailas-cloud/vecmatch/internal/usecase/matching"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped for mocks in tests.
type matchingUseCase interface {
	Upsert(ctx context.Context, rec profile.Record) error
	DeleteCandidate(ctx context.Context, id string) error
	DeleteJob(ctx context.Context, id string) error
	FindMatches(ctx context.Context, q match.Query) (match.Response, error)
	RecommendJobs(ctx context.Context, q match.Query) (match.Response, error)
}

type batchUseCase interface {
	Upsert(ctx context.Context, class entity.Class, records []profile.Record) []dombatch.Result
	Delete(ctx context.Context, class entity.Class, ids []string) []dombatch.Result
}

type vectorIndex interface {
	matchinguc.Index
	Ping(ctx context.Context) error
}

// Client is the vecmatch SDK entry point.
type Client struct {
	index     vectorIndex
	matching  matchingUseCase
	batch     batchUseCase
	healthSvc healthUseCase
	obs       *observer
	closeFn   func()
}

// New creates a Client, connects the index backend and ensures the
// candidate and job indexes exist. The context bounds the initial
// readiness check and index provisioning.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: driverMemory}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.encoder == nil {
		return nil, errors.New("vecmatch: encoder required (use WithEncoder)")
	}
	if cfg.dimensions <= 0 {
		return nil, errors.New("vecmatch: embedding dimensions required (use WithDimensions)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	idx, closeFn, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(ctx, idx, cfg, obs)
	if err != nil {
		closeFn()
		return nil, err
	}
	c.closeFn = closeFn
	return c, nil
}

func openIndex(ctx context.Context, cfg *clientConfig) (vectorIndex, func(), error) {
	hnsw := kvindex.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct}

	switch cfg.driver {
	case driverMemory:
		return memory.New(), func() {}, nil

	case driverValkey, driverRedis:
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, nil, fmt.Errorf("vecmatch: %s address required", cfg.driver)
		}
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("vecmatch: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("vecmatch: %s not ready: %w", cfg.driver, err)
		}
		return kvindex.New(s, cfg.keyPrefix, hnsw, nil), s.Close, nil

	case driverPostgres:
		pg, err := dbPostgres.Open(dbPostgres.Config{DSN: cfg.dsn})
		if err != nil {
			return nil, nil, fmt.Errorf("vecmatch: %w", err)
		}
		if err := dbPostgres.WaitForReady(ctx, pg, defaultReadinessTimeout); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("vecmatch: postgres not ready: %w", err)
		}
		idx := pgindex.New(pg, cfg.keyPrefix, pgindex.HNSWConfig(hnsw), nil)
		return idx, func() { _ = pg.Close() }, nil
	}
	return nil, nil, fmt.Errorf("vecmatch: unknown driver %q", cfg.driver)
}

func wireClient(ctx context.Context, idx vectorIndex, cfg *clientConfig, obs *observer) (*Client, error) {
	enc := &encoderAdapter{inner: cfg.encoder}
	encoders := profile.SameEncoder(enc)

	matchingSvc := matchinguc.New(idx, encoders, nil)
	if w := cfg.weights; w != nil {
		var err error
		matchingSvc, err = matchingSvc.WithWeights(scoring.Weights{
			Similarity: w.Similarity,
			Skill:      w.Skill,
			Experience: w.Experience,
		})
		if err != nil {
			return nil, fmt.Errorf("vecmatch: %w", err)
		}
	}

	spec, err := index.NewSpec(cfg.dimensions, index.Cosine)
	if err != nil {
		return nil, fmt.Errorf("vecmatch: %w", err)
	}
	if err := matchingSvc.EnsureIndexes(ctx, spec); err != nil {
		return nil, fmt.Errorf("vecmatch: %w", err)
	}

	batchSvc := batchuc.New(idx, encoders)
	if cfg.maxBatchSize > 0 {
		batchSvc = batchSvc.WithMaxBatchSize(cfg.maxBatchSize)
	}

	return &Client{
		index:     idx,
		matching:  matchingSvc,
		batch:     batchSvc,
		healthSvc: healthuc.New(idx, enc),
		obs:       obs,
	}, nil
}

// Close releases the backend connection.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Ping checks index backend connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.index.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// UpsertCandidate encodes and stores a candidate, replacing any previous version.
func (c *Client) UpsertCandidate(ctx context.Context, cand Candidate) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("candidate.upsert", start, err) }()

	rec, err := candidateRecord(cand)
	if err != nil {
		return fmt.Errorf("upsert candidate: %w", err)
	}
	if err = c.matching.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert candidate: %w", err)
	}
	return nil
}

// UpsertJob encodes and stores a job, replacing any previous version.
func (c *Client) UpsertJob(ctx context.Context, job Job) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("job.upsert", start, err) }()

	rec, err := jobRecord(job)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	if err = c.matching.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// UpsertCandidates stores candidates in one batch. Results follow input order;
// an invalid candidate fails alone.
func (c *Client) UpsertCandidates(ctx context.Context, cands []Candidate) []BatchResult {
	start := time.Now()
	results := upsertBatch(ctx, c.batch, entity.Candidate, cands, candidateRecord,
		func(cand Candidate) string { return cand.ID })
	c.obs.observe("candidate.batch_upsert", start, firstError(results))
	return results
}

// UpsertJobs stores jobs in one batch. Results follow input order;
// an invalid job fails alone.
func (c *Client) UpsertJobs(ctx context.Context, jobs []Job) []BatchResult {
	start := time.Now()
	results := upsertBatch(ctx, c.batch, entity.Job, jobs, jobRecord,
		func(job Job) string { return job.ID })
	c.obs.observe("job.batch_upsert", start, firstError(results))
	return results
}

// DeleteCandidates removes candidates in one batch. Results match ids by position.
func (c *Client) DeleteCandidates(ctx context.Context, ids []string) []BatchResult {
	start := time.Now()
	results := fromBatch(c.batch.Delete(ctx, entity.Candidate, ids))
	c.obs.observe("candidate.batch_delete", start, firstError(results))
	return results
}

// DeleteJobs removes jobs in one batch. Results match ids by position.
func (c *Client) DeleteJobs(ctx context.Context, ids []string) []BatchResult {
	start := time.Now()
	results := fromBatch(c.batch.Delete(ctx, entity.Job, ids))
	c.obs.observe("job.batch_delete", start, firstError(results))
	return results
}

// DeleteCandidate removes a candidate. Deleting an absent candidate is not an error.
func (c *Client) DeleteCandidate(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("candidate.delete", start, err) }()

	if err = c.matching.DeleteCandidate(ctx, id); err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	return nil
}

// DeleteJob removes a job. Deleting an absent job is not an error.
func (c *Client) DeleteJob(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("job.delete", start, err) }()

	if err = c.matching.DeleteJob(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// FindMatches ranks candidates for a job. A job that was never upserted
// fails with ErrJobNotIndexed.
func (c *Client) FindMatches(ctx context.Context, jobID string, q MatchQuery) (resp MatchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("match.find", start, err) }()

	query, err := toQuery(jobID, q)
	if err != nil {
		return MatchResponse{}, fmt.Errorf("find matches: %w", err)
	}
	r, err := c.matching.FindMatches(ctx, query)
	if err != nil {
		return MatchResponse{}, fmt.Errorf("find matches: %w", err)
	}
	return fromResponse(r), nil
}

// RecommendJobs ranks jobs for a candidate. A candidate that was never
// upserted fails with ErrCandidateNotIndexed.
func (c *Client) RecommendJobs(ctx context.Context, candidateID string, q MatchQuery) (resp MatchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("match.recommend", start, err) }()

	query, err := toQuery(candidateID, q)
	if err != nil {
		return MatchResponse{}, fmt.Errorf("recommend jobs: %w", err)
	}
	r, err := c.matching.RecommendJobs(ctx, query)
	if err != nil {
		return MatchResponse{}, fmt.Errorf("recommend jobs: %w", err)
	}
	return fromResponse(r), nil
}

func candidateRecord(c Candidate) (profile.Record, error) {
	return profile.NewCandidate(c.ID, c.ProfileText, c.Skills, c.ExperienceYears)
}

func jobRecord(j Job) (profile.Record, error) {
	return profile.NewJob(j.ID, j.Description, j.RequiredSkills, j.ExperienceRequired)
}

func upsertBatch[T any](
	ctx context.Context,
	svc batchUseCase,
	class entity.Class,
	items []T,
	toRecord func(T) (profile.Record, error),
	idOf func(T) string,
) []BatchResult {
	out := make([]BatchResult, len(items))
	records := make([]profile.Record, 0, len(items))
	positions := make([]int, 0, len(items))
	for i, item := range items {
		rec, err := toRecord(item)
		if err != nil {
			out[i] = BatchResult{ID: idOf(item), Err: err}
			continue
		}
		records = append(records, rec)
		positions = append(positions, i)
	}
	if len(records) == 0 {
		return out
	}

	for n, r := range fromBatch(svc.Upsert(ctx, class, records)) {
		out[positions[n]] = r
	}
	return out
}

func fromBatch(results []dombatch.Result) []BatchResult {
	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{ID: r.ID(), OK: r.Status() == dombatch.StatusOK, Err: r.Err()}
	}
	return out
}

func firstError(results []BatchResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

func toQuery(anchorID string, q MatchQuery) (match.Query, error) {
	if q.TopK < 0 {
		return match.Query{}, fmt.Errorf("top_k must be positive: %w", ErrInvalidArgument)
	}
	query, err := match.NewQuery(anchorID, q.TopK, q.MinSimilarity, q.RequireSkillMatch, q.SkillMatchFloor)
	if err != nil {
		return match.Query{}, err
	}
	if len(q.AnySkills) == 0 && q.MinExperience == nil && q.MaxExperience == nil {
		return query, nil
	}
	f, err := index.NewFilter(skill.NewSet(q.AnySkills...), q.MinExperience, q.MaxExperience)
	if err != nil {
		return match.Query{}, err
	}
	return query.WithFilter(f), nil
}

func fromResponse(r match.Response) MatchResponse {
	matches := make([]Match, len(r.Matches()))
	for i, m := range r.Matches() {
		matches[i] = Match{
			CandidateID:     m.CandidateID,
			JobID:           m.JobID,
			Similarity:      m.Similarity,
			SkillMatchScore: m.SkillMatchScore,
			ExperienceMatch: m.ExperienceMatch,
			OverallScore:    m.OverallScore,
			MatchedSkills:   m.MatchedSkills,
			MissingSkills:   m.MissingSkills,
		}
	}
	return MatchResponse{
		AnchorID:      r.AnchorID(),
		TotalSearched: r.TotalSearched(),
		Matches:       matches,
		SearchTime:    r.Elapsed(),
	}
}
