// Package chi serves the matching API over HTTP with the chi router.
package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/match"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
)

const maxBodyBytes = 8 << 20

// matcher is the consumer interface over usecase/matching.Service.
type matcher interface {
	Upsert(ctx context.Context, rec profile.Record) error
	DeleteCandidate(ctx context.Context, id string) error
	DeleteJob(ctx context.Context, id string) error
	FindMatches(ctx context.Context, q match.Query) (match.Response, error)
	RecommendJobs(ctx context.Context, q match.Query) (match.Response, error)
}

// batcher is the consumer interface over usecase/batch.Service.
type batcher interface {
	Upsert(ctx context.Context, class entity.Class, records []profile.Record) []dombatch.Result
	Delete(ctx context.Context, class entity.Class, ids []string) []dombatch.Result
	MaxBatchSize() int
}

// healthChecker is the consumer interface over usecase/health.Service.
type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// MatchDefaults apply when a match request omits top_k or skill_match_floor.
type MatchDefaults struct {
	TopK            int
	SkillMatchFloor float64
}

// Server holds the HTTP handlers of the matching API.
type Server struct {
	matching      matcher
	batch         batcher
	health        healthChecker
	defaults      MatchDefaults
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(matching matcher, batch batcher, health healthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		matching:      matching,
		batch:         batch,
		health:        health,
		defaults:      MatchDefaults{TopK: match.DefaultTopK, SkillMatchFloor: match.DefaultSkillMatchFloor},
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithMatchDefaults overrides the defaults of match requests. Zero fields keep the built-in values.
func (s *Server) WithMatchDefaults(d MatchDefaults) *Server {
	if d.TopK > 0 {
		s.defaults.TopK = d.TopK
	}
	if d.SkillMatchFloor > 0 {
		s.defaults.SkillMatchFloor = d.SkillMatchFloor
	}
	return s
}

// UpsertCandidate handles PUT /v1/candidates/{id}.
func (s *Server) UpsertCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := bindPathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	var req UpsertCandidateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := profile.NewCandidate(id, req.ProfileText, req.Skills, req.ExperienceYears)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.upsert(w, r, rec)
}

// UpsertJob handles PUT /v1/jobs/{id}.
func (s *Server) UpsertJob(w http.ResponseWriter, r *http.Request) {
	id, err := bindPathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	var req UpsertJobRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := profile.NewJob(id, req.Description, req.RequiredSkills, req.ExperienceRequired)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.upsert(w, r, rec)
}

func (s *Server) upsert(w http.ResponseWriter, r *http.Request, rec profile.Record) {
	if err := s.matching.Upsert(r.Context(), rec); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEncodingHeaders(w, domain.UsageFromContext(r.Context()))
	writeJSON(w, http.StatusOK, UpsertResponse{ID: rec.ID(), Status: string(dombatch.StatusOK)})
}

// DeleteCandidate handles DELETE /v1/candidates/{id}.
func (s *Server) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	s.delete(w, r, s.matching.DeleteCandidate)
}

// DeleteJob handles DELETE /v1/jobs/{id}.
func (s *Server) DeleteJob(w http.ResponseWriter, r *http.Request) {
	s.delete(w, r, s.matching.DeleteJob)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request, del func(context.Context, string) error) {
	id, err := bindPathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if err := del(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchUpsertCandidates handles POST /v1/candidates/batch.
func (s *Server) BatchUpsertCandidates(w http.ResponseWriter, r *http.Request) {
	var req BatchCandidatesRequest
	if !decodeBody(w, r, &req) || !s.checkBatchSize(w, "candidates", len(req.Candidates)) {
		return
	}
	s.batchUpsert(w, r, entity.Candidate, req.parse())
}

// BatchUpsertJobs handles POST /v1/jobs/batch.
func (s *Server) BatchUpsertJobs(w http.ResponseWriter, r *http.Request) {
	var req BatchJobsRequest
	if !decodeBody(w, r, &req) || !s.checkBatchSize(w, "jobs", len(req.Jobs)) {
		return
	}
	s.batchUpsert(w, r, entity.Job, req.parse())
}

func (s *Server) batchUpsert(w http.ResponseWriter, r *http.Request, class entity.Class, p *parsed) {
	var accepted []dombatch.Result
	if len(p.records) > 0 {
		accepted = s.batch.Upsert(r.Context(), class, p.records)
	}
	results := p.merge(accepted)

	setEncodingHeaders(w, domain.UsageFromContext(r.Context()))
	writeJSON(w, http.StatusOK, batchToDTO(results))
}

// BatchDeleteCandidates handles POST /v1/candidates/batch/delete.
func (s *Server) BatchDeleteCandidates(w http.ResponseWriter, r *http.Request) {
	s.batchDelete(w, r, entity.Candidate)
}

// BatchDeleteJobs handles POST /v1/jobs/batch/delete.
func (s *Server) BatchDeleteJobs(w http.ResponseWriter, r *http.Request) {
	s.batchDelete(w, r, entity.Job)
}

func (s *Server) batchDelete(w http.ResponseWriter, r *http.Request, class entity.Class) {
	var req BatchDeleteRequest
	if !decodeBody(w, r, &req) || !s.checkBatchSize(w, "ids", len(req.IDs)) {
		return
	}
	writeJSON(w, http.StatusOK, batchToDTO(s.batch.Delete(r.Context(), class, req.IDs)))
}

// checkBatchSize rejects empty and oversized batches before any item is validated.
func (s *Server) checkBatchSize(w http.ResponseWriter, field string, n int) bool {
	if n == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, field+" must not be empty")
		return false
	}
	if limit := s.batch.MaxBatchSize(); limit > 0 && n > limit {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("%s: batch of %d exceeds the limit of %d", field, n, limit))
		return false
	}
	return true
}

// FindMatches handles GET /v1/jobs/{id}/matches.
func (s *Server) FindMatches(w http.ResponseWriter, r *http.Request) {
	q, ok := s.matchQuery(w, r)
	if !ok {
		return
	}
	resp, err := s.matching.FindMatches(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MatchResponse{
		JobID:                   resp.AnchorID(),
		TotalCandidatesSearched: resp.TotalSearched(),
		Matches:                 matchesToDTO(resp.Matches()),
		SearchTimeMS:            resp.SearchTimeMS(),
	})
}

// RecommendJobs handles GET /v1/candidates/{id}/jobs.
func (s *Server) RecommendJobs(w http.ResponseWriter, r *http.Request) {
	q, ok := s.matchQuery(w, r)
	if !ok {
		return
	}
	resp, err := s.matching.RecommendJobs(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecommendationResponse{
		CandidateID:       resp.AnchorID(),
		TotalJobsSearched: resp.TotalSearched(),
		Matches:           matchesToDTO(resp.Matches()),
		SearchTimeMS:      resp.SearchTimeMS(),
	})
}

func (s *Server) matchQuery(w http.ResponseWriter, r *http.Request) (match.Query, bool) {
	id, err := bindPathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return match.Query{}, false
	}
	params, err := bindMatchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return match.Query{}, false
	}
	q, err := params.query(id, s.defaults)
	if err != nil {
		s.handleDomainError(w, r, err)
		return match.Query{}, false
	}
	return q, true
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// Degraded still serves matches over stored vectors.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: report.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func setEncodingHeaders(w http.ResponseWriter, usage *domain.EncodingUsage) {
	if usage.Used() {
		w.Header().Set("X-Encoder-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}
