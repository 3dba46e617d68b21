package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// RouterOptions configures the HTTP router.
type RouterOptions struct {
	APIKeys []string
}

// NewRouter mounts the server's handlers with the middleware stack.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(s.logger))
	r.Use(JSONRecoverer(s.logger))
	r.Use(BearerAuthMiddleware(opts.APIKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/candidates", func(r chi.Router) {
			r.Post("/batch", s.BatchUpsertCandidates)
			r.Post("/batch/delete", s.BatchDeleteCandidates)
			r.Put("/{id}", s.UpsertCandidate)
			r.Delete("/{id}", s.DeleteCandidate)
			r.Get("/{id}/jobs", s.RecommendJobs)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/batch", s.BatchUpsertJobs)
			r.Post("/batch/delete", s.BatchDeleteJobs)
			r.Put("/{id}", s.UpsertJob)
			r.Delete("/{id}", s.DeleteJob)
			r.Get("/{id}/matches", s.FindMatches)
		})
	})
	return r
}
