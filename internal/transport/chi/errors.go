package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	logpkg "github.com/kailas-cloud/vecmatch/internal/logger"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes returned in error responses.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeJobNotIndexed       ErrorCode = "job_not_indexed"
	CodeCandidateNotIndexed ErrorCode = "candidate_not_indexed"
	CodeDimensionMismatch   ErrorCode = "dimension_mismatch"
	CodeEmbeddingMissing    ErrorCode = "embedding_missing"
	CodeIndexNotFound       ErrorCode = "index_not_found"
	CodeRateLimited         ErrorCode = "rate_limited"
	CodeEncodingFailed      ErrorCode = "encoding_failed"
	CodeEncoderUnavailable  ErrorCode = "encoder_unavailable"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// errorMapping is one row of the sentinel → HTTP status table. Order matters:
// the first matching row wins.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

var errorMappings = []errorMapping{
	{domain.ErrJobNotIndexed, http.StatusNotFound, CodeJobNotIndexed},
	{domain.ErrCandidateNotIndexed, http.StatusNotFound, CodeCandidateNotIndexed},
	{domain.ErrDimensionMismatch, http.StatusUnprocessableEntity, CodeDimensionMismatch},
	{domain.ErrEmbeddingMissing, http.StatusBadRequest, CodeEmbeddingMissing},
	{domain.ErrInvalidArgument, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrIndexNotFound, http.StatusConflict, CodeIndexNotFound},
	{domain.ErrEncoderUnavailable, http.StatusServiceUnavailable, CodeEncoderUnavailable},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrEncoding, http.StatusBadGateway, CodeEncodingFailed},
}

func defaultErrorHandlers() []errorHandler {
	handlers := make([]errorHandler, len(errorMappings))
	for i, m := range errorMappings {
		handlers[i] = sentinelHandler(m.sentinel, m.status, m.code)
	}
	return handlers
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns the sentinel error message for the client without exposing internals.
// Validation messages are returned in full: they describe the caller's input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidArgument) {
		return err.Error()
	}
	var dme *domain.DimensionMismatchError
	if errors.As(err, &dme) {
		return dme.Error()
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.sentinel.Error()
		}
	}
	return "internal error"
}

// errorCode maps err to its code, for per-item batch results.
func errorCode(err error) ErrorCode {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.code
		}
	}
	return CodeInternalError
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
