package vecmatch

import "github.com/kailas-cloud/vecmatch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidArgument     = domain.ErrInvalidArgument
	ErrDimensionMismatch   = domain.ErrDimensionMismatch
	ErrEmbeddingMissing    = domain.ErrEmbeddingMissing
	ErrJobNotIndexed       = domain.ErrJobNotIndexed
	ErrCandidateNotIndexed = domain.ErrCandidateNotIndexed
	ErrIndexCreation       = domain.ErrIndexCreation
	ErrIndexNotFound       = domain.ErrIndexNotFound
	ErrEncoding            = domain.ErrEncoding
	ErrEncoderUnavailable  = domain.ErrEncoderUnavailable
	ErrRateLimited         = domain.ErrRateLimited
)
