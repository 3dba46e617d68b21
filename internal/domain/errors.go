package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument signals a request that failed validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDimensionMismatch signals a vector whose length disagrees with the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingMissing signals an empty, null or zero-magnitude vector.
	ErrEmbeddingMissing = errors.New("embedding missing")
	// ErrJobNotIndexed signals a match query against a job with no stored embedding.
	ErrJobNotIndexed = errors.New("job not indexed")
	// ErrCandidateNotIndexed signals a recommendation query against an unembedded candidate.
	ErrCandidateNotIndexed = errors.New("candidate not indexed")
	// ErrIndexCreation signals an index provisioning failure.
	ErrIndexCreation = errors.New("index creation failed")
	// ErrIndexNotFound signals an operation against a class whose index was never ensured.
	ErrIndexNotFound = errors.New("index not found")

	// ErrEncoding signals an encoder failure.
	ErrEncoding = errors.New("encoding failed")
	// ErrEncoderUnavailable signals an open circuit in front of the encoder.
	ErrEncoderUnavailable = errors.New("encoder unavailable")
	// ErrRateLimited signals a rate limit hit at the encoder provider.
	ErrRateLimited = errors.New("rate limited")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the expected and actual lengths.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrDimensionMismatch.Error(), e.Got, e.Expected)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(expected, got int) error {
	return &DimensionMismatchError{Expected: expected, Got: got}
}

// CheckDimensions returns nil when vec is non-empty and has exactly dims components.
func CheckDimensions(vec []float32, dims int) error {
	if len(vec) == 0 {
		return ErrEmbeddingMissing
	}
	if len(vec) != dims {
		return NewDimensionMismatch(dims, len(vec))
	}
	return nil
}
