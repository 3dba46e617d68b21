package profile

import (
	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
)

// Encoders selects the encoder used for each entity class.
// Candidates and jobs may carry different instruction prefixes.
type Encoders struct {
	Candidate domain.Encoder
	Job       domain.Encoder
}

// SameEncoder uses e for both classes.
func SameEncoder(e domain.Encoder) Encoders {
	return Encoders{Candidate: e, Job: e}
}

// WithInstructions wraps e with per-class instruction prefixes. Empty prefixes are skipped.
func WithInstructions(e domain.Encoder, candidate, job string) Encoders {
	out := SameEncoder(e)
	if candidate != "" {
		out.Candidate = domain.NewInstructionEncoder(e, candidate)
	}
	if job != "" {
		out.Job = domain.NewInstructionEncoder(e, job)
	}
	return out
}

// For returns the encoder for class.
func (e Encoders) For(class entity.Class) domain.Encoder {
	if class == entity.Job {
		return e.Job
	}
	return e.Candidate
}
