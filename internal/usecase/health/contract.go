package health

import "context"

// IndexPinger checks vector index backend availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// EncoderChecker checks encoder provider availability.
type EncoderChecker interface {
	HealthCheck(ctx context.Context) error
}
