package health

import (
	"context"
	"time"

	"github.com/kailas-cloud/vecmatch/internal/version"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the index is unreachable; nothing can be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Version string
}

// Service coordinates health checks.
type Service struct {
	index   IndexPinger
	encoder EncoderChecker
	timeout time.Duration
}

// New creates a Service. encoder can be nil (vector-only deployments).
func New(index IndexPinger, encoder EncoderChecker) *Service {
	return &Service{index: index, encoder: encoder, timeout: 5 * time.Second}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	checks := make(map[string]CheckResult)

	checks["index"] = result(s.index.Ping(ctx))
	if s.encoder != nil {
		checks["encoder"] = result(s.encoder.HealthCheck(ctx))
	}

	status := Healthy
	switch {
	case checks["index"] == CheckError:
		status = Unhealthy
	case checks["encoder"] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks, Version: version.Version}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
