package matching

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// UpsertCandidate encodes a candidate profile and stores it.
func (s *Service) UpsertCandidate(
	ctx context.Context, id, profileText string, skills []string, experienceYears *int,
) error {
	rec, err := profile.NewCandidate(id, profileText, skills, experienceYears)
	if err != nil {
		return err
	}
	return s.Upsert(ctx, rec)
}

// UpsertJob encodes a job description and stores it with its requirements.
func (s *Service) UpsertJob(
	ctx context.Context, id, description string, requiredSkills []string, experienceRequired *int,
) error {
	rec, err := profile.NewJob(id, description, requiredSkills, experienceRequired)
	if err != nil {
		return err
	}
	return s.Upsert(ctx, rec)
}

// Upsert encodes a validated record and replaces whatever was stored under its id.
// No lock is held while the encoder runs.
func (s *Service) Upsert(ctx context.Context, rec profile.Record) (err error) {
	defer func() {
		metrics.UpsertsTotal.WithLabelValues(string(rec.Class()), metrics.Status(err)).Inc()
	}()

	res, err := s.encoders.For(rec.Class()).Encode(ctx, rec.Text())
	if err != nil {
		return encodingError(rec.Class(), rec.ID(), err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	return s.store(ctx, rec, res.Vector)
}

func (s *Service) store(ctx context.Context, rec profile.Record, vector []float32) error {
	e, err := rec.Embed(vector)
	if err != nil {
		return fmt.Errorf("build %s %q: %w", rec.Class(), rec.ID(), err)
	}
	if err := s.index.Upsert(ctx, rec.Class(), e); err != nil {
		return fmt.Errorf("upsert %s %q: %w", rec.Class(), rec.ID(), err)
	}
	return nil
}

// DeleteCandidate removes a candidate. Deleting an absent id succeeds.
func (s *Service) DeleteCandidate(ctx context.Context, id string) error {
	return s.delete(ctx, entity.Candidate, id)
}

// DeleteJob removes a job. Deleting an absent id succeeds.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	return s.delete(ctx, entity.Job, id)
}

func (s *Service) delete(ctx context.Context, class entity.Class, id string) error {
	if err := entity.ValidateID(id); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, class, id); err != nil {
		return fmt.Errorf("delete %s %q: %w", class, id, err)
	}
	return nil
}
