// Package batch ingests candidates and jobs in bulk with per-item results.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	"github.com/kailas-cloud/vecmatch/internal/domain/entity"
	"github.com/kailas-cloud/vecmatch/internal/domain/profile"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

// MaxBatchSize is the default maximum number of items per batch request.
const MaxBatchSize = 100

const writeConcurrency = 8

// Service handles bulk ingestion. Texts are encoded in one provider call when
// the encoder supports it; index writes run concurrently.
type Service struct {
	index        EntityWriter
	encoders     profile.Encoders
	maxBatchSize int
}

// New creates a batch service.
func New(index EntityWriter, encoders profile.Encoders) *Service {
	return &Service{index: index, encoders: encoders, maxBatchSize: MaxBatchSize}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// MaxBatchSize returns the largest accepted batch.
func (s *Service) MaxBatchSize() int { return s.maxBatchSize }

// Upsert encodes and stores records of one class. The result slice matches records by position.
func (s *Service) Upsert(ctx context.Context, class entity.Class, records []profile.Record) []dombatch.Result {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID()
	}
	if len(records) > s.maxBatchSize {
		return dombatch.FailAll(ids, fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidArgument))
	}

	results := make([]dombatch.Result, len(records))
	valid := make([]int, 0, len(records))
	for i, r := range records {
		if r.Class() != class {
			results[i] = dombatch.NewError(r.ID(), fmt.Errorf("record is a %s, batch is %s: %w", r.Class(), class, domain.ErrInvalidArgument))
			continue
		}
		valid = append(valid, i)
	}
	if len(valid) == 0 {
		return results
	}

	vectors, err := s.encode(ctx, class, records, valid)
	if err != nil {
		for _, i := range valid {
			results[i] = dombatch.NewError(records[i].ID(), err)
		}
		return results
	}

	// Occurrences of one id are written in request order by a single worker,
	// so the last one wins as with sequential upserts.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(writeConcurrency)
	for _, positions := range groupByID(records, valid) {
		g.Go(func() error {
			for _, n := range positions {
				i := valid[n]
				results[i] = s.store(gctx, records[i], vectors[n])
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// groupByID returns, per distinct id in first-seen order, the offsets into
// valid of its occurrences.
func groupByID(records []profile.Record, valid []int) [][]int {
	slot := make(map[string]int, len(valid))
	var groups [][]int
	for n, i := range valid {
		id := records[i].ID()
		g, ok := slot[id]
		if !ok {
			g = len(groups)
			slot[id] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], n)
	}
	return groups
}

// encode returns one vector per valid record, in order.
func (s *Service) encode(ctx context.Context, class entity.Class, records []profile.Record, valid []int) ([][]float32, error) {
	texts := make([]string, len(valid))
	for n, i := range valid {
		texts[n] = records[i].Text()
	}

	res, err := domain.BatchEncode(ctx, s.encoders.For(class), texts)
	if err != nil {
		if errors.Is(err, domain.ErrEncoding) {
			return nil, fmt.Errorf("batch encode: %w", err)
		}
		return nil, fmt.Errorf("batch encode: %w: %w", domain.ErrEncoding, err)
	}
	if len(res.Vectors) != len(texts) {
		return nil, fmt.Errorf("batch encode returned %d vectors for %d texts: %w",
			len(res.Vectors), len(texts), domain.ErrEncoding)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.Vectors, nil
}

func (s *Service) store(ctx context.Context, rec profile.Record, vec []float32) dombatch.Result {
	err := s.write(ctx, rec, vec)
	metrics.UpsertsTotal.WithLabelValues(string(rec.Class()), metrics.Status(err)).Inc()
	if err != nil {
		return dombatch.NewError(rec.ID(), err)
	}
	return dombatch.NewOK(rec.ID())
}

func (s *Service) write(ctx context.Context, rec profile.Record, vec []float32) error {
	e, err := rec.Embed(vec)
	if err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, rec.Class(), e); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Delete removes entities of one class by id.
func (s *Service) Delete(ctx context.Context, class entity.Class, ids []string) []dombatch.Result {
	if len(ids) > s.maxBatchSize {
		return dombatch.FailAll(ids, fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidArgument))
	}

	results := make([]dombatch.Result, len(ids))
	for i, id := range ids {
		if err := entity.ValidateID(id); err != nil {
			results[i] = dombatch.NewError(id, err)
			continue
		}
		if err := s.index.Delete(ctx, class, id); err != nil {
			results[i] = dombatch.NewError(id, fmt.Errorf("delete: %w", err))
			continue
		}
		results[i] = dombatch.NewOK(id)
	}
	return results
}
