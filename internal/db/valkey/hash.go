package valkey

import (
	"context"
	"maps"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecmatch/internal/db"
)

func (s *Store) hsetCmd(key string, fields map[string]string) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}

// HReplace drops the hash at key and writes fields in one MULTI/EXEC transaction.
// Fields missing from the new value do not survive the replace.
func (s *Store) HReplace(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return s.Del(ctx, key)
	}

	results := s.client.DoMulti(ctx,
		s.b().Multi().Build(),
		s.b().Del().Key(key).Build(),
		s.hsetCmd(key, fields),
		s.b().Exec().Build(),
	)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpReplace, Key: key, Err: err}
		}
	}
	// EXEC replies with one entry per queued command.
	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		return &db.Error{Op: db.OpReplace, Key: key, Err: err}
	}
	for _, r := range replies {
		if err := r.Error(); err != nil {
			return &db.Error{Op: db.OpReplace, Key: key, Err: err}
		}
	}
	return nil
}

// HSetNX writes fields into the hash at key in one MULTI/EXEC block, each
// with HSETNX. claimed reports whether every field was absent before, so of
// two concurrent callers exactly one claims the record.
func (s *Store) HSetNX(ctx context.Context, key string, fields map[string]string) (claimed bool, err error) {
	if len(fields) == 0 {
		return false, nil
	}
	names := slices.Sorted(maps.Keys(fields))

	cmds := make(rueidis.Commands, 0, len(names)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, f := range names {
		cmds = append(cmds, s.b().Hsetnx().Key(key).Field(f).Value(fields[f]).Build())
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return false, &db.Error{Op: db.OpClaim, Key: key, Err: err}
		}
	}
	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		return false, &db.Error{Op: db.OpClaim, Key: key, Err: err}
	}
	claimed = true
	for _, r := range replies {
		n, err := r.AsInt64()
		if err != nil {
			return false, &db.Error{Op: db.OpClaim, Key: key, Err: err}
		}
		claimed = claimed && n == 1
	}
	return claimed, nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Key: key, Err: err}
	}
	return m, nil
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(key).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Key: key, Err: err}
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Key: key, Err: err}
	}
	return count > 0, nil
}
