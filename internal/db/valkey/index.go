package valkey

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecmatch/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Key: def.Name, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name. Documents are kept.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Key: name, Err: err}
	}
	return nil
}

// IndexVectorDim reads the dimensionality of a vector field from FT.INFO.
// exists is false for an unknown index; dim is 0 when the reply does not
// describe the field.
func (s *Store) IndexVectorDim(ctx context.Context, name, field string) (dim int, exists bool, err error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	reply, err := s.do(ctx, cmd).ToAny()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, false, nil
		}
		return 0, false, &db.Error{Op: db.OpIndexInfo, Key: name, Err: err}
	}
	dim, _ = findVectorDim(reply, field)
	return dim, true, nil
}

// findVectorDim walks an FT.INFO reply for the attribute named field.
// Redis reports the size flat as "dim"; valkey-search nests it as
// "dimensions" under "index".
func findVectorDim(node any, field string) (int, bool) {
	pairs := asPairs(node)
	if pairs != nil && (pairs["identifier"] == field || pairs["attribute"] == field) {
		return lookupInt(node, "dim", "dimensions")
	}
	for _, child := range children(node) {
		if dim, ok := findVectorDim(child, field); ok {
			return dim, true
		}
	}
	return 0, false
}

func lookupInt(node any, keys ...string) (int, bool) {
	if pairs := asPairs(node); pairs != nil {
		for _, k := range keys {
			if v, ok := pairs[k]; ok {
				if n, ok := toInt(v); ok {
					return n, true
				}
			}
		}
	}
	for _, child := range children(node) {
		if n, ok := lookupInt(child, keys...); ok {
			return n, true
		}
	}
	return 0, false
}

// asPairs views a RESP3 map or a flat RESP2 key/value array as a map.
func asPairs(node any) map[string]any {
	switch v := node.(type) {
	case map[string]any:
		return v
	case []any:
		if len(v) == 0 || len(v)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(v)/2)
		for i := 0; i < len(v); i += 2 {
			k, ok := v[i].(string)
			if !ok {
				return nil
			}
			m[strings.ToLower(k)] = v[i+1]
		}
		return m
	}
	return nil
}

func children(node any) []any {
	switch v := node.(type) {
	case map[string]any:
		out := make([]any, 0, len(v))
		for _, c := range v {
			out = append(out, c)
		}
		return out
	case []any:
		return v
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

// Redis says "Unknown index name", valkey-search says "Index with name ... not found".
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "not found")
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageHash
	}
	args = append(args, "ON", string(storage))

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}

	case db.IndexFieldVector:
		vectorArgs, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)

	default:
		return nil, errors.New("unknown field type")
	}

	return args, nil
}

func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	algo := f.VectorAlgo
	if algo == "" {
		algo = db.VectorFlat
	}

	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}

	if algo == db.VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
	}

	result := make([]string, 0, 3+len(attrs))
	result = append(result, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	result = append(result, attrs...)

	return result, nil
}
