package db

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes v as a little-endian FLOAT32 blob, the layout of
// HASH vector fields and FT.SEARCH query parameters.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector parses a blob written by EncodeVector.
func DecodeVector(data string) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob: len=%d (not multiple of 4)", len(data))
	}
	b := []byte(data)
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
