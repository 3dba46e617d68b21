package domain

import (
	"context"
	"sync/atomic"
)

type encodingUsageKey struct{}

// EncodingUsage collects encoder token usage for a single request.
// The handler puts a pointer into the context before calling the service;
// the service records after encoding; the handler reads it for the request log line.
type EncodingUsage struct {
	totalTokens atomic.Int64
	calls       atomic.Int64
}

// NewContextWithUsage returns a context with an encoding usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EncodingUsage) {
	u := &EncodingUsage{}
	return context.WithValue(ctx, encodingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EncodingUsage {
	u, _ := ctx.Value(encodingUsageKey{}).(*EncodingUsage)
	return u
}

// AddTokens records consumed tokens. Safe on a nil receiver.
func (u *EncodingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.totalTokens.Add(int64(n))
	u.calls.Add(1)
}

// TotalTokens returns the number of tokens recorded so far.
func (u *EncodingUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	return int(u.totalTokens.Load())
}

// Used reports whether the encoder was called, even on a cache hit with 0 tokens.
func (u *EncodingUsage) Used() bool {
	return u != nil && u.calls.Load() > 0
}
