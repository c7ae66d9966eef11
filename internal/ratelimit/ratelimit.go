// Package ratelimit guards mutating endpoints with a per-identity request
// limit. Requests over the limit are rejected outright, never queued.
package ratelimit

import (
	"context"
	"time"
)

// Result reports a limiter decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}
