// Package ratelimit implements fixed-window request admission.
//
// A window is identified by floor(now / window). Each (key, window) pair owns
// one counter; the counter is created on the first hit and discarded once the
// window has elapsed. Stores are interchangeable: MemoryStore keeps counters in
// the process, RedisStore shares them between instances.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by Limiter.Allow when the store failed and the
// limiter is configured to fail closed.
var ErrUnavailable = errors.New("ratelimit: store unavailable")

// Counter is the state of one window after an increment.
type Counter struct {
	Count   int64
	ResetAt time.Time
}

// Store atomically increments the counter of key for the window containing now.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error)
}

// windowBounds returns the window index and the instant the window ends.
func windowBounds(window time.Duration, now time.Time) (int64, time.Time) {
	w := window.Milliseconds()
	if w <= 0 {
		w = 1
	}
	idx := now.UnixMilli() / w
	return idx, time.UnixMilli((idx + 1) * w).UTC()
}
