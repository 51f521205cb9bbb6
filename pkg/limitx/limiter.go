// Package limitx is the portal's attempt limiter for credential-guessing
// surfaces (login, 2FA codes, password resets). It counts attempts per
// (key, action) pair in fixed, non-overlapping windows.
//
// Fixed windows admit bursts of up to 2x the budget across a window
// boundary. That is a known and accepted tradeoff; the budgets here are
// small enough that it does not matter in practice.
package limitx

import (
	"context"
	"log/slog"
	"time"
)

// Policy decides what Check answers when the bucket store is unreachable.
type Policy int

const (
	// FailOpen allows the attempt when the store is down. This is the
	// portal's default: a broken Redis must not lock every citizen out.
	FailOpen Policy = iota

	// FailClosed blocks the attempt when the store is down.
	FailClosed
)

// BucketStore is the swappable backing for attempt counters. The memory
// store serves a single instance; the Redis store is shared across
// instances. Increment must be atomic per key: two concurrent attempts
// must never observe the same pre-increment count.
type BucketStore interface {
	// Increment bumps the counter for key, starting a fresh window
	// (count 1) if no live bucket exists. Returns the post-increment count.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// Count returns the current window's count, 0 if no live bucket.
	Count(ctx context.Context, key string) (int64, error)

	// Delete clears the bucket immediately.
	Delete(ctx context.Context, key string) error

	// Sweep drops buckets whose window has elapsed, bounding memory by
	// the number of active keys. Stores with native expiry may no-op.
	Sweep(ctx context.Context) error
}

// Limiter answers "is this attempt blocked?" for a (key, action) pair.
// It never returns an error to callers: store failures are logged and
// resolved by Policy.
type Limiter struct {
	Store  BucketStore
	Policy Policy
	Logger *slog.Logger
}

func New(store BucketStore) *Limiter {
	return &Limiter{Store: store}
}

func (l *Limiter) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Check records one attempt and reports whether it blew the budget:
// points attempts are admitted per window, the (points+1)-th is blocked.
// The blocked attempt still counts, so hammering a blocked key keeps it
// blocked.
func (l *Limiter) Check(ctx context.Context, key, action string, points int, window time.Duration) bool {
	count, err := l.Store.Increment(ctx, bucketKey(key, action), window)
	if err != nil {
		return l.resolve("increment", action, err)
	}
	return count > int64(points)
}

// Remaining reports how many attempts are left in the current window,
// points if no bucket exists. Never negative.
func (l *Limiter) Remaining(ctx context.Context, key, action string, points int) int {
	count, err := l.Store.Count(ctx, bucketKey(key, action))
	if err != nil {
		l.log().Warn("rate limit store unavailable", "op", "count", "action", action, "err", err)
		if l.Policy == FailClosed {
			return 0
		}
		return points
	}

	remaining := points - int(count)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the bucket immediately. Administrative override only;
// nothing in the normal flow calls this.
func (l *Limiter) Reset(ctx context.Context, key, action string) error {
	return l.Store.Delete(ctx, bucketKey(key, action))
}

// Sweep purges elapsed buckets. Wire it to the housekeeping ticker.
func (l *Limiter) Sweep(ctx context.Context) error {
	return l.Store.Sweep(ctx)
}

// resolve maps a store failure to a block decision per Policy.
func (l *Limiter) resolve(op, action string, err error) bool {
	if l.Policy == FailClosed {
		l.log().Error("rate limit store unavailable, blocking attempt", "op", op, "action", action, "err", err)
		return true
	}
	l.log().Warn("rate limit store unavailable, allowing attempt", "op", op, "action", action, "err", err)
	return false
}

func bucketKey(key, action string) string {
	return action + ":" + key
}
