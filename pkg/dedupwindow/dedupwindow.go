// Package dedupwindow implements the Redis-backed retry-produce dedup
// window (SPEC_FULL.md §4.5 [ADDED]): an additional, slower,
// crash-surviving check ahead of the guaranteed producer's in-memory
// pending-map dedup, grounded on the teacher's
// internal/deduplication.Service/Repository.
package dedupwindow

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"changeprop/internal/constants"
	"changeprop/pkg/metrics"
)

// OnRedisError selects what Seen does when Redis itself is unreachable.
type OnRedisError int

const (
	// OnErrorDeny treats a Redis failure as "suppress": the caller
	// must not produce, erring on the side of not double-scheduling a
	// retry.
	OnErrorDeny OnRedisError = iota
	// OnErrorAllow treats a Redis failure as "not seen": the caller
	// proceeds to produce, erring on the side of availability.
	OnErrorAllow
)

// Window is the dedup window store contract.
type Window interface {
	// Seen reports whether requestID was already recorded for rule
	// within the configured TTL, and records it if not. A true result
	// means the caller should suppress the retry-produce.
	Seen(ctx context.Context, rule, requestID string) (bool, error)
	// Size returns the current count of live window keys for a rule,
	// used by the admin API's dedup-window inspection endpoint.
	Size(ctx context.Context, rule string) (int, error)
}

// RedisWindow is the reference Window backed by a SETNX-per-key scheme,
// mirroring internal/deduplication.RedisRepository.
type RedisWindow struct {
	client       *redis.Client
	ttl          time.Duration
	onRedisError OnRedisError
}

func New(client *redis.Client, ttl time.Duration, onError OnRedisError) *RedisWindow {
	return &RedisWindow{client: client, ttl: ttl, onRedisError: onError}
}

func (w *RedisWindow) Seen(ctx context.Context, rule, requestID string) (bool, error) {
	start := time.Now()
	key := constants.CacheKeyPrefixDedupWindow + rule + ":" + requestID
	stored, err := w.client.SetNX(ctx, key, time.Now().Unix(), w.ttl).Result()
	duration := time.Since(start)
	metrics.ObserveDatabaseQueryDuration("redis", "setnx", duration)

	if err != nil {
		return w.handleRedisError(rule, err)
	}

	seen := !stored
	if seen {
		metrics.DedupWindowSuppressedTotal.WithLabelValues(rule).Inc()
	}
	return seen, nil
}

func (w *RedisWindow) handleRedisError(rule string, err error) (bool, error) {
	if w.onRedisError == OnErrorAllow {
		metrics.FallbackUsageTotal.WithLabelValues("dedup_window", "allow_on_error", err.Error()).Inc()
		return false, nil
	}
	metrics.FallbackUsageTotal.WithLabelValues("dedup_window", "deny_on_error", err.Error()).Inc()
	return false, fmt.Errorf("dedup window: redis error for rule %s: %w", rule, err)
}

func (w *RedisWindow) Size(ctx context.Context, rule string) (int, error) {
	prefix := constants.CacheKeyPrefixDedupWindow + rule + ":"
	iter := w.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	count := 0
	for iter.Next(ctx) {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("dedup window: redis scan failed: %w", err)
	}
	return count, nil
}
