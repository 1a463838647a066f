// Package metrics tracks placement run counters in Redis for the stats
// endpoint and operational triage.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/models"
)

const (
	keyPrefix     = "placement:metrics"
	metricsTTL    = 30 * 24 * time.Hour
	counterPlaced = "placed"
	counterFailed = "failed"
	counterSkips  = "skipped"
)

// Tracker counts placement outcomes per method in Redis. Counter failures
// are logged and surfaced but never block a placement.
type Tracker struct {
	client redis.UniversalClient
	logger logger.Logger
}

// NewTracker creates a metrics tracker
func NewTracker(client redis.UniversalClient, log logger.Logger) *Tracker {
	return &Tracker{client: client, logger: log}
}

func key(outcome string, method models.PlacementMethod) string {
	if method == "" {
		return fmt.Sprintf("%s:%s", keyPrefix, outcome)
	}
	return fmt.Sprintf("%s:%s:%s", keyPrefix, outcome, method)
}

// increment bumps one counter with a TTL refresh, pipelined for atomicity
func (t *Tracker) increment(ctx context.Context, k string) error {
	pipe := t.client.Pipeline()
	pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, metricsTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("failed to increment counter",
			logger.String("redis_key", k),
			logger.Error(err),
		)
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

// IncrementPlaced counts a successful placement for a method
func (t *Tracker) IncrementPlaced(ctx context.Context, method models.PlacementMethod) error {
	return t.increment(ctx, key(counterPlaced, method))
}

// IncrementFailed counts a failed placement for a method
func (t *Tracker) IncrementFailed(ctx context.Context, method models.PlacementMethod) error {
	return t.increment(ctx, key(counterFailed, method))
}

// IncrementSkipped counts an opportunity skipped without an attempt
// (insufficient credits, instruction ceiling, no viable method)
func (t *Tracker) IncrementSkipped(ctx context.Context) error {
	return t.increment(ctx, key(counterSkips, ""))
}

// Stats returns the current counter values
func (t *Tracker) Stats(ctx context.Context) (map[string]int64, error) {
	keys := []string{
		key(counterPlaced, models.MethodContentAPI),
		key(counterPlaced, models.MethodInjection),
		key(counterFailed, models.MethodContentAPI),
		key(counterFailed, models.MethodInjection),
		key(counterSkips, ""),
	}

	values, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}

	stats := make(map[string]int64, len(keys))
	for i, k := range keys {
		var n int64
		if s, ok := values[i].(string); ok {
			fmt.Sscanf(s, "%d", &n) //nolint:errcheck // missing counter reads as zero
		}
		stats[k[len(keyPrefix)+1:]] = n
	}
	return stats, nil
}
