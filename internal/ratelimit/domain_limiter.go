// Package ratelimit spaces out external fetches against third-party sites.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkdeck/placement-engine/internal/logger"
)

// DomainLimiter enforces a courtesy cooldown between consecutive external
// fetches against the same target domain. The marker lives in Redis so
// independent workers processing different users still respect it. A Redis
// error degrades to "not limited": courtesy must never block placement.
type DomainLimiter struct {
	client   *redis.Client
	cooldown time.Duration
	logger   logger.Logger
}

// NewDomainLimiter creates a limiter with the given cooldown
func NewDomainLimiter(client *redis.Client, cooldown time.Duration, log logger.Logger) *DomainLimiter {
	return &DomainLimiter{
		client:   client,
		cooldown: cooldown,
		logger:   log,
	}
}

func (l *DomainLimiter) key(domain string) string {
	return fmt.Sprintf("placement:cooldown:%s", domain)
}

// Wait blocks until the domain's cooldown has elapsed, then claims the next
// window. Returns early if the context is cancelled.
func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	if l.cooldown <= 0 || domain == "" {
		return nil
	}

	key := l.key(domain)

	// SET NX claims the window; a losing claim sleeps one cooldown and
	// proceeds rather than spinning.
	ok, err := l.client.SetNX(ctx, key, time.Now().Unix(), l.cooldown).Result()
	if err != nil {
		l.logger.Warn("domain cooldown check failed, proceeding",
			logger.String("domain", domain),
			logger.Error(err),
		)
		return nil
	}
	if ok {
		return nil
	}

	l.logger.Debug("domain cooldown active, waiting",
		logger.String("domain", domain),
		logger.Duration("cooldown", l.cooldown),
	)

	select {
	case <-time.After(l.cooldown):
	case <-ctx.Done():
		return ctx.Err()
	}

	// Claim after the wait; best effort only.
	l.client.SetNX(ctx, key, time.Now().Unix(), l.cooldown)
	return nil
}
