// Package rate throttles failed login attempts with fixed-window Redis
// counters keyed by identifier and, optionally, client IP.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimited is returned when an identifier or IP is over budget.
	ErrLimited = errors.New("rate: limited")
	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("rate: backend unavailable")
)

// Config tunes the login throttle.
type Config struct {
	MaxAttempts int
	Cooldown    time.Duration
	PerIP       bool
}

// Limiter counts failed logins in Redis. A zero-value limiter pointer is
// valid and never throttles.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter on the given Redis client.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: client, config: cfg}
}

func identifierKey(identifier string) string { return "agl:u:" + identifier }
func ipKey(ip string) string                 { return "agl:ip:" + ip }

// Check reports whether the identifier (and IP, when per-IP throttling
// is on) is still within the attempt budget.
func (l *Limiter) Check(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.over(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if l.config.PerIP && ip != "" {
		return l.over(ctx, ipKey(ip))
	}
	return nil
}

// RecordFailure counts one failed attempt against the identifier and IP.
func (l *Limiter) RecordFailure(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.bump(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if l.config.PerIP && ip != "" {
		return l.bump(ctx, ipKey(ip))
	}
	return nil
}

// Reset clears the counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	keys := []string{identifierKey(identifier)}
	if l.config.PerIP && ip != "" {
		keys = append(keys, ipKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *Limiter) over(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrLimited
	}
	return nil
}

func (l *Limiter) bump(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// Fixed window: the TTL starts with the first failure.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}
