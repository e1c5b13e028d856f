// Package ratelimit implements fixed-window request counting over the
// shared cache. Windows are aligned to the epoch, so all replicas agree on
// the window a request falls into without coordination.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/blindlog/blindlog/internal/auth/cache"
	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
)

// ErrLimited indicates the subject exhausted its window allowance.
var ErrLimited = apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded")

// Config holds the window geometry and ceilings. PerEndpointMaxCount is the
// tighter ceiling sensitive endpoints apply to their own count on top of
// the aggregate one.
type Config struct {
	WindowSeconds       int64 `env:"BLINDLOG_RATE_WINDOW_SECONDS" envDefault:"60"`
	IPAddressMaxCount   int64 `env:"BLINDLOG_RATE_IP_MAX"         envDefault:"100"`
	UserTokenMaxCount   int64 `env:"BLINDLOG_RATE_USER_MAX"       envDefault:"100"`
	PerEndpointMaxCount int64 `env:"BLINDLOG_RATE_ENDPOINT_MAX"   envDefault:"30"`
}

// Counts carries the post-increment counters for one recorded request.
type Counts struct {
	Aggregate   int64
	PerEndpoint int64
}

// Limiter records requests and enforces window ceilings.
type Limiter struct {
	store  cache.Store
	config Config
}

// NewLimiter returns a Limiter over the given cache.
func NewLimiter(config Config, store cache.Store) *Limiter {
	if config.WindowSeconds <= 0 {
		config.WindowSeconds = 60
	}
	return &Limiter{store: store, config: config}
}

// Config returns the configured ceilings.
func (l *Limiter) Config() Config {
	return l.config
}

func (l *Limiter) windowID(now time.Time) int64 {
	return now.Unix() / l.config.WindowSeconds
}

func (l *Limiter) aggregateKey(subject string, window int64) string {
	return "AccessCount:" + subject + ":" + strconv.FormatInt(window, 10)
}

func (l *Limiter) endpointKey(subject, endpoint string, window int64) string {
	return "AccessCount:" + subject + ":" + endpoint + ":" + strconv.FormatInt(window, 10)
}

func (l *Limiter) bump(ctx context.Context, key string) (int64, error) {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("increment access count: %w", err)
	}
	// Only the request that created the key sets its expiry; later hits in
	// the window must not extend it.
	if count == 1 {
		window := time.Duration(l.config.WindowSeconds) * time.Second
		if err := l.store.Expire(ctx, key, window); err != nil {
			return 0, fmt.Errorf("expire access count: %w", err)
		}
	}
	return count, nil
}

// Record counts one request for subject against endpoint and returns the
// post-increment counters for the current window.
func (l *Limiter) Record(ctx context.Context, subject, endpoint string, now time.Time) (Counts, error) {
	window := l.windowID(now)

	aggregate, err := l.bump(ctx, l.aggregateKey(subject, window))
	if err != nil {
		return Counts{}, err
	}
	perEndpoint, err := l.bump(ctx, l.endpointKey(subject, endpoint, window))
	if err != nil {
		return Counts{}, err
	}
	return Counts{Aggregate: aggregate, PerEndpoint: perEndpoint}, nil
}

// Allow records the request and enforces the aggregate ceiling for the
// subject. limit is the ceiling matching how the subject was identified:
// UserTokenMaxCount for an authenticated identity, IPAddressMaxCount for a
// client address. The counts are returned even when the request is denied.
func (l *Limiter) Allow(ctx context.Context, subject, endpoint string, limit int64, now time.Time) (Counts, error) {
	counts, err := l.Record(ctx, subject, endpoint, now)
	if err != nil {
		return Counts{}, err
	}
	if counts.Aggregate > limit {
		return counts, ErrLimited
	}
	return counts, nil
}
