// Package cache defines the key-value cache capability backing challenges,
// OTP records, rate-limit counters, and the user projection.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss indicates a requested key is absent or expired.
var ErrMiss = errors.New("cache: key not found")

// Item is a key/value pair for batched writes.
type Item struct {
	Key   string
	Value []byte
}

// Store is the key-value cache capability.
//
// Implementations must provide per-key atomicity for Incr; every cross-request
// invariant in this service leans on the store, not on in-process locks.
type Store interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetEx returns the value for key and extends its TTL, or ErrMiss.
	GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetBatch stores all items with the given TTL in one round trip.
	SetBatch(ctx context.Context, items []Item, ttl time.Duration) error
	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
	// Incr atomically increments the integer at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
