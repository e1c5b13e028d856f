// Package challenge creates, stores, and atomically consumes the single-use
// challenges backing passkey registration and authentication.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blindlog/blindlog/internal/auth/cache"
	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
)

// Size is the challenge length in bytes; three 12-byte AEAD nonces worth of
// entropy, kept for wire compatibility with existing deployments.
const Size = 36

// TTL bounds how long an issued challenge may be echoed back.
const TTL = 10 * time.Minute

// Purpose describes what ceremony a challenge was issued for.
type Purpose string

const (
	PurposeRegistration   Purpose = "registration"
	PurposeAuthentication Purpose = "authentication"
)

var (
	// ErrInvalid indicates a missing, expired, already consumed, or
	// mismatched challenge.
	ErrInvalid = apperrors.New(apperrors.CodeChallengeInvalid, "challenge is invalid or already consumed")
	// ErrPurpose indicates an owner/purpose combination that violates the
	// issue invariant.
	ErrPurpose = apperrors.New(apperrors.CodeChallengePurpose, "challenge owner does not match purpose")
)

// record is the persisted challenge shape.
type record struct {
	Value     []byte    `json:"challenge"`
	OwnerID   string    `json:"user_id,omitempty"`
	Purpose   Purpose   `json:"purpose"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager issues and consumes single-use challenges.
//
// Consumption is get-then-delete against the cache; the narrow race window is
// acceptable because challenges carry single-use intent, not secrets whose
// concurrent reuse would be exploitable.
type Manager struct {
	store cache.Store
	clock func() time.Time
}

// NewManager returns a Manager over the given cache.
func NewManager(store cache.Store) *Manager {
	return &Manager{store: store, clock: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (m *Manager) SetClock(clock func() time.Time) {
	if clock != nil {
		m.clock = clock
	}
}

// Key returns the cache key for a challenge value.
func Key(value []byte) string {
	return "challenge:" + base64.StdEncoding.EncodeToString(value)
}

// Issue generates a random challenge and persists it with a 10 minute TTL.
//
// An empty ownerID requires PurposeAuthentication; a set ownerID requires
// PurposeRegistration.
func (m *Manager) Issue(ctx context.Context, purpose Purpose, ownerID string) ([]byte, error) {
	if ownerID == "" && purpose != PurposeAuthentication {
		return nil, ErrPurpose
	}
	if ownerID != "" && purpose != PurposeRegistration {
		return nil, ErrPurpose
	}

	value := make([]byte, Size)
	if _, err := rand.Read(value); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}

	payload, err := json.Marshal(record{
		Value:     value,
		OwnerID:   ownerID,
		Purpose:   purpose,
		CreatedAt: m.clock().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode challenge: %w", err)
	}

	if err := m.store.Set(ctx, Key(value), payload, TTL); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	return value, nil
}

// Consume verifies and deletes a challenge.
//
// A given value consumes successfully at most once; expiry is enforced by
// the cache TTL. Owner and purpose must match what the challenge was issued
// with, with an empty expectedOwnerID matching only ownerless challenges.
func (m *Manager) Consume(ctx context.Context, value []byte, expectedOwnerID string, expectedPurpose Purpose) error {
	if len(value) == 0 {
		return ErrInvalid
	}
	key := Key(value)

	payload, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrInvalid
		}
		return fmt.Errorf("load challenge: %w", err)
	}

	var stored record
	if err := json.Unmarshal(payload, &stored); err != nil {
		return fmt.Errorf("decode challenge: %w", err)
	}

	if stored.OwnerID != expectedOwnerID || stored.Purpose != expectedPurpose {
		return ErrInvalid
	}

	if err := m.store.Del(ctx, key); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}
