package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blindlog/blindlog/internal/auth/cache"
)

func TestIssueGeneratesDistinctValues(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(cache.NewMemory())

	first, err := manager.Issue(ctx, PurposeAuthentication, "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(first) != Size {
		t.Fatalf("Issue() length = %d, want %d", len(first), Size)
	}
	second, err := manager.Issue(ctx, PurposeAuthentication, "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if string(first) == string(second) {
		t.Fatal("Issue() produced identical challenge values")
	}
}

func TestIssueEnforcesOwnerPurposeInvariant(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(cache.NewMemory())

	if _, err := manager.Issue(ctx, PurposeRegistration, ""); !errors.Is(err, ErrPurpose) {
		t.Fatalf("Issue(registration, no owner) error = %v, want ErrPurpose", err)
	}
	if _, err := manager.Issue(ctx, PurposeAuthentication, "user-1"); !errors.Is(err, ErrPurpose) {
		t.Fatalf("Issue(authentication, owner) error = %v, want ErrPurpose", err)
	}
}

func TestConsumeAtMostOnce(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(cache.NewMemory())

	value, err := manager.Issue(ctx, PurposeAuthentication, "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if err := manager.Consume(ctx, value, "", PurposeAuthentication); err != nil {
		t.Fatalf("first Consume() error = %v", err)
	}
	if err := manager.Consume(ctx, value, "", PurposeAuthentication); !errors.Is(err, ErrInvalid) {
		t.Fatalf("second Consume() error = %v, want ErrInvalid", err)
	}
}

func TestConsumeRejectsOwnerMismatch(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(cache.NewMemory())

	value, err := manager.Issue(ctx, PurposeRegistration, "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if err := manager.Consume(ctx, value, "user-2", PurposeRegistration); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Consume(wrong owner) error = %v, want ErrInvalid", err)
	}
	if err := manager.Consume(ctx, value, "", PurposeAuthentication); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Consume(wrong purpose) error = %v, want ErrInvalid", err)
	}

	// A failed match must not consume the challenge.
	if err := manager.Consume(ctx, value, "user-1", PurposeRegistration); err != nil {
		t.Fatalf("Consume(correct owner) error = %v", err)
	}
}

func TestConsumeRejectsExpired(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	manager := NewManager(store)
	manager.SetClock(func() time.Time { return now })

	value, err := manager.Issue(ctx, PurposeAuthentication, "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	now = now.Add(TTL + time.Second)
	if err := manager.Consume(ctx, value, "", PurposeAuthentication); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Consume() after expiry error = %v, want ErrInvalid", err)
	}
}

func TestConsumeRejectsUnknownValue(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(cache.NewMemory())

	if err := manager.Consume(ctx, []byte("never-issued"), "", PurposeAuthentication); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Consume(unknown) error = %v, want ErrInvalid", err)
	}
	if err := manager.Consume(ctx, nil, "", PurposeAuthentication); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Consume(nil) error = %v, want ErrInvalid", err)
	}
}
