// Package storage defines the relational persistence capabilities for auth
// records. The database is authoritative; cache projections are disposable.
package storage

import (
	"context"
	"time"

	"github.com/blindlog/blindlog/internal/auth/user"
	"github.com/blindlog/blindlog/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// UserStore persists auth user records.
type UserStore interface {
	PutUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	// GetUsers returns the users whose ids are present, in one query.
	// Missing ids are skipped, not an error.
	GetUsers(ctx context.Context, userIDs []string) ([]user.User, error)
}

// PasskeyCredential stores a WebAuthn credential bound to a user.
type PasskeyCredential struct {
	CredentialID string
	UserID       string
	PublicKey    []byte
	SignCount    uint32
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastUsedAt   *time.Time
}

// PasskeyStore persists WebAuthn credentials.
type PasskeyStore interface {
	PutPasskeyCredential(ctx context.Context, credential PasskeyCredential) error
	GetPasskeyCredential(ctx context.Context, credentialID string) (PasskeyCredential, error)
	ListPasskeyCredentials(ctx context.Context, userID string) ([]PasskeyCredential, error)
	HasPasskeyCredential(ctx context.Context, credentialID string) (bool, error)
	// AdvanceSignCount raises the stored counter to signCount if it is
	// higher, via a conditional MAX update. The counter never regresses,
	// even under concurrent authentications.
	AdvanceSignCount(ctx context.Context, credentialID string, signCount uint32, usedAt time.Time) error
}

// UserEmail stores a confirmed email address tied to a user.
type UserEmail struct {
	ID        string
	UserID    string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmailStore persists confirmed user email data.
type EmailStore interface {
	PutUserEmail(ctx context.Context, email UserEmail) error
	GetUserEmailByEmail(ctx context.Context, email string) (UserEmail, error)
	GetUserEmailByUser(ctx context.Context, userID string) (UserEmail, error)
}
