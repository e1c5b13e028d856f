// Package user provides auth user identity records.
package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
)

// ErrInvalidID indicates a user id that is not a valid UUID.
var ErrInvalidID = apperrors.New(apperrors.CodeUserInvalidID, "user id must be a valid uuid")

// User represents an authenticated identity record.
//
// Identity is immutable after creation. Email is populated only once the
// address has been confirmed through the OTP flow.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID returns a time-ordered UUIDv7 identifier.
func NewID() (string, error) {
	generated, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return generated.String(), nil
}

// ParseID validates a user id, normalizing it to canonical lowercase form.
func ParseID(s string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}

// Create creates a durable user identity.
//
// The service layer treats this as the canonical point where a stable
// identity used by token, passkey, and directory paths comes into being.
func Create(now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = NewID
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:        userID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
