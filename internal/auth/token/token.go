// Package token mints and validates the bearer/refresh token pairs issued
// after a successful sign-in. Tokens are stateless: signature plus embedded
// expiry, no persistence and no revocation.
package token

import (
	"fmt"
	"time"

	"github.com/blindlog/blindlog/internal/auth/user"
	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
)

// Type tags a payload as an access token or a refresh token.
type Type string

const (
	TypeToken        Type = "token"
	TypeRefreshToken Type = "refreshToken"
)

var (
	// ErrInvalid indicates a token whose signature or claims cannot be
	// verified.
	ErrInvalid = apperrors.New(apperrors.CodeTokenInvalid, "token is invalid")
	// ErrExpired indicates a token past its embedded expiry.
	ErrExpired = apperrors.New(apperrors.CodeTokenExpired, "token is expired")
	// ErrWrongType indicates a payload whose type does not match the
	// operation, such as refreshing with an access token.
	ErrWrongType = apperrors.New(apperrors.CodeTokenWrongType, "token type mismatch")
)

// Payload is the claim set carried by a signed token. It is reconstructed
// from the signature on each verification, never persisted.
type Payload struct {
	Subject   string
	ExpiresAt time.Time
	TokenType Type
}

// Codec signs and verifies token payloads.
//
// Verify checks the signature and parses claims only; expiry and type are
// the caller's concern so access and refresh paths can differ.
type Codec interface {
	Sign(payload Payload) (string, error)
	Verify(token string) (Payload, error)
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	UserID                string    `json:"userID"`
	Token                 string    `json:"token"`
	TokenExpiresAt        time.Time `json:"tokenExpiredDate"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiredDate"`
}

// Config holds token lifetimes.
type Config struct {
	TokenTTL        time.Duration `env:"BLINDLOG_TOKEN_TTL"         envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"BLINDLOG_REFRESH_TOKEN_TTL" envDefault:"8760h"`
}

// Issuer mints and refreshes token pairs.
type Issuer struct {
	codec  Codec
	config Config
	clock  func() time.Time
}

// NewIssuer returns an Issuer over the given codec.
func NewIssuer(codec Codec, config Config) *Issuer {
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}
	if config.RefreshTokenTTL <= 0 {
		config.RefreshTokenTTL = 365 * 24 * time.Hour
	}
	return &Issuer{codec: codec, config: config, clock: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (i *Issuer) SetClock(clock func() time.Time) {
	if clock != nil {
		i.clock = clock
	}
}

// Issue mints a fresh access/refresh pair for a user. No storage round trip
// is involved.
func (i *Issuer) Issue(userID string) (Pair, error) {
	now := i.clock().UTC()
	tokenExpiry := now.Add(i.config.TokenTTL)
	refreshExpiry := now.Add(i.config.RefreshTokenTTL)

	accessToken, err := i.codec.Sign(Payload{
		Subject:   userID,
		ExpiresAt: tokenExpiry,
		TokenType: TypeToken,
	})
	if err != nil {
		return Pair{}, fmt.Errorf("sign token: %w", err)
	}

	refreshToken, err := i.codec.Sign(Payload{
		Subject:   userID,
		ExpiresAt: refreshExpiry,
		TokenType: TypeRefreshToken,
	})
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return Pair{
		UserID:                userID,
		Token:                 accessToken,
		TokenExpiresAt:        tokenExpiry,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: refreshExpiry,
	}, nil
}

// Refresh validates a refresh token and mints a new pair for its subject.
// The used refresh token stays valid; revocation is out of scope.
func (i *Issuer) Refresh(refreshToken string) (Pair, error) {
	userID, err := i.VerifySubject(refreshToken, TypeRefreshToken)
	if err != nil {
		return Pair{}, err
	}
	return i.Issue(userID)
}

// VerifySubject verifies a token of the expected type and returns its
// subject user id. The bearer middleware uses this with TypeToken.
func (i *Issuer) VerifySubject(tokenString string, expected Type) (string, error) {
	payload, err := i.codec.Verify(tokenString)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeTokenInvalid, "verify token", err)
	}
	if payload.TokenType != expected {
		return "", ErrWrongType
	}
	if !payload.ExpiresAt.After(i.clock()) {
		return "", ErrExpired
	}
	userID, err := user.ParseID(payload.Subject)
	if err != nil {
		return "", ErrInvalid
	}
	return userID, nil
}
