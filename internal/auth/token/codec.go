package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtClaims is the internal claims type used for JWT encoding.
type jwtClaims struct {
	jwt.RegisteredClaims
	TokenType Type `json:"tokenType"`
}

// JWTCodec signs and verifies payloads as EdDSA JWTs.
type JWTCodec struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// NewJWTCodec builds a codec from a base64-encoded ed25519 seed.
func NewJWTCodec(seedBase64 string) (*JWTCodec, error) {
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(seedBase64))
	if err != nil {
		return nil, fmt.Errorf("decode signing seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing seed must be %d bytes", ed25519.SeedSize)
	}
	private := ed25519.NewKeyFromSeed(seed)
	return &JWTCodec{
		private: private,
		public:  private.Public().(ed25519.PublicKey),
	}, nil
}

// Sign encodes and signs a payload.
func (c *JWTCodec) Sign(payload Payload) (string, error) {
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Subject,
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
		TokenType: payload.TokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(c.private)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and returns the decoded payload. Expiry is
// deliberately not validated here; callers apply their own clock.
func (c *JWTCodec) Verify(tokenString string) (Payload, error) {
	var parsed jwtClaims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (any, error) {
		return c.public, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Payload{}, fmt.Errorf("parse jwt: %w", err)
	}

	var expiresAt time.Time
	if parsed.ExpiresAt != nil {
		expiresAt = parsed.ExpiresAt.Time
	}
	return Payload{
		Subject:   parsed.Subject,
		ExpiresAt: expiresAt,
		TokenType: parsed.TokenType,
	}, nil
}
