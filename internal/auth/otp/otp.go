// Package otp issues and verifies short-lived one-time passcodes sent
// over email. Codes are stored hashed; verification consumes the code.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrInvalid is returned when a presented code does not match, has
// expired, or was already used.
var ErrInvalid = apperrors.New(apperrors.CodeOTPInvalid, "one-time code invalid or expired")

// Config carries the code parameters. Secret keys the hash of stored
// codes so a cache dump alone cannot be replayed.
type Config struct {
	Secret string        `env:"BLINDLOG_OTP_SECRET,required"`
	Length int           `env:"BLINDLOG_OTP_LENGTH" envDefault:"6"`
	TTL    time.Duration `env:"BLINDLOG_OTP_TTL"    envDefault:"60s"`
}

// Generate returns a random code of n characters drawn uniformly from
// the alphanumeric alphabet. Bytes at or above the largest multiple of
// the alphabet size are rejected to avoid modulo bias.
func Generate(n int) (string, error) {
	threshold := byte((256 / len(alphabet)) * len(alphabet))
	code := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(code) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		for _, b := range buf {
			if b >= threshold {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == n {
				break
			}
		}
	}
	return string(code), nil
}

func (c Config) hash(code string) string {
	mac := hmac.New(sha256.New, []byte(c.Secret))
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c Config) matches(stored, code string) bool {
	return hmac.Equal([]byte(stored), []byte(c.hash(code)))
}
