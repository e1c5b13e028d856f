package otp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blindlog/blindlog/internal/auth/cache"
	"github.com/blindlog/blindlog/internal/auth/email"
)

// Channel delivers one-time codes over email and verifies them against
// hashed cache records. Every record is deleted on successful verification.
type Channel struct {
	config Config
	store  cache.Store
	mailer email.Mailer
	clock  func() time.Time
}

// NewChannel returns a Channel over the given cache and mailer.
func NewChannel(config Config, store cache.Store, mailer email.Mailer) *Channel {
	if config.Length <= 0 {
		config.Length = 6
	}
	if config.TTL <= 0 {
		config.TTL = time.Minute
	}
	return &Channel{config: config, store: store, mailer: mailer, clock: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (c *Channel) SetClock(clock func() time.Time) {
	if clock != nil {
		c.clock = clock
	}
}

func registrationKey(userID string) string {
	return "OTPEmailRegistration:" + userID
}

func authenticationKey(challengeValue []byte) string {
	return "OTPEmailAuthentication:" + base64.StdEncoding.EncodeToString(challengeValue)
}

// registrationRecord binds a code hash to the user and email it was
// issued for.
type registrationRecord struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	HashedCode string    `json:"hashed_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// authenticationRecord binds a code hash to the email it was issued for.
type authenticationRecord struct {
	Email      string    `json:"email"`
	HashedCode string    `json:"hashed_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// StartRegistration issues a code for confirming ownership of address and
// mails it. Any prior code for the user is replaced.
func (c *Channel) StartRegistration(ctx context.Context, userID, address string) error {
	code, err := Generate(c.config.Length)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(registrationRecord{
		UserID:     userID,
		Email:      address,
		HashedCode: c.config.hash(code),
		CreatedAt:  c.clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode otp record: %w", err)
	}
	if err := c.store.Set(ctx, registrationKey(userID), payload, c.config.TTL); err != nil {
		return fmt.Errorf("store otp record: %w", err)
	}

	body := fmt.Sprintf("Your email confirmation code is %s. It expires in %d seconds.", code, int(c.config.TTL.Seconds()))
	if err := c.mailer.Send(ctx, address, "Confirm your email address", body); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

// VerifyRegistration consumes the pending registration code for userID.
// The code, the user, and the email address must all match the record.
func (c *Channel) VerifyRegistration(ctx context.Context, userID, address, code string) error {
	key := registrationKey(userID)

	payload, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrInvalid
		}
		return fmt.Errorf("load otp record: %w", err)
	}

	var stored registrationRecord
	if err := json.Unmarshal(payload, &stored); err != nil {
		return fmt.Errorf("decode otp record: %w", err)
	}

	if stored.UserID != userID || stored.Email != address || !c.config.matches(stored.HashedCode, code) {
		return ErrInvalid
	}

	if err := c.store.Del(ctx, key); err != nil {
		return fmt.Errorf("delete otp record: %w", err)
	}
	return nil
}

// StartAuthentication issues a sign-in code for address and mails it. The
// returned opaque value identifies the attempt and must be echoed back on
// confirmation; it carries no information about whether address is known.
func (c *Channel) StartAuthentication(ctx context.Context, address string) ([]byte, error) {
	challengeValue := make([]byte, 36)
	if _, err := rand.Read(challengeValue); err != nil {
		return nil, fmt.Errorf("generate otp challenge: %w", err)
	}

	code, err := Generate(c.config.Length)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(authenticationRecord{
		Email:      address,
		HashedCode: c.config.hash(code),
		CreatedAt:  c.clock().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode otp record: %w", err)
	}
	if err := c.store.Set(ctx, authenticationKey(challengeValue), payload, c.config.TTL); err != nil {
		return nil, fmt.Errorf("store otp record: %w", err)
	}

	body := fmt.Sprintf("Your sign-in code is %s. It expires in %d seconds.", code, int(c.config.TTL.Seconds()))
	if err := c.mailer.Send(ctx, address, "Your sign-in code", body); err != nil {
		return nil, fmt.Errorf("send otp email: %w", err)
	}
	return challengeValue, nil
}

// VerifyAuthentication consumes the sign-in code identified by
// challengeValue and returns the email it was issued for.
func (c *Channel) VerifyAuthentication(ctx context.Context, challengeValue []byte, address, code string) (string, error) {
	if len(challengeValue) == 0 {
		return "", ErrInvalid
	}
	key := authenticationKey(challengeValue)

	payload, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", ErrInvalid
		}
		return "", fmt.Errorf("load otp record: %w", err)
	}

	var stored authenticationRecord
	if err := json.Unmarshal(payload, &stored); err != nil {
		return "", fmt.Errorf("decode otp record: %w", err)
	}

	if stored.Email != address || !c.config.matches(stored.HashedCode, code) {
		return "", ErrInvalid
	}

	if err := c.store.Del(ctx, key); err != nil {
		return "", fmt.Errorf("delete otp record: %w", err)
	}
	return stored.Email, nil
}
