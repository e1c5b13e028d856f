package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/blindlog/blindlog/internal/auth/challenge"
	"github.com/blindlog/blindlog/internal/auth/storage"
)

// Registry ties the ceremony pieces together: challenges, cryptographic
// verification, and the credential records.
//
// Nothing is written to storage before verification succeeds, and the
// challenge is consumed before verification starts, so a failed ceremony
// burns its challenge.
type Registry struct {
	challenges *challenge.Manager
	verifier   Verifier
	passkeys   storage.PasskeyStore
	clock      func() time.Time
}

// NewRegistry returns a Registry over the given collaborators.
func NewRegistry(challenges *challenge.Manager, verifier Verifier, passkeys storage.PasskeyStore) *Registry {
	return &Registry{
		challenges: challenges,
		verifier:   verifier,
		passkeys:   passkeys,
		clock:      time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (r *Registry) SetClock(clock func() time.Time) {
	if clock != nil {
		r.clock = clock
	}
}

// BeginRegistration issues a registration challenge bound to userID and
// returns it with creation options for the client.
func (r *Registry) BeginRegistration(ctx context.Context, userID string) ([]byte, *protocol.CredentialCreation, error) {
	value, err := r.challenges.Issue(ctx, challenge.PurposeRegistration, userID)
	if err != nil {
		return nil, nil, err
	}
	options, err := r.verifier.RegistrationOptions(userID, value)
	if err != nil {
		return nil, nil, err
	}
	return value, options, nil
}

// BeginAuthentication issues an ownerless authentication challenge and
// returns it with discoverable assertion options.
func (r *Registry) BeginAuthentication(ctx context.Context) ([]byte, *protocol.CredentialAssertion, error) {
	value, err := r.challenges.Issue(ctx, challenge.PurposeAuthentication, "")
	if err != nil {
		return nil, nil, err
	}
	options, err := r.verifier.AuthenticationOptions(value)
	if err != nil {
		return nil, nil, err
	}
	return value, options, nil
}

// FinishRegistration consumes the challenge, verifies the client's
// registration response, and persists the new credential for userID.
func (r *Registry) FinishRegistration(ctx context.Context, challengeValue []byte, response []byte, userID string) error {
	if err := r.challenges.Consume(ctx, challengeValue, userID, challenge.PurposeRegistration); err != nil {
		return err
	}

	unregistered := func(credentialID string) (bool, error) {
		has, err := r.passkeys.HasPasskeyCredential(ctx, credentialID)
		if err != nil {
			return false, err
		}
		return !has, nil
	}
	attestation, err := r.verifier.VerifyRegistration(ctx, userID, challengeValue, response, unregistered)
	if err != nil {
		return err
	}

	now := r.clock().UTC()
	record := storage.PasskeyCredential{
		CredentialID: attestation.CredentialID,
		UserID:       userID,
		PublicKey:    attestation.PublicKey,
		SignCount:    attestation.SignCount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.passkeys.PutPasskeyCredential(ctx, record); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// FinishAuthentication consumes the challenge, verifies the assertion
// against the stored credential, advances the sign count, and returns the
// authenticated user id.
func (r *Registry) FinishAuthentication(ctx context.Context, challengeValue []byte, response []byte) (string, error) {
	if err := r.challenges.Consume(ctx, challengeValue, "", challenge.PurposeAuthentication); err != nil {
		return "", err
	}

	lookup := func(credentialID string) (storage.PasskeyCredential, error) {
		stored, err := r.passkeys.GetPasskeyCredential(ctx, credentialID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return storage.PasskeyCredential{}, ErrUnknownCredential
			}
			return storage.PasskeyCredential{}, fmt.Errorf("load credential: %w", err)
		}
		return stored, nil
	}
	assertion, err := r.verifier.VerifyAuthentication(ctx, challengeValue, response, lookup)
	if err != nil {
		return "", err
	}

	if err := r.passkeys.AdvanceSignCount(ctx, assertion.CredentialID, assertion.SignCount, r.clock().UTC()); err != nil {
		return "", fmt.Errorf("advance sign count: %w", err)
	}
	return assertion.UserID, nil
}
