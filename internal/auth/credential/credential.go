// Package credential runs the WebAuthn registration and authentication
// ceremonies and owns the passkey records they produce.
package credential

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/blindlog/blindlog/internal/auth/storage"
	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
)

var (
	// ErrUnknownCredential indicates an assertion naming a credential id
	// this service never registered.
	ErrUnknownCredential = apperrors.New(apperrors.CodeCredentialUnknown, "credential is not registered")
	// ErrDuplicateCredential indicates a registration attempt for an
	// already registered credential id.
	ErrDuplicateCredential = apperrors.New(apperrors.CodeCredentialDuplicate, "credential is already registered")
	// ErrRegistrationFailed indicates attestation verification failure.
	ErrRegistrationFailed = apperrors.New(apperrors.CodeRegistrationFailed, "credential registration failed")
	// ErrAuthenticationFailed indicates assertion verification failure.
	ErrAuthenticationFailed = apperrors.New(apperrors.CodeAuthenticationFailed, "credential authentication failed")
	// ErrSignCountNotAdvancing indicates an assertion whose authenticator
	// counter did not move past the stored floor, a cloned-key signal.
	ErrSignCountNotAdvancing = apperrors.New(apperrors.CodeSignCountNotAdvancing, "authenticator sign count did not advance")
)

// Attestation is the outcome of a verified registration ceremony.
type Attestation struct {
	CredentialID string
	PublicKey    []byte
	SignCount    uint32
}

// Assertion is the outcome of a verified authentication ceremony.
type Assertion struct {
	UserID       string
	CredentialID string
	SignCount    uint32
}

// Verifier runs WebAuthn ceremony cryptography. The registry supplies the
// challenge, the stored credential material, and the uniqueness predicate;
// the verifier decides whether the client response proves possession.
type Verifier interface {
	// RegistrationOptions builds creation options carrying the given
	// challenge, with the user handle set to the user id bytes and a
	// resident key required.
	RegistrationOptions(userID string, challengeValue []byte) (*protocol.CredentialCreation, error)
	// AuthenticationOptions builds discoverable assertion options carrying
	// the given challenge, bound to no user.
	AuthenticationOptions(challengeValue []byte) (*protocol.CredentialAssertion, error)
	// VerifyRegistration validates a registration response against the
	// challenge. unregistered is evaluated on the asserted credential id
	// before the attestation is accepted; false means duplicate.
	VerifyRegistration(ctx context.Context, userID string, challengeValue []byte, response []byte, unregistered func(credentialID string) (bool, error)) (Attestation, error)
	// VerifyAuthentication validates an assertion response against the
	// challenge. lookup resolves the asserted credential id to its stored
	// record; the returned sign count is the authenticator's new value.
	VerifyAuthentication(ctx context.Context, challengeValue []byte, response []byte, lookup func(credentialID string) (storage.PasskeyCredential, error)) (Assertion, error)
}
