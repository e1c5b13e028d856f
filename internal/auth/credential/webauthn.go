package credential

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/blindlog/blindlog/internal/auth/storage"
	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
)

// WebAuthnVerifier implements Verifier over go-webauthn. Session data is
// rebuilt from our own challenge at verification time instead of being
// persisted, so the library's session store is never used.
type WebAuthnVerifier struct {
	web *webauthn.WebAuthn
}

// NewWebAuthnVerifier returns a verifier for the configured relying party.
func NewWebAuthnVerifier(config Config) (*WebAuthnVerifier, error) {
	web, err := webauthn.New(&webauthn.Config{
		RPID:          config.RPID,
		RPDisplayName: config.RPDisplayName,
		RPOrigins:     config.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure webauthn: %w", err)
	}
	return &WebAuthnVerifier{web: web}, nil
}

// ceremonyUser adapts a user id and its credentials to webauthn.User. The
// user handle is the raw user id bytes; names are not part of this service.
type ceremonyUser struct {
	id          []byte
	credentials []webauthn.Credential
}

func (u ceremonyUser) WebAuthnID() []byte { return u.id }

func (u ceremonyUser) WebAuthnName() string { return string(u.id) }

func (u ceremonyUser) WebAuthnDisplayName() string { return string(u.id) }

func (u ceremonyUser) WebAuthnIcon() string { return "" }

func (u ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func challengeString(value []byte) string {
	return base64.RawURLEncoding.EncodeToString(value)
}

func encodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func (v *WebAuthnVerifier) RegistrationOptions(userID string, challengeValue []byte) (*protocol.CredentialCreation, error) {
	creation, _, err := v.web.BeginRegistration(
		ceremonyUser{id: []byte(userID)},
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("build registration options: %w", err)
	}
	// The library mints its own challenge; ours is the one persisted and
	// consumed, so it replaces the generated value.
	creation.Response.Challenge = challengeValue
	return creation, nil
}

func (v *WebAuthnVerifier) AuthenticationOptions(challengeValue []byte) (*protocol.CredentialAssertion, error) {
	assertion, _, err := v.web.BeginDiscoverableLogin()
	if err != nil {
		return nil, fmt.Errorf("build authentication options: %w", err)
	}
	assertion.Response.Challenge = challengeValue
	return assertion, nil
}

func (v *WebAuthnVerifier) VerifyRegistration(_ context.Context, userID string, challengeValue []byte, response []byte, unregistered func(credentialID string) (bool, error)) (Attestation, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return Attestation{}, apperrors.Wrap(apperrors.CodeRegistrationFailed, "parse registration response", err)
	}

	credentialID := encodeCredentialID(parsed.RawID)
	free, err := unregistered(credentialID)
	if err != nil {
		return Attestation{}, fmt.Errorf("check credential uniqueness: %w", err)
	}
	if !free {
		return Attestation{}, ErrDuplicateCredential
	}

	session := webauthn.SessionData{
		Challenge: challengeString(challengeValue),
		UserID:    []byte(userID),
	}
	verified, err := v.web.CreateCredential(ceremonyUser{id: []byte(userID)}, session, parsed)
	if err != nil {
		return Attestation{}, apperrors.Wrap(apperrors.CodeRegistrationFailed, "verify registration response", err)
	}

	return Attestation{
		CredentialID: encodeCredentialID(verified.ID),
		PublicKey:    verified.PublicKey,
		SignCount:    verified.Authenticator.SignCount,
	}, nil
}

func (v *WebAuthnVerifier) VerifyAuthentication(_ context.Context, challengeValue []byte, response []byte, lookup func(credentialID string) (storage.PasskeyCredential, error)) (Assertion, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return Assertion{}, apperrors.Wrap(apperrors.CodeAuthenticationFailed, "parse assertion response", err)
	}

	credentialID := encodeCredentialID(parsed.RawID)
	stored, err := lookup(credentialID)
	if err != nil {
		return Assertion{}, err
	}

	known := webauthn.Credential{
		ID:        parsed.RawID,
		PublicKey: stored.PublicKey,
		Authenticator: webauthn.Authenticator{
			SignCount: stored.SignCount,
		},
	}
	handler := func(_, _ []byte) (webauthn.User, error) {
		return ceremonyUser{
			id:          []byte(stored.UserID),
			credentials: []webauthn.Credential{known},
		}, nil
	}

	session := webauthn.SessionData{Challenge: challengeString(challengeValue)}
	_, verified, err := v.web.ValidatePasskeyLogin(handler, session, parsed)
	if err != nil {
		return Assertion{}, apperrors.Wrap(apperrors.CodeAuthenticationFailed, "verify assertion response", err)
	}
	if verified.Authenticator.CloneWarning {
		return Assertion{}, ErrSignCountNotAdvancing
	}

	return Assertion{
		UserID:       stored.UserID,
		CredentialID: credentialID,
		SignCount:    verified.Authenticator.SignCount,
	}, nil
}
