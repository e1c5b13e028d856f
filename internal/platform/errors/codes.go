// Package errors provides structured error handling with machine codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeMalformedRequest represents an unparseable request payload.
	CodeMalformedRequest Code = "MALFORMED_REQUEST"

	// Challenge errors
	CodeChallengeInvalid Code = "CHALLENGE_INVALID"
	CodeChallengePurpose Code = "CHALLENGE_INVALID_PURPOSE"

	// Credential errors
	CodeCredentialUnknown     Code = "CREDENTIAL_UNKNOWN"
	CodeCredentialDuplicate   Code = "CREDENTIAL_DUPLICATE"
	CodeRegistrationFailed    Code = "CREDENTIAL_REGISTRATION_FAILED"
	CodeAuthenticationFailed  Code = "CREDENTIAL_AUTHENTICATION_FAILED"
	CodeSignCountNotAdvancing Code = "CREDENTIAL_SIGN_COUNT_NOT_ADVANCING"

	// Token errors
	CodeTokenInvalid   Code = "TOKEN_INVALID"
	CodeTokenExpired   Code = "TOKEN_EXPIRED"
	CodeTokenWrongType Code = "TOKEN_WRONG_TYPE"

	// OTP errors
	CodeOTPInvalid Code = "OTP_INVALID"

	// User errors
	CodeUserInvalidID Code = "USER_INVALID_ID"

	// Email errors
	CodeEmailInvalid Code = "EMAIL_INVALID"
	CodeEmailInUse   Code = "EMAIL_IN_USE"

	// Rate limit errors
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeClientAddress Code = "CLIENT_ADDRESS_UNRESOLVED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input, failed ceremonies
	case CodeChallengeInvalid,
		CodeChallengePurpose,
		CodeCredentialUnknown,
		CodeCredentialDuplicate,
		CodeRegistrationFailed,
		CodeAuthenticationFailed,
		CodeSignCountNotAdvancing,
		CodeEmailInvalid,
		CodeEmailInUse,
		CodeClientAddress,
		CodeUserInvalidID,
		CodeMalformedRequest:
		return http.StatusBadRequest

	// Unauthorized - missing or bad bearer/OTP credentials
	case CodeTokenInvalid,
		CodeTokenExpired,
		CodeTokenWrongType,
		CodeOTPInvalid:
		return http.StatusUnauthorized

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// TooManyRequests - quota exceeded
	case CodeRateLimited:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
