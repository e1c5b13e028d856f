package ratelimit

import (
	"net/http"
	"strings"

	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
)

// ErrNoClientAddress indicates a request carrying no resolvable client
// address in any supported proxy header.
var ErrNoClientAddress = apperrors.New(apperrors.CodeClientAddress, "client address could not be determined")

// ClientAddress resolves the client address of a proxied request.
//
// Precedence: first X-Forwarded-For entry, then the first for= pair of the
// Forwarded header, then CF-Connecting-IP. The service always sits behind a
// proxy, so a request carrying none of these is rejected rather than
// falling back to the peer address.
func ClientAddress(r *http.Request) (string, error) {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if addr := strings.TrimSpace(first); addr != "" {
			return addr, nil
		}
	}

	if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
		if addr := forwardedFor(forwarded); addr != "" {
			return addr, nil
		}
	}

	if addr := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); addr != "" {
		return addr, nil
	}

	return "", ErrNoClientAddress
}

// forwardedFor extracts the for= value of the first element of an RFC 7239
// Forwarded header.
func forwardedFor(header string) string {
	element, _, _ := strings.Cut(header, ",")
	for _, pair := range strings.Split(element, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(name, "for") {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"`)
		return value
	}
	return ""
}
