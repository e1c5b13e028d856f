package web

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/blindlog/blindlog/internal/auth/challenge"
	"github.com/blindlog/blindlog/internal/auth/ratelimit"
	"github.com/blindlog/blindlog/internal/auth/storage"
	"github.com/blindlog/blindlog/internal/auth/token"
	"github.com/blindlog/blindlog/internal/auth/user"
	apperrors "github.com/blindlog/blindlog/internal/platform/errors"
	"github.com/blindlog/blindlog/internal/platform/requestctx"
)

const maxBodyBytes = 1 << 20

var (
	errMalformedRequest = apperrors.New(apperrors.CodeMalformedRequest, "request payload is malformed")
	errInvalidEmail     = apperrors.New(apperrors.CodeEmailInvalid, "email address is invalid")
	errEmailInUse       = apperrors.New(apperrors.CodeEmailInUse, "email address is already in use")
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError logs the failure with its operation context and writes only
// the coarse status and domain message to the client.
func writeError(w http.ResponseWriter, op string, err error) {
	log.Printf("%s: %v", op, err)

	status := http.StatusInternalServerError
	message := "internal error"
	var domain *apperrors.Error
	if errors.As(err, &domain) {
		status = domain.Code.HTTPStatus()
		if status != http.StatusInternalServerError {
			message = domain.Message
		}
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSON(w http.ResponseWriter, r *http.Request, target any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeMalformedRequest, "decode request payload", err)
	}
	return nil
}

func encodeChallenge(value []byte) string {
	return base64.RawURLEncoding.EncodeToString(value)
}

func decodeChallenge(encoded string) ([]byte, error) {
	value, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil || len(value) == 0 {
		return nil, challenge.ErrInvalid
	}
	return value, nil
}

// parseEmail validates and normalizes a bare address.
func parseEmail(raw string) (string, error) {
	address, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || address.Name != "" {
		return "", errInvalidEmail
	}
	return strings.ToLower(address.Address), nil
}

type signupResponse struct {
	User   user.User  `json:"user"`
	Tokens token.Pair `json:"tokens"`
}

// overEndpointCeiling reports whether this window's recorded per-endpoint
// count passed the tighter ceiling account creation and passkey sign-in
// carry.
func (s *Server) overEndpointCeiling(r *http.Request) bool {
	counts, ok := requestctx.AccessCountFromContext(r.Context())
	return ok && counts.PerEndpoint > s.limiter.Config().PerEndpointMaxCount
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.overEndpointCeiling(r) {
		writeError(w, "signup", ratelimit.ErrLimited)
		return
	}

	created, err := user.Create(s.clock, s.idGenerator)
	if err != nil {
		writeError(w, "signup: create user", err)
		return
	}
	if err := s.users.PutUser(r.Context(), created); err != nil {
		writeError(w, "signup: store user", err)
		return
	}

	pair, err := s.tokens.Issue(created.ID)
	if err != nil {
		writeError(w, "signup: issue tokens", err)
		return
	}
	writeJSON(w, http.StatusOK, signupResponse{User: created, Tokens: pair})
}

type challengeResponse struct {
	Challenge string `json:"challenge"`
	Options   any    `json:"options"`
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())

	if userID != "" {
		value, options, err := s.registry.BeginRegistration(r.Context(), userID)
		if err != nil {
			writeError(w, "begin registration", err)
			return
		}
		writeJSON(w, http.StatusOK, challengeResponse{Challenge: encodeChallenge(value), Options: options})
		return
	}

	value, options, err := s.registry.BeginAuthentication(r.Context())
	if err != nil {
		writeError(w, "begin authentication", err)
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{Challenge: encodeChallenge(value), Options: options})
}

func (s *Server) handlePasskey(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	value, err := decodeChallenge(r.URL.Query().Get("challenge"))
	if err != nil {
		writeError(w, "register passkey", err)
		return
	}
	response, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "register passkey: read body", errMalformedRequest)
		return
	}

	if err := s.registry.FinishRegistration(r.Context(), value, response, userID); err != nil {
		writeError(w, "register passkey user="+userID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

type tokenRequest struct {
	Challenge  string          `json:"challenge"`
	Credential json.RawMessage `json:"credential"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.overEndpointCeiling(r) {
		writeError(w, "token", ratelimit.ErrLimited)
		return
	}

	var request tokenRequest
	if err := readJSON(w, r, &request); err != nil {
		writeError(w, "token", err)
		return
	}
	value, err := decodeChallenge(request.Challenge)
	if err != nil {
		writeError(w, "token", err)
		return
	}

	userID, err := s.registry.FinishAuthentication(r.Context(), value, request.Credential)
	if err != nil {
		writeError(w, "token: authenticate", err)
		return
	}

	pair, err := s.tokens.Issue(userID)
	if err != nil {
		writeError(w, "token: issue user="+userID, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var request refreshRequest
	if err := readJSON(w, r, &request); err != nil {
		writeError(w, "refresh token", err)
		return
	}

	pair, err := s.tokens.Refresh(request.RefreshToken)
	if err != nil {
		writeError(w, "refresh token", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleEmailVerifyStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	address, err := parseEmail(r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, "email verify start", err)
		return
	}

	if _, err := s.emails.GetUserEmailByEmail(r.Context(), address); err == nil {
		writeError(w, "email verify start user="+userID, errEmailInUse)
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeError(w, "email verify start: lookup", err)
		return
	}

	if err := s.otp.StartRegistration(r.Context(), userID, address); err != nil {
		writeError(w, "email verify start user="+userID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleEmailVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	address, err := parseEmail(query.Get("email"))
	if err != nil {
		writeError(w, "email verify confirm", err)
		return
	}

	if err := s.otp.VerifyRegistration(r.Context(), userID, address, query.Get("password")); err != nil {
		writeError(w, "email verify confirm user="+userID, err)
		return
	}

	// The code round trip does not hold a claim on the address; a racing
	// confirmation may have taken it since the start call.
	if existing, err := s.emails.GetUserEmailByEmail(r.Context(), address); err == nil && existing.UserID != userID {
		writeError(w, "email verify confirm user="+userID, errEmailInUse)
		return
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(w, "email verify confirm: lookup", err)
		return
	}

	now := s.clock().UTC()
	record := storage.UserEmail{
		UserID:    userID,
		Email:     address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if current, err := s.emails.GetUserEmailByUser(r.Context(), userID); err == nil {
		record.ID = current.ID
		record.CreatedAt = current.CreatedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeError(w, "email verify confirm: lookup", err)
		return
	} else {
		emailID, err := s.newEmailID()
		if err != nil {
			writeError(w, "email verify confirm: id", err)
			return
		}
		record.ID = emailID
	}

	if err := s.emails.PutUserEmail(r.Context(), record); err != nil {
		writeError(w, "email verify confirm: store", err)
		return
	}
	if err := s.directory.Invalidate(r.Context(), userID); err != nil {
		writeError(w, "email verify confirm: invalidate", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (s *Server) handleEmailSigninStart(w http.ResponseWriter, r *http.Request) {
	address, err := parseEmail(r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, "email signin start", err)
		return
	}

	// Codes are dispatched for unknown addresses too; whether an account
	// exists is only revealed at confirmation.
	value, err := s.otp.StartAuthentication(r.Context(), address)
	if err != nil {
		writeError(w, "email signin start", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"challenge": encodeChallenge(value)})
}

type emailSigninRequest struct {
	Challenge string `json:"challenge"`
	Email     string `json:"email"`
	OTP       string `json:"otp"`
}

func (s *Server) handleEmailSigninConfirm(w http.ResponseWriter, r *http.Request) {
	var request emailSigninRequest
	if err := readJSON(w, r, &request); err != nil {
		writeError(w, "email signin confirm", err)
		return
	}
	value, err := decodeChallenge(request.Challenge)
	if err != nil {
		writeError(w, "email signin confirm", err)
		return
	}
	address, err := parseEmail(request.Email)
	if err != nil {
		writeError(w, "email signin confirm", err)
		return
	}

	bound, err := s.otp.VerifyAuthentication(r.Context(), value, address, request.OTP)
	if err != nil {
		writeError(w, "email signin confirm", err)
		return
	}

	userEmail, err := s.emails.GetUserEmailByEmail(r.Context(), bound)
	if err != nil {
		writeError(w, "email signin confirm: lookup", err)
		return
	}

	pair, err := s.tokens.Issue(userEmail.UserID)
	if err != nil {
		writeError(w, "email signin confirm: issue", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	record, err := s.directory.Get(r.Context(), userID)
	if err != nil {
		writeError(w, "me user="+userID, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type usersResponse struct {
	Users []user.User `json:"users"`
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("ids"))
	if raw == "" {
		writeJSON(w, http.StatusOK, usersResponse{Users: []user.User{}})
		return
	}

	var ids []string
	for _, part := range strings.Split(raw, ",") {
		id, err := user.ParseID(part)
		if err != nil {
			writeError(w, "users", err)
			return
		}
		ids = append(ids, id)
	}

	users, err := s.directory.GetMany(r.Context(), ids)
	if err != nil {
		writeError(w, "users", err)
		return
	}
	if users == nil {
		users = []user.User{}
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}
