// Package web exposes the passwordless authentication API over HTTP.
package web

import (
	"net/http"
	"time"

	"github.com/blindlog/blindlog/internal/auth/credential"
	"github.com/blindlog/blindlog/internal/auth/directory"
	"github.com/blindlog/blindlog/internal/auth/otp"
	"github.com/blindlog/blindlog/internal/auth/ratelimit"
	"github.com/blindlog/blindlog/internal/auth/storage"
	"github.com/blindlog/blindlog/internal/auth/token"
	"github.com/blindlog/blindlog/internal/auth/user"
	"github.com/blindlog/blindlog/internal/platform/id"
)

// Server hosts the authentication endpoints.
type Server struct {
	registry    *credential.Registry
	tokens      *token.Issuer
	otp         *otp.Channel
	directory   *directory.Directory
	limiter     *ratelimit.Limiter
	users       storage.UserStore
	emails      storage.EmailStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// Deps carries the collaborators a Server needs.
type Deps struct {
	Registry  *credential.Registry
	Tokens    *token.Issuer
	OTP       *otp.Channel
	Directory *directory.Directory
	Limiter   *ratelimit.Limiter
	Users     storage.UserStore
	Emails    storage.EmailStore
}

// NewServer builds a Server over the given collaborators.
func NewServer(deps Deps) *Server {
	return &Server{
		registry:    deps.Registry,
		tokens:      deps.Tokens,
		otp:         deps.OTP,
		directory:   deps.Directory,
		limiter:     deps.Limiter,
		users:       deps.Users,
		emails:      deps.Emails,
		clock:       time.Now,
		idGenerator: user.NewID,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Server) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// SetIDGenerator overrides user id generation. Intended for tests.
func (s *Server) SetIDGenerator(generator func() (string, error)) {
	if generator != nil {
		s.idGenerator = generator
	}
}

// RegisterRoutes registers the authentication endpoints on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}

	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("POST /challenge", s.handleChallenge)
	mux.HandleFunc("POST /passkey", s.handlePasskey)
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("POST /refreshToken", s.handleRefreshToken)
	mux.HandleFunc("POST /email/verify/start", s.handleEmailVerifyStart)
	mux.HandleFunc("POST /email/verify/confirm", s.handleEmailVerifyConfirm)
	mux.HandleFunc("POST /email/signin/start", s.handleEmailSigninStart)
	mux.HandleFunc("POST /email/signin/confirm", s.handleEmailSigninConfirm)
	mux.HandleFunc("GET /me", s.handleMe)
	mux.HandleFunc("GET /users", s.handleUsers)
	mux.HandleFunc("GET /up", handleLiveness)
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Handler wraps the registered routes in the bearer and rate-limit
// middleware and returns the complete HTTP handler. Liveness checks come
// from probes without proxy headers, so /up bypasses the chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	root := http.NewServeMux()
	root.HandleFunc("GET /up", handleLiveness)
	root.Handle("/", s.withIdentity(s.withRateLimit(mux)))
	return root
}

// newEmailID mints an id for user email rows.
func (s *Server) newEmailID() (string, error) {
	return id.NewID()
}
