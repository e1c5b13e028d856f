// Package app wires the authentication service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blindlog/blindlog/internal/auth/api/web"
	"github.com/blindlog/blindlog/internal/auth/cache"
	"github.com/blindlog/blindlog/internal/auth/challenge"
	"github.com/blindlog/blindlog/internal/auth/credential"
	"github.com/blindlog/blindlog/internal/auth/directory"
	"github.com/blindlog/blindlog/internal/auth/email"
	"github.com/blindlog/blindlog/internal/auth/otp"
	"github.com/blindlog/blindlog/internal/auth/ratelimit"
	"github.com/blindlog/blindlog/internal/auth/storage/sqlite"
	"github.com/blindlog/blindlog/internal/auth/token"
	"github.com/blindlog/blindlog/internal/platform/config"
)

// Config holds the service settings.
type Config struct {
	ListenAddr   string `env:"BLINDLOG_LISTEN_ADDR" envDefault:":8080"`
	DatabasePath string `env:"BLINDLOG_DB_PATH"     envDefault:"data/auth.db"`
	// RedisAddr empty selects the in-process cache, for single-node and
	// development deployments.
	RedisAddr   string `env:"BLINDLOG_REDIS_ADDR"`
	SigningSeed string `env:"BLINDLOG_SIGNING_SEED,required"`

	Token     token.Config
	OTP       otp.Config
	RateLimit ratelimit.Config
	WebAuthn  credential.Config
	Email     email.Config
}

// LoadConfig reads the service configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Server hosts the wired authentication service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
	cache      cache.Store
}

// New builds a Server from config: it opens the database, connects the
// cache, and wires every component behind the HTTP surface.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open auth store: %w", err)
	}

	var kv cache.Store
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		kv = redisCache
	} else {
		log.Printf("no redis address configured, using in-process cache")
		kv = cache.NewMemory()
	}

	codec, err := token.NewJWTCodec(cfg.SigningSeed)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	verifier, err := credential.NewWebAuthnVerifier(cfg.WebAuthn)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var mailer email.Mailer = email.LogMailer{}
	if cfg.Email.SendGridAPIKey != "" {
		mailer = email.NewSendGrid(cfg.Email)
	}

	server := web.NewServer(web.Deps{
		Registry:  credential.NewRegistry(challenge.NewManager(kv), verifier, store),
		Tokens:    token.NewIssuer(codec, cfg.Token),
		OTP:       otp.NewChannel(cfg.OTP, kv, mailer),
		Directory: directory.New(kv, store),
		Limiter:   ratelimit.NewLimiter(cfg.RateLimit, kv),
		Users:     store,
		Emails:    store,
	})

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: server.Handler()},
		store:      store,
		cache:      kv,
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run loads config, builds a server, and serves until the context ends.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve blocks until the server stops or the context ends, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.close()

	log.Printf("auth server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		err := <-serveErr
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func (s *Server) close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close auth store: %v", err)
		}
	}
	if closer, ok := s.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Printf("close cache: %v", err)
		}
	}
}
