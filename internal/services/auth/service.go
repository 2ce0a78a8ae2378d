package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/allfence/internal/dependencies/clock"
	"github.com/mcoot/allfence/internal/dependencies/random"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUsernameExists     = errors.New("username already exists")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const (
	issuer            = "allfence"
	minPasswordLength = 8
)

// Session is a validated admin token
type Session struct {
	Token     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type adminClaims struct {
	jwt.RegisteredClaims
}

// Service authenticates administrators and issues signed session tokens.
// Tokens are self-contained, so any server sharing the secret accepts them.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	secret          []byte
	sessionDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	Secret          string
	SessionDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 12 * time.Hour,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, logger *slog.Logger, cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		random:          random,
		logger:          logger,
		secret:          []byte(cfg.Secret),
		sessionDuration: cfg.SessionDuration,
	}, nil
}

// CreateAdmin adds an administrator account
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*model.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, model.ErrMissingName
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	_, err := s.storage.GetAdmin(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrAdminNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	admin := &model.Admin{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storage.SaveAdmin(ctx, admin); err != nil {
		return nil, err
	}

	s.logger.Info("admin created", slog.String("username", username))
	return admin, nil
}

// EnsureAdmin creates the bootstrap admin on first start. An existing account
// keeps its password.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.CreateAdmin(ctx, username, password)
	if errors.Is(err, ErrUsernameExists) {
		return nil
	}
	return err
}

// Login checks an admin's password and issues a session token
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	admin, err := s.storage.GetAdmin(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrAdminNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("admin login failed", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	return s.issue(admin.Username)
}

// ValidateToken verifies a token's signature and expiry
func (s *Service) ValidateToken(token string) (*Session, error) {
	claims := &adminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	return &Session{
		Token:     token,
		Username:  claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) issue(username string) (*Session, error) {
	now := s.clock.Now()
	expires := now.Add(s.sessionDuration)
	claims := &adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.random.UUID(),
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Session{
		Token:     token,
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: expires,
	}, nil
}
