// Package session authenticates operators against the cached users collection and
// issues signed session tokens.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
)

var (
	ErrBadCredentials = fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	ErrInvalidToken   = fmt.Errorf("invalid session token: %w", apperr.ErrUnauthorized)
	ErrRevoked        = fmt.Errorf("session ended: %w", apperr.ErrUnauthorized)
	ErrAccountGone    = fmt.Errorf("account no longer exists: %w", apperr.ErrUnauthorized)
)

const (
	defaultTTL          = 12 * time.Hour
	defaultSeedUsername = "admin"
	defaultSeedPassword = "123"
	seedAdminID         = "seed-admin"
)

type Config struct {
	Secret       string
	TTL          time.Duration
	SeedUsername string
	SeedPassword string
}

// ConfigFromEnv reads SESSION_SECRET, SESSION_TTL, SEED_ADMIN_USERNAME and
// SEED_ADMIN_PASSWORD.
func ConfigFromEnv() Config {
	cfg := Config{
		Secret:       os.Getenv("SESSION_SECRET"),
		TTL:          defaultTTL,
		SeedUsername: strings.TrimSpace(os.Getenv("SEED_ADMIN_USERNAME")),
		SeedPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TTL = d
		}
	}
	if cfg.SeedUsername == "" {
		cfg.SeedUsername = defaultSeedUsername
	}
	if cfg.SeedPassword == "" {
		cfg.SeedPassword = defaultSeedPassword
	}
	return cfg
}

// SeedUsers returns the admin account used while the users collection cannot be
// read. The password is stored hashed.
func (c Config) SeedUsers(h PasswordHasher) ([]entity.User, error) {
	hash, _, err := h.Hash(c.SeedPassword)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return []entity.User{{ID: seedAdminID, Username: c.SeedUsername, Password: hash, Role: entity.RoleAdmin}}, nil
}

// Users looks operators up by username.
type Users interface {
	FindUser(username string) (entity.User, bool)
}

// PasswordStore persists rehashed passwords.
type PasswordStore interface {
	Update(ctx context.Context, kind entity.Kind, id string, partial mapper.Fields) (mapper.Fields, error)
}

// Session is returned by a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      entity.User `json:"user"`
}

type Service struct {
	users   Users
	store   PasswordStore
	hasher  PasswordHasher
	revoked Revocations
	tokens  tokens
	logger  *zap.SugaredLogger
}

// NewService builds the session service. An empty secret is replaced by a random
// one, which invalidates sessions on restart.
func NewService(cfg Config, users Users, store PasswordStore, hasher PasswordHasher, revoked Revocations, logger *zap.SugaredLogger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if revoked == nil {
		revoked = NewMemoryRevocations()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		logger.Warnw("SESSION_SECRET not set, using an ephemeral secret")
	}
	return &Service{
		users:   users,
		store:   store,
		hasher:  hasher,
		revoked: revoked,
		tokens:  tokens{secret: secret, ttl: cfg.TTL, now: time.Now},
		logger:  logger,
	}, nil
}

// Login matches username case-insensitively and verifies password. Legacy
// cleartext passwords are rehashed on the first successful login.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, ok := s.users.FindUser(username)
	if !ok || password == "" {
		return nil, ErrBadCredentials
	}
	if !s.hasher.Verify(u.Password, password) {
		return nil, ErrBadCredentials
	}
	if s.hasher.NeedsRehash(u.Password) {
		s.rehash(ctx, u, password)
	}
	token, claims, err := s.tokens.issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u.Public()}, nil
}

func (s *Service) rehash(ctx context.Context, u entity.User, password string) {
	if s.store == nil || u.ID == seedAdminID {
		return
	}
	hash, _, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warnw("rehash password failed", "user", u.ID, "err", err)
		return
	}
	if _, err := s.store.Update(ctx, entity.KindUser, u.ID.String(), mapper.Fields{"password": hash}); err != nil {
		s.logger.Warnw("store rehashed password failed", "user", u.ID, "err", err)
		return
	}
	s.logger.Infow("password rehashed", "user", u.ID)
}

// Authenticate validates a raw token and rejects revoked sessions. The role in
// the returned claims is the account's current role, not the one at login; a
// session whose account was removed is rejected.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.tokens.parse(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		s.logger.Warnw("revocation lookup failed", "jti", claims.ID, "err", err)
		return nil, fmt.Errorf("check revocation: %w: %w", apperr.ErrUnauthorized, err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	u, ok := s.users.FindUser(claims.Username)
	if !ok || !u.ID.Same(entity.ID(claims.Subject)) {
		return nil, ErrAccountGone
	}
	claims.Role = u.Role
	return claims, nil
}

// Logout revokes the session until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	until := s.tokens.now().Add(s.tokens.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.revoked.Revoke(ctx, claims.ID, until); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
