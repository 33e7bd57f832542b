// Package auth signs admins in with bcrypt-checked passwords and issues
// session tokens backed by stored session rows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rankshop/rankshop/internal/core"
	"github.com/rankshop/rankshop/internal/core/store"
)

// Session lifecycle events passed to Service.OnEvent.
const (
	EventSignedIn    = "signed_in"
	EventSignedOut   = "signed_out"
	EventRejected    = "rejected"
	EventExpired     = "expired"
	EventRevokedAll  = "revoked_all"
	DefaultTTL       = 12 * time.Hour
	MinPasswordChars = 8
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("session is missing, expired or revoked")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordChars)
	ErrInvalidUsername    = errors.New("admin username must be 3-32 letters, digits, dots, dashes or underscores")
)

var adminNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// Store is the persistence the service needs.
type Store interface {
	GetAdmin(ctx context.Context, username string) (*core.Admin, error)
	SaveAdmin(ctx context.Context, admin *core.Admin) error
	CreateSession(ctx context.Context, session *core.Session) error
	GetSession(ctx context.Context, id string) (*core.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, username string) (int64, error)
}

// Claims are carried in session tokens. The token ID is the session row ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Service manages admin accounts and sessions.
type Service struct {
	Store  Store
	Hasher *BcryptHasher
	Secret []byte
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
	Logger *logging.Logger
	// OnEvent observes session changes.
	OnEvent func(event string)
}

// NewService validates the signing secret.
func NewService(st Store, secret []byte, issuer string, ttl time.Duration) (*Service, error) {
	if st == nil {
		return nil, errors.New("auth store is required")
	}
	if len(secret) < 16 {
		return nil, errors.New("session signing secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "rankshop"
	}
	return &Service{
		Store:  st,
		Hasher: NewBcryptHasher(0),
		Secret: secret,
		Issuer: issuer,
		TTL:    ttl,
	}, nil
}

// CreateAdmin stores a new admin or replaces the password of an existing one.
// Replacing a password revokes the admin's sessions.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if !adminNamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if len(password) < MinPasswordChars {
		return ErrWeakPassword
	}

	hash, err := s.hasher().Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.SaveAdmin(ctx, &core.Admin{Username: username, PasswordHash: hash, CreatedAt: s.now()}); err != nil {
		return err
	}

	revoked, err := s.Store.DeleteUserSessions(ctx, username)
	if err != nil {
		return err
	}
	if revoked > 0 {
		s.emit(EventRevokedAll, zap.String("admin", username), zap.Int64("sessions", revoked))
	}
	return nil
}

// Login checks credentials and returns a signed token for a new session.
func (s *Service) Login(ctx context.Context, username, password string) (string, *core.Session, error) {
	username = strings.TrimSpace(username)
	admin, err := s.Store.GetAdmin(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.emit(EventRejected, zap.String("admin", username))
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.hasher().Compare(admin.PasswordHash, password); err != nil {
		s.emit(EventRejected, zap.String("admin", username))
		return "", nil, ErrInvalidCredentials
	}

	now := s.now()
	session := &core.Session{
		ID:        uuid.NewString(),
		Username:  admin.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl()),
	}
	if err := s.Store.CreateSession(ctx, session); err != nil {
		return "", nil, err
	}

	token, err := s.sign(session)
	if err != nil {
		return "", nil, err
	}
	s.emit(EventSignedIn, zap.String("admin", admin.Username), zap.String("session_id", session.ID))
	return token, session, nil
}

// Validate returns the live session behind token.
func (s *Service) Validate(ctx context.Context, token string) (*core.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.emit(EventExpired)
		}
		return nil, ErrUnauthorized
	}

	session, err := s.Store.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !session.ExpiresAt.After(s.now()) {
		s.emit(EventExpired, zap.String("session_id", session.ID))
		return nil, ErrUnauthorized
	}
	if session.Username != claims.Subject {
		return nil, ErrUnauthorized
	}
	return session, nil
}

// Logout revokes the session behind token. Invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil
		}
		return err
	}
	if err := s.Store.DeleteSession(ctx, session.ID); err != nil {
		return err
	}
	s.emit(EventSignedOut, zap.String("admin", session.Username), zap.String("session_id", session.ID))
	return nil
}

func (s *Service) sign(session *core.Session) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   session.Username,
			Issuer:    s.Issuer,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			NotBefore: jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *Service) emit(event string, fields ...zap.Field) {
	if s.OnEvent != nil {
		s.OnEvent(event)
	}
	if s.Logger != nil {
		s.Logger.Info("Admin session "+event, fields...)
	}
}

func (s *Service) hasher() *BcryptHasher {
	if s.Hasher == nil {
		s.Hasher = NewBcryptHasher(0)
	}
	return s.Hasher
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
