package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rankshop/rankshop/internal/core"
)

// SaveAdmin creates an admin or replaces its password hash.
func (s *Store) SaveAdmin(ctx context.Context, admin *core.Admin) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if admin == nil || strings.TrimSpace(admin.Username) == "" {
		return errors.New("admin username is required")
	}
	if strings.TrimSpace(admin.PasswordHash) == "" {
		return errors.New("admin password hash is required")
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}

	_, err := s.exec(ctx, `
		INSERT INTO admins (username, password_hash, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			password_hash = excluded.password_hash
	`, admin.Username, admin.PasswordHash, toMillis(admin.CreatedAt))
	if err != nil {
		return fmt.Errorf("store admin: %w", err)
	}
	return nil
}

// GetAdmin returns an admin or ErrNotFound.
func (s *Store) GetAdmin(ctx context.Context, username string) (*core.Admin, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		admin     core.Admin
		createdAt int64
	)
	row := s.queryRow(ctx, `SELECT username, password_hash, created_at FROM admins WHERE username = ?`, strings.TrimSpace(username))
	if err := row.Scan(&admin.Username, &admin.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch admin: %w", err)
	}
	admin.CreatedAt = fromMillis(createdAt)
	return &admin, nil
}

// CreateSession records an issued admin session.
func (s *Store) CreateSession(ctx context.Context, session *core.Session) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if session == nil || session.ID == "" {
		return errors.New("session id is required")
	}

	_, err := s.exec(ctx, `
		INSERT INTO sessions (id, username, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.Username, toMillis(session.CreatedAt), toMillis(session.ExpiresAt))
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// GetSession returns a session or ErrNotFound. Expiry is checked by callers.
func (s *Store) GetSession(ctx context.Context, id string) (*core.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		session   core.Session
		createdAt int64
		expiresAt int64
	)
	row := s.queryRow(ctx, `SELECT id, username, created_at, expires_at FROM sessions WHERE id = ?`, id)
	if err := row.Scan(&session.ID, &session.Username, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	return &session, nil
}

// DeleteSession revokes a session. Missing sessions are not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.exec(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions revokes every session of an admin.
func (s *Store) DeleteUserSessions(ctx context.Context, username string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := s.exec(ctx, `DELETE FROM sessions WHERE username = ?`, username)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return result.RowsAffected()
}

// PurgeExpiredSessions deletes sessions that expired before now.
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return result.RowsAffected()
}
