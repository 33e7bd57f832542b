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

// GetRateLimit returns stored rate limit state for an identifier.
func (s *Store) GetRateLimit(ctx context.Context, identifier string) (*core.RateLimitEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("identifier is required")
	}

	row := s.queryRow(ctx, `
		SELECT identifier, attempts, window_start, last_seen, blocked, blocked_until
		FROM rate_limit_entries
		WHERE identifier = ?
	`, identifier)

	entry, err := scanRateLimit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	return entry, nil
}

// SetRateLimit persists rate limit state for an identifier.
func (s *Store) SetRateLimit(ctx context.Context, entry *core.RateLimitEntry) error {
	if err := s.ready(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if entry == nil {
		return errors.New("rate limit entry is required")
	}
	identifier := strings.TrimSpace(entry.Identifier)
	if identifier == "" {
		return errors.New("identifier is required")
	}

	_, err := s.exec(ctx, `
		INSERT INTO rate_limit_entries (identifier, attempts, window_start, last_seen, blocked, blocked_until)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			attempts = excluded.attempts,
			window_start = excluded.window_start,
			last_seen = excluded.last_seen,
			blocked = excluded.blocked,
			blocked_until = excluded.blocked_until
	`, identifier, entry.Attempts, toMillis(entry.WindowStart), toMillis(entry.LastSeen),
		boolToInt(entry.Blocked), toMillis(entry.BlockedUntil))
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}

	return nil
}

// DeleteRateLimit removes the entry for an identifier.
func (s *Store) DeleteRateLimit(ctx context.Context, identifier string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.exec(ctx, `DELETE FROM rate_limit_entries WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("delete rate limit: %w", err)
	}
	return nil
}

// SweepRateLimits removes entries last seen before cutoff unless their block
// is still running at now.
func (s *Store) SweepRateLimits(ctx context.Context, cutoff, now time.Time) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.exec(ctx, `
		DELETE FROM rate_limit_entries
		WHERE last_seen < ?
		AND NOT (blocked = 1 AND blocked_until > ?)
	`, toMillis(cutoff), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("sweep rate limits: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rate limits: %w", err)
	}
	return int(affected), nil
}

func scanRateLimit(row rowScanner) (*core.RateLimitEntry, error) {
	var (
		entry        core.RateLimitEntry
		windowStart  int64
		lastSeen     int64
		blocked      int
		blockedUntil int64
	)
	if err := row.Scan(&entry.Identifier, &entry.Attempts, &windowStart, &lastSeen, &blocked, &blockedUntil); err != nil {
		return nil, err
	}
	entry.WindowStart = fromMillis(windowStart)
	entry.LastSeen = fromMillis(lastSeen)
	entry.Blocked = blocked != 0
	entry.BlockedUntil = fromMillis(blockedUntil)
	return &entry, nil
}
