package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rankshop/rankshop/internal/core"
)

// RateLimitQuery selects rate limit entries for the admin commands.
type RateLimitQuery struct {
	All         bool
	Identifier  string
	Prefix      string
	BlockedOnly bool
}

func (q RateLimitQuery) Validate() error {
	if q.All || q.BlockedOnly {
		return nil
	}
	if strings.TrimSpace(q.Identifier) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --blocked, --identifier, or --prefix")
}

func (q RateLimitQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	clauses := []string{}
	args := []any{}
	if identifier := strings.TrimSpace(q.Identifier); identifier != "" {
		clauses = append(clauses, "identifier = ?")
		args = append(args, identifier)
	} else if prefix := strings.TrimSpace(q.Prefix); prefix != "" {
		clauses = append(clauses, "identifier LIKE ?")
		args = append(args, prefix+"%")
	}
	if q.BlockedOnly {
		clauses = append(clauses, "blocked = 1")
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]core.RateLimitEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, fmt.Sprintf(`
		SELECT identifier, attempts, window_start, last_seen, blocked, blocked_until
		FROM rate_limit_entries
		%s
		ORDER BY identifier
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []core.RateLimitEntry{}
	for rows.Next() {
		entry, err := scanRateLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}

	return entries, nil
}

func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.queryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM rate_limit_entries
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.exec(ctx, fmt.Sprintf(`
		DELETE FROM rate_limit_entries
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return affected, nil
}
