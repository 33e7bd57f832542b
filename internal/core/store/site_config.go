package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetSiteConfig returns all site settings.
func (s *Store) GetSiteConfig(ctx context.Context) (map[string]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.query(ctx, `SELECT key, value FROM site_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("load site config: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan site config: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load site config: %w", err)
	}
	return values, nil
}

// SetSiteConfig stores one setting.
func (s *Store) SetSiteConfig(ctx context.Context, key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("site config key is required")
	}

	_, err := s.exec(ctx, `
		INSERT INTO site_config (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, toMillis(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("store site config: %w", err)
	}
	return nil
}
