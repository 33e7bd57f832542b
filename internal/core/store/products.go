package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rankshop/rankshop/internal/core"
)

const productColumns = `id, name, description, price_cents, discount_percent, image_url, thumbnail_url, color, perks, sort_order, active, created_at, updated_at`

// ListProducts returns products ordered for display.
func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]core.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY sort_order, name`

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	products := []core.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product or ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id string) (*core.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("product id is required")
	}

	row := s.queryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch product: %w", err)
	}
	return product, nil
}

// UpsertProduct inserts or replaces a product keyed by ID.
func (s *Store) UpsertProduct(ctx context.Context, product *core.Product) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if product == nil || strings.TrimSpace(product.ID) == "" {
		return errors.New("product id is required")
	}

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	perks, err := json.Marshal(nonNilStrings(product.Perks))
	if err != nil {
		return fmt.Errorf("encode perks: %w", err)
	}

	_, err = s.exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price_cents = excluded.price_cents,
			discount_percent = excluded.discount_percent,
			image_url = excluded.image_url,
			thumbnail_url = excluded.thumbnail_url,
			color = excluded.color,
			perks = excluded.perks,
			sort_order = excluded.sort_order,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, product.ID, product.Name, product.Description, product.PriceCents, product.DiscountPercent,
		product.ImageURL, product.ThumbnailURL, product.Color, string(perks), product.SortOrder,
		boolToInt(product.Active), toMillis(product.CreatedAt), toMillis(product.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store product: %w", err)
	}
	return nil
}

// UpdateProduct applies a partial edit and returns the stored product.
func (s *Store) UpdateProduct(ctx context.Context, id string, update core.ProductUpdate) (*core.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		product.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.PriceCents != nil {
		if *update.PriceCents < 0 {
			return nil, errors.New("price must not be negative")
		}
		product.PriceCents = *update.PriceCents
	}
	if update.DiscountPercent != nil {
		product.DiscountPercent = core.ClampDiscount(*update.DiscountPercent)
	}
	if update.ImageURL != nil {
		product.ImageURL = *update.ImageURL
	}
	if update.ThumbnailURL != nil {
		product.ThumbnailURL = *update.ThumbnailURL
	}
	if update.Active != nil {
		product.Active = *update.Active
	}

	if err := s.UpsertProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*core.Product, error) {
	var (
		product   core.Product
		perks     string
		active    int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&product.ID, &product.Name, &product.Description, &product.PriceCents,
		&product.DiscountPercent, &product.ImageURL, &product.ThumbnailURL, &product.Color, &perks,
		&product.SortOrder, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if strings.TrimSpace(perks) != "" {
		if err := json.Unmarshal([]byte(perks), &product.Perks); err != nil {
			return nil, fmt.Errorf("decode perks for %s: %w", product.ID, err)
		}
	}
	product.Active = active != 0
	product.CreatedAt = fromMillis(createdAt)
	product.UpdatedAt = fromMillis(updatedAt)
	return &product, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
