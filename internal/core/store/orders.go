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

const orderColumns = `id, username, platform, product_id, rank_name, original_cents, discount_percent, price_cents, status, payment_proof, client_hash, created_at, updated_at`

const defaultOrderLimit = 100

// InsertOrder persists a new order.
func (s *Store) InsertOrder(ctx context.Context, order *core.Order) error {
	if err := s.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if order == nil || strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	if strings.TrimSpace(order.PaymentProof) == "" {
		return errors.New("payment proof is required")
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if order.Status == "" {
		order.Status = core.OrderStatusPending
	}

	_, err := s.exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, order.ID, order.Username, string(order.Platform), order.ProductID, order.RankName,
		order.OriginalCents, order.DiscountPercent, order.PriceCents, string(order.Status),
		order.PaymentProof, order.ClientHash, toMillis(order.CreatedAt), toMillis(order.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrder returns one order or ErrNotFound.
func (s *Store) GetOrder(ctx context.Context, id string) (*core.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, strings.TrimSpace(id))
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	return order, nil
}

// ListOrders returns orders newest first.
func (s *Store) ListOrders(ctx context.Context, q core.OrderQuery) ([]core.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultOrderLimit
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if q.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(q.Status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	orders := []core.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order from one status to another. It fails
// with ErrStale when the order no longer has status from.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to core.OrderStatus, at time.Time) (*core.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := core.ParseOrderStatus(string(to)); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now()
	}
	id = strings.TrimSpace(id)

	result, err := s.exec(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), toMillis(at.UTC()), id, string(from))
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if affected == 0 {
		current, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, fmt.Errorf("order %s is %s, not %s: %w", id, current.Status, from, ErrStale)
	}
	return s.GetOrder(ctx, id)
}

// CountOrders returns the number of orders per status.
func (s *Store) CountOrders(ctx context.Context) (map[core.OrderStatus]int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	counts := map[core.OrderStatus]int{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("count orders: %w", err)
		}
		counts[core.OrderStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	return counts, nil
}

func scanOrder(row rowScanner) (*core.Order, error) {
	var (
		order     core.Order
		platform  string
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&order.ID, &order.Username, &platform, &order.ProductID, &order.RankName,
		&order.OriginalCents, &order.DiscountPercent, &order.PriceCents, &status,
		&order.PaymentProof, &order.ClientHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	order.Platform = core.Platform(platform)
	order.Status = core.OrderStatus(status)
	order.CreatedAt = fromMillis(createdAt)
	order.UpdatedAt = fromMillis(updatedAt)
	return &order, nil
}
