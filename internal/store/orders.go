package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"order-agent/internal/models"
)

const orderColumns = `id, order_number, phone, item_id, item_name, quantity, unit_price, total,
	address, status, created_at, updated_at`

// CreateOrderTx allocates the next order number for the order's year and inserts the
// order in one transaction. order.CreatedAt must be set; ID, OrderNumber and
// timestamps are filled from the database.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	year := order.CreatedAt.Year()
	var seq int64
	err = tx.GetContext(ctx, &seq, `
		INSERT INTO order_number_counters (year, value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET value = order_number_counters.value + 1
		RETURNING value`, year)
	if err != nil {
		return fmt.Errorf("failed to allocate order number: %w", err)
	}
	order.OrderNumber = models.FormatOrderNumber(year, seq)

	query := `
		INSERT INTO orders (order_number, phone, item_id, item_name, quantity, unit_price, total,
			address, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id, created_at, updated_at`

	err = tx.GetContext(ctx, order, query,
		order.OrderNumber, order.Phone, order.ItemID, order.ItemName, order.Quantity,
		order.UnitPrice, order.Total, order.Address, order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return tx.Commit()
}

// GetOrderByNumber retrieves an order by its order number
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE order_number = $1", number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByPhone retrieves a customer's most recent orders, newest first
func (s *Store) GetOrdersByPhone(ctx context.Context, phone string, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE phone = $1 ORDER BY created_at DESC LIMIT $2",
		phone, limit)
	return orders, err
}

// SearchOrders returns orders matching filter, newest first. A zero limit returns every match.
func (s *Store) SearchOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		p := arg("%" + q + "%")
		where = append(where, fmt.Sprintf("(order_number ILIKE %s OR item_name ILIKE %s OR phone ILIKE %s)", p, p, p))
	}
	if filter.Status != nil {
		where = append(where, "status = "+arg(*filter.Status))
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at < "+arg(filter.To))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	var orders []models.Order
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatusTx locks the order row, asks transition for the next status and
// records the change in the status history. The order is returned as it was before the
// update together with the new status.
func (s *Store) UpdateOrderStatusTx(ctx context.Context, number, notes string,
	transition func(current models.OrderStatus) (models.OrderStatus, error)) (*models.Order, models.OrderStatus, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE order_number = $1 FOR UPDATE", number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: %s", ErrOrderNotFound, number)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to lock order: %w", err)
	}

	next, err := transition(order.Status)
	if err != nil {
		return nil, 0, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		next, order.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to update status: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO order_status_history (order_id, old_status, new_status, notes) VALUES ($1, $2, $3, $4)",
		order.ID, order.Status, next, notes)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to record status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return &order, next, nil
}

// GetStatusHistory retrieves an order's status changes, oldest first
func (s *Store) GetStatusHistory(ctx context.Context, orderID int64) ([]models.OrderStatusChange, error) {
	var changes []models.OrderStatusChange
	err := s.db.SelectContext(ctx, &changes,
		"SELECT id, order_id, old_status, new_status, notes, changed_at FROM order_status_history WHERE order_id = $1 ORDER BY changed_at, id",
		orderID)
	return changes, err
}
