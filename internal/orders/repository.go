package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/campuseats/canteen/internal/domain"
)

// OrderRepository is the Postgres-backed order store. It owns the orders
// and order_lines tables in the orders schema.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, vendor_id, student_id, status, total_price, token, predicted_pickup_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.VendorID, order.StudentID, order.Status, order.TotalPrice, order.Token, order.PredictedPickupTime, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, menu_item_id, name, quantity, price_at_order)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New().String(), order.ID, line.MenuItemID, line.Name, line.Quantity, line.PriceAtOrder)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, vendor_id, student_id, status, total_price, token, predicted_pickup_time, actual_pickup_time, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.VendorID, &order.StudentID, &order.Status, &order.TotalPrice,
		&order.Token, &order.PredictedPickupTime, &order.ActualPickupTime, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT menu_item_id, name, quantity, price_at_order
		FROM order_lines
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.MenuItemID, &line.Name, &line.Quantity, &line.PriceAtOrder); err != nil {
			return nil, err
		}
		order.Lines = append(order.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, actualPickup *time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, actual_pickup_time = COALESCE($2, actual_pickup_time), updated_at = NOW()
		WHERE id = $3
	`, status, actualPickup, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *OrderRepository) ActiveByVendor(ctx context.Context, vendorID string) ([]domain.Order, error) {
	return r.queryOrders(ctx, `
		SELECT id, vendor_id, student_id, status, total_price, token, predicted_pickup_time, actual_pickup_time, created_at
		FROM orders
		WHERE vendor_id = $1 AND status IN ('pending', 'preparing', 'ready')
		ORDER BY predicted_pickup_time ASC
	`, vendorID)
}

func (r *OrderRepository) ByStudent(ctx context.Context, studentID string) ([]domain.Order, error) {
	return r.queryOrders(ctx, `
		SELECT id, vendor_id, student_id, status, total_price, token, predicted_pickup_time, actual_pickup_time, created_at
		FROM orders
		WHERE student_id = $1
		ORDER BY created_at DESC
	`, studentID)
}

func (r *OrderRepository) ActiveAll(ctx context.Context) ([]domain.Order, error) {
	return r.queryOrders(ctx, `
		SELECT id, vendor_id, student_id, status, total_price, token, predicted_pickup_time, actual_pickup_time, created_at
		FROM orders
		WHERE status IN ('pending', 'preparing', 'ready')
	`)
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.VendorID, &order.StudentID, &order.Status, &order.TotalPrice,
			&order.Token, &order.PredictedPickupTime, &order.ActualPickupTime, &order.CreatedAt); err != nil {
			return nil, err
		}
		order.Lines = []domain.OrderLine{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	lineRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, menu_item_id, name, quantity, price_at_order
		FROM order_lines
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = lineRows.Close() }()

	for lineRows.Next() {
		var orderID string
		var line domain.OrderLine
		if err := lineRows.Scan(&orderID, &line.MenuItemID, &line.Name, &line.Quantity, &line.PriceAtOrder); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Lines = append(order.Lines, line)
	}

	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
