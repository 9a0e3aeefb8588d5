package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

const uniqueViolation = "23505"

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OrderRepository persists the order aggregate: one orders row plus its order_items rows.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx runs fn in a single transaction. Rows read through the OrderTx lock methods
// stay locked until fn returns and the transaction commits or rolls back.
func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &pgOrderTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return getOne(ctx, r.db, `WHERE order_id = $1`, id)
}

func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return getOne(ctx, r.db, `WHERE order_number = $1`, orderNumber)
}

func (r *OrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return getOne(ctx, r.db, `WHERE gateway_order_id = $1`, gatewayOrderID)
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return list(ctx, r.db, ``)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return list(ctx, r.db, `WHERE user_id = $1`, userID)
}

type pgOrderTx struct {
	q queryer
}

// Insert assigns the order id, order number and line ids.
func (t *pgOrderTx) Insert(ctx context.Context, order *domain.Order) error {
	var seq int64
	if err := t.q.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("next order number: %w", err)
	}
	order.OrderNumber = domain.FormatOrderNumber(order.CreatedAt, seq)

	err := t.q.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_number, user_id, total_amount, discount_amount, shipping_fee, final_amount,
			status, payment_status, payment_method,
			shipping_name, shipping_phone, shipping_address, shipping_city, shipping_state, shipping_pincode, order_notes,
			payment_note, gateway_order_id, gateway_payment_id, gateway_signature,
			created_at, updated_at, paid_at, delivered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING order_id
	`,
		order.OrderNumber, order.UserID, order.TotalAmount, order.DiscountAmount, order.ShippingFee, order.FinalAmount,
		order.Status, order.PaymentStatus, order.PaymentMethod,
		order.Shipping.Name, order.Shipping.Phone, order.Shipping.Address, order.Shipping.City, order.Shipping.State,
		order.Shipping.Pincode, order.Shipping.Notes,
		order.PaymentNote, nullString(order.Gateway.OrderID), nullString(order.Gateway.PaymentID), nullString(order.Gateway.Signature),
		order.CreatedAt, order.UpdatedAt, nullTime(order.PaidAt), nullTime(order.DeliveredAt),
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		err := t.q.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, product_name, quantity, price_at_purchase, subtotal, product_image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING order_item_id
		`, order.ID, i+1, item.ProductID, item.ProductName, item.Quantity, item.PriceAtPurchase, item.Subtotal, item.ProductImageURL,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i+1, err)
		}
	}

	return nil
}

func (t *pgOrderTx) LockByID(ctx context.Context, id int64) (*domain.Order, error) {
	return getOne(ctx, t.q, `WHERE order_id = $1 FOR UPDATE`, id)
}

func (t *pgOrderTx) LockByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return getOne(ctx, t.q, `WHERE gateway_order_id = $1 FOR UPDATE`, gatewayOrderID)
}

// Update writes the lifecycle columns. Shipping, amounts and lines are immutable after insert.
func (t *pgOrderTx) Update(ctx context.Context, order *domain.Order) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE orders SET
			status = $2,
			payment_status = $3,
			payment_note = $4,
			gateway_order_id = $5,
			gateway_payment_id = $6,
			gateway_signature = $7,
			updated_at = $8,
			paid_at = $9,
			delivered_at = $10
		WHERE order_id = $1
	`, order.ID, order.Status, order.PaymentStatus, order.PaymentNote,
		nullString(order.Gateway.OrderID), nullString(order.Gateway.PaymentID), nullString(order.Gateway.Signature),
		order.UpdatedAt, nullTime(order.PaidAt), nullTime(order.DeliveredAt))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.InvalidState("duplicate_gateway_order", "Gateway order id is already attached to another order")
		}
		return fmt.Errorf("update order %d: %w", order.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.NotFound("order_not_found", "Order not found")
	}

	return nil
}

const orderColumns = `
	order_id, order_number, user_id, total_amount, discount_amount, shipping_fee, final_amount,
	status, payment_status, payment_method,
	shipping_name, shipping_phone, shipping_address, shipping_city, shipping_state, shipping_pincode, order_notes,
	payment_note, gateway_order_id, gateway_payment_id, gateway_signature,
	created_at, updated_at, paid_at, delivered_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		o                               domain.Order
		gatewayOrder, gatewayPay, gwSig sql.NullString
		paidAt, deliveredAt             sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.TotalAmount, &o.DiscountAmount, &o.ShippingFee, &o.FinalAmount,
		&o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Shipping.Name, &o.Shipping.Phone, &o.Shipping.Address, &o.Shipping.City, &o.Shipping.State,
		&o.Shipping.Pincode, &o.Shipping.Notes,
		&o.PaymentNote, &gatewayOrder, &gatewayPay, &gwSig,
		&o.CreatedAt, &o.UpdatedAt, &paidAt, &deliveredAt,
	)
	if err != nil {
		return nil, err
	}
	o.Gateway = domain.GatewayRef{OrderID: gatewayOrder.String, PaymentID: gatewayPay.String, Signature: gwSig.String}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func getOne(ctx context.Context, q queryer, where string, arg any) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := loadItems(ctx, q, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = append(order.Items, items[order.ID]...)

	return order, nil
}

func list(ctx context.Context, q queryer, where string, args ...any) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC, order_id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		orders   []*domain.Order
		orderIDs []int64
	)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	items, err := loadItems(ctx, q, orderIDs)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		order.Items = append(order.Items, items[order.ID]...)
		result = append(result, *order)
	}

	return result, nil
}

func loadItems(ctx context.Context, q queryer, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, order_item_id, product_id, product_name, quantity, price_at_purchase, subtotal, product_image_url
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID int64
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.ProductName, &item.Quantity,
			&item.PriceAtPurchase, &item.Subtotal, &item.ProductImageURL); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
