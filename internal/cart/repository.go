package cart

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

// Repository reads cart snapshots; cart mutation lives elsewhere.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Items returns the user's cart lines in the order they were added, with current product data.
func (r *Repository) Items(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.product_id, p.name, p.price, p.stock_quantity, p.is_available, p.image_url, p.category,
		       ci.quantity, ci.price, ci.subtotal
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.cart_id
		JOIN products p ON p.product_id = ci.product_id
		WHERE c.user_id = $1
		ORDER BY ci.added_at, ci.cart_item_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		p := &item.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.IsAvailable, &p.ImageURL, &p.Category,
			&item.Quantity, &item.Price, &item.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// Clear removes every line from the user's cart. A user without a cart is a no-op.
func (r *Repository) Clear(ctx context.Context, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = (SELECT cart_id FROM carts WHERE user_id = $1)
	`, userID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE carts SET updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return err
	}

	return tx.Commit()
}
