package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `product_id, name, price, stock_quantity, is_available, image_url, category`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.IsAvailable, &p.ImageURL, &p.Category); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID returns nil, nil when the product does not exist.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// GetByIDs returns the products found, keyed by id.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	products := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}
