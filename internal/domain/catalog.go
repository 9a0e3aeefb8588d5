package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const RoleAdmin = "ADMIN"

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// IsAdmin matches the role case-insensitively.
func (u User) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(u.Role), RoleAdmin)
}

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsAvailable   bool            `json:"is_available"`
	ImageURL      string          `json:"image_url"`
	Category      string          `json:"category"`
}

// CartItem is a read-only line of a user's cart.
type CartItem struct {
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}
