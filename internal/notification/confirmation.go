package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

// Line is one rendered order row.
type Line struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type Totals struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Final    string `json:"final"`
}

type ShippingInfo struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes,omitempty"`
}

// Confirmation is a self-contained copy of everything a confirmation message needs.
// It holds no references back into the order or the database.
type Confirmation struct {
	ID             string       `json:"id"`
	RecipientEmail string       `json:"recipient_email"`
	CustomerName   string       `json:"customer_name"`
	OrderNumber    string       `json:"order_number"`
	CreatedAt      string       `json:"created_at"`
	IsCOD          bool         `json:"is_cod"`
	Lines          []Line       `json:"lines"`
	Totals         Totals       `json:"totals"`
	Shipping       ShippingInfo `json:"shipping"`
}

// NewConfirmation copies order and customer fields into a Confirmation.
func NewConfirmation(order *domain.Order, customer domain.User) Confirmation {
	lines := make([]Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, Line{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.PriceAtPurchase.StringFixed(2),
			Subtotal:    item.Subtotal.StringFixed(2),
		})
	}

	address := strings.Join(nonBlank(
		order.Shipping.Address,
		order.Shipping.City,
		order.Shipping.State,
		order.Shipping.Pincode,
	), ", ")

	name := customer.FullName
	if name == "" {
		name = order.Shipping.Name
	}

	return Confirmation{
		ID:             uuid.NewString(),
		RecipientEmail: customer.Email,
		CustomerName:   name,
		OrderNumber:    order.OrderNumber,
		CreatedAt:      order.CreatedAt.UTC().Format(time.RFC3339),
		IsCOD:          order.PaymentMethod == domain.PaymentMethodCOD,
		Lines:          lines,
		Totals: Totals{
			Subtotal: order.TotalAmount.StringFixed(2),
			Shipping: order.ShippingFee.StringFixed(2),
			Final:    order.FinalAmount.StringFixed(2),
		},
		Shipping: ShippingInfo{
			Address: address,
			Phone:   order.Shipping.Phone,
			Notes:   order.Shipping.Notes,
		},
	}
}

func nonBlank(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
