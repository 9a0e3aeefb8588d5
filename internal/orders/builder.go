package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

// BuyNow selects a single product instead of the cart.
type BuyNow struct {
	ProductID int64
	Quantity  int
}

// CheckoutRequest is the builder input. A nil BuyNow means the caller's cart.
type CheckoutRequest struct {
	Email    string
	BuyNow   *BuyNow
	Shipping domain.Shipping
}

// Builder turns a caller, a line source and shipping details into a persisted order.
type Builder struct {
	store    Store
	users    UserLookup
	products ProductLookup
	carts    CartStore
	now      func() time.Time
}

func NewBuilder(store Store, users UserLookup, products ProductLookup, carts CartStore) *Builder {
	return &Builder{
		store:    store,
		users:    users,
		products: products,
		carts:    carts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create validates in order: user, line source, shipping. Nothing is written when any
// check fails. The returned order carries its id, number and line ids.
func (b *Builder) Create(ctx context.Context, req CheckoutRequest, method domain.PaymentMethod) (*domain.Order, *domain.User, error) {
	user, err := b.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, nil, domain.NotFound("user_not_found", "User not found")
	}

	items, err := b.lines(ctx, user.ID, req.BuyNow)
	if err != nil {
		return nil, nil, err
	}

	shipping := normalizeShipping(req.Shipping)
	if err := shipping.Validate(); err != nil {
		return nil, nil, err
	}

	now := b.now()
	order := &domain.Order{
		UserID:        user.ID,
		PaymentMethod: method,
		PaymentStatus: domain.PaymentStatusPending,
		Shipping:      shipping,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	switch method {
	case domain.PaymentMethodCOD:
		order.Status = domain.OrderStatusConfirmed
	case domain.PaymentMethodGateway:
		order.Status = domain.OrderStatusPending
	default:
		return nil, nil, domain.Invalid("invalid_payment_method", fmt.Sprintf("Unsupported payment method: %s", method))
	}
	order.ApplyTotals()
	if method == domain.PaymentMethodGateway {
		if _, err := domain.ToMinorUnits(order.FinalAmount); err != nil {
			return nil, nil, err
		}
	}

	if err := b.store.WithTx(ctx, func(ctx context.Context, tx OrderTx) error {
		return tx.Insert(ctx, order)
	}); err != nil {
		return nil, nil, fmt.Errorf("insert order: %w", err)
	}

	return order, user, nil
}

func (b *Builder) lines(ctx context.Context, userID int64, buyNow *BuyNow) ([]domain.OrderItem, error) {
	if buyNow != nil {
		return b.buyNowLine(ctx, *buyNow)
	}

	cartItems, err := b.carts.Items(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	if len(cartItems) == 0 {
		return nil, domain.InvalidState("empty_cart", "Cart is empty")
	}

	items := make([]domain.OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		if ci.Quantity < 1 {
			return nil, domain.Invalid("invalid_quantity", fmt.Sprintf("Invalid quantity for %s", ci.Product.Name))
		}
		items = append(items, snapshotLine(ci.Product, ci.Quantity))
	}
	return items, nil
}

func (b *Builder) buyNowLine(ctx context.Context, buyNow BuyNow) ([]domain.OrderItem, error) {
	if buyNow.Quantity < 1 {
		return nil, domain.Invalid("invalid_quantity", "Quantity must be at least 1")
	}

	product, err := b.products.GetByID(ctx, buyNow.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", buyNow.ProductID, err)
	}
	if product == nil {
		return nil, domain.NotFound("product_not_found", "Product not found")
	}
	if !product.IsAvailable {
		return nil, domain.InvalidState("unavailable", "Product is not available")
	}
	if product.StockQuantity < buyNow.Quantity {
		return nil, domain.InvalidState("insufficient_stock",
			fmt.Sprintf("Insufficient stock. Only %d items available.", product.StockQuantity))
	}

	return []domain.OrderItem{snapshotLine(*product, buyNow.Quantity)}, nil
}

// snapshotLine freezes the product's current name, price and image onto the line.
func snapshotLine(p domain.Product, quantity int) domain.OrderItem {
	return domain.OrderItem{
		ProductID:       p.ID,
		ProductName:     p.Name,
		Quantity:        quantity,
		PriceAtPurchase: p.Price,
		Subtotal:        domain.LineSubtotal(p.Price, quantity),
		ProductImageURL: p.ImageURL,
	}
}

func normalizeShipping(s domain.Shipping) domain.Shipping {
	return domain.Shipping{
		Name:    strings.TrimSpace(s.Name),
		Phone:   strings.TrimSpace(s.Phone),
		Address: strings.TrimSpace(s.Address),
		City:    strings.TrimSpace(s.City),
		State:   strings.TrimSpace(s.State),
		Pincode: strings.TrimSpace(s.Pincode),
		Notes:   strings.TrimSpace(s.Notes),
	}
}
