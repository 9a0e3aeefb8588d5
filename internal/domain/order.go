package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "COD"
	PaymentMethodGateway PaymentMethod = "GATEWAY"
)

// ParseOrderStatus accepts any casing of a known status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusDelivered:
		return st, nil
	}
	return "", Invalid("invalid_status", fmt.Sprintf("Invalid order status: %s", s))
}

// ParsePaymentStatus accepts any casing of a known payment status.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return st, nil
	}
	return "", Invalid("invalid_payment_status", fmt.Sprintf("Invalid payment status: %s", s))
}

// Shipping is frozen onto the order at creation time.
type Shipping struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Notes   string `json:"notes,omitempty"`
}

// Validate reports the first blank required field.
func (s Shipping) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"name", s.Name},
		{"phone", s.Phone},
		{"address", s.Address},
		{"city", s.City},
		{"state", s.State},
		{"pincode", s.Pincode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return Invalid("blank_shipping_field", fmt.Sprintf("Shipping %s is required", f.name))
		}
	}
	return nil
}

type GatewayRef struct {
	OrderID   string `json:"gateway_order_id,omitempty"`
	PaymentID string `json:"gateway_payment_id,omitempty"`
	Signature string `json:"-"`
}

// OrderItem is a priced line whose product fields are snapshots.
type OrderItem struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ProductImageURL string          `json:"product_image_url"`
}

// Order is the aggregate root; Items are owned by it and never stored on their own.
type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         int64           `json:"user_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Status         OrderStatus     `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Shipping       Shipping        `json:"shipping"`
	Gateway        GatewayRef      `json:"gateway"`
	PaymentNote    string          `json:"payment_note,omitempty"`
	Items          []OrderItem     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
}

// IsTerminalForUser reports whether the owner can no longer change the order.
func (o *Order) IsTerminalForUser() bool {
	return o.PaymentStatus == PaymentStatusPaid ||
		o.Status == OrderStatusDelivered ||
		o.Status == OrderStatusCancelled
}

// Touch stamps UpdatedAt.
func (o *Order) Touch(now time.Time) {
	o.UpdatedAt = now
}

// MarkPaid records a captured payment. paidAt is only set the first time.
func (o *Order) MarkPaid(paymentID, signature string, now time.Time) {
	o.Gateway.PaymentID = paymentID
	o.Gateway.Signature = signature
	o.PaymentStatus = PaymentStatusPaid
	o.Status = OrderStatusConfirmed
	if o.PaidAt == nil {
		o.PaidAt = &now
	}
	o.Touch(now)
}

// MarkPaymentFailed moves a pending gateway order to FAILED and records why.
func (o *Order) MarkPaymentFailed(reason string, now time.Time) error {
	if o.PaymentStatus == PaymentStatusPaid {
		return InvalidState("already_paid", "Order is already paid")
	}
	if o.Status != OrderStatusPending {
		return InvalidState("not_pending", fmt.Sprintf("Order is %s", o.Status))
	}
	o.PaymentStatus = PaymentStatusFailed
	o.PaymentNote = "Payment failed: " + reason
	o.Touch(now)
	return nil
}

// Cancel applies a user cancellation.
func (o *Order) Cancel(now time.Time) error {
	switch {
	case o.PaymentStatus == PaymentStatusPaid:
		return InvalidState("cannot_cancel_paid", "Cannot cancel paid order. Please contact support for refund.")
	case o.Status == OrderStatusCancelled:
		return InvalidState("already_cancelled", "Order is already cancelled")
	case o.Status == OrderStatusDelivered:
		return InvalidState("already_delivered", "Cannot cancel a delivered order")
	}
	o.Status = OrderStatusCancelled
	o.Touch(now)
	return nil
}

// ApplyAdminUpdate moves status and/or payment status; timestamps are set once.
func (o *Order) ApplyAdminUpdate(status *OrderStatus, payment *PaymentStatus, now time.Time) error {
	if status == nil && payment == nil {
		return Invalid("empty_update", "status or paymentStatus is required")
	}
	if status != nil && o.Status == OrderStatusDelivered && *status != OrderStatusDelivered {
		return InvalidState("already_delivered", "Delivered orders cannot change status")
	}
	if payment != nil && o.PaymentStatus == PaymentStatusPaid && *payment != PaymentStatusPaid {
		return InvalidState("already_paid", "Paid orders cannot return to "+string(*payment))
	}

	if status != nil {
		o.Status = *status
		if *status == OrderStatusDelivered && o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	}
	if payment != nil {
		o.PaymentStatus = *payment
		if *payment == PaymentStatusPaid && o.PaidAt == nil {
			o.PaidAt = &now
		}
	}
	o.Touch(now)
	return nil
}

// CheckInvariants verifies the money and lifecycle rules every committed order must satisfy.
func (o *Order) CheckInvariants() error {
	total := decimal.Zero
	for _, item := range o.Items {
		if want := LineSubtotal(item.PriceAtPurchase, item.Quantity); !item.Subtotal.Equal(want) {
			return fmt.Errorf("item %d: subtotal %s != %s", item.ProductID, item.Subtotal, want)
		}
		total = total.Add(item.Subtotal)
	}
	if !o.TotalAmount.Equal(total) {
		return fmt.Errorf("total %s != sum of lines %s", o.TotalAmount, total)
	}
	if want := o.TotalAmount.Sub(o.DiscountAmount).Add(o.ShippingFee); !o.FinalAmount.Equal(want) {
		return fmt.Errorf("final %s != %s", o.FinalAmount, want)
	}
	if (o.PaidAt != nil) != (o.PaymentStatus == PaymentStatusPaid) {
		return fmt.Errorf("paid_at set=%t with payment status %s", o.PaidAt != nil, o.PaymentStatus)
	}
	if (o.DeliveredAt != nil) != (o.Status == OrderStatusDelivered) {
		return fmt.Errorf("delivered_at set=%t with status %s", o.DeliveredAt != nil, o.Status)
	}
	if o.PaymentMethod == PaymentMethodCOD && o.Gateway.OrderID != "" {
		return fmt.Errorf("cod order carries gateway order id %s", o.Gateway.OrderID)
	}
	return nil
}

// FormatOrderNumber renders ORD-YYYYMMDD-NNNNNN from a monotonic sequence value.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%06d", day.UTC().Format("20060102"), seq)
}
