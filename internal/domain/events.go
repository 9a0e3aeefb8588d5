package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	EventOrderCreated         OrderEventType = "order.created"
	EventOrderGatewayAttached OrderEventType = "order.gateway_attached"
	EventOrderPaid            OrderEventType = "order.paid"
	EventOrderPaymentFailed   OrderEventType = "order.payment_failed"
	EventOrderCancelled       OrderEventType = "order.cancelled"
	EventOrderStatusUpdated   OrderEventType = "order.status_updated"
)

type OrderEvent struct {
	EventID       string          `json:"event_id"`
	Type          OrderEventType  `json:"type"`
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        int64           `json:"user_id"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
