package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func pendingGatewayOrder() *Order {
	o := &Order{
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		PaymentMethod: PaymentMethodGateway,
		Items:         []OrderItem{{ProductID: 10, PriceAtPurchase: d("20.00"), Quantity: 1}},
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}
	o.ApplyTotals()
	return o
}

func TestMarkPaid_KeepsFirstPaidAt(t *testing.T) {
	o := pendingGatewayOrder()

	o.MarkPaid("pay_1", "sig", t0)
	o.MarkPaid("pay_1", "sig", t1)

	assert.Equal(t, OrderStatusConfirmed, o.Status)
	assert.Equal(t, PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, t0, *o.PaidAt)
	assert.Equal(t, t1, o.UpdatedAt)
	assert.NoError(t, o.CheckInvariants())
}

func TestMarkPaymentFailed(t *testing.T) {
	o := pendingGatewayOrder()
	require.NoError(t, o.MarkPaymentFailed("card declined", t1))
	assert.Equal(t, PaymentStatusFailed, o.PaymentStatus)
	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Equal(t, "Payment failed: card declined", o.PaymentNote)

	paid := pendingGatewayOrder()
	paid.MarkPaid("pay_1", "sig", t0)
	assert.Equal(t, "already_paid", CodeOf(paid.MarkPaymentFailed("late", t1)))

	cancelled := pendingGatewayOrder()
	require.NoError(t, cancelled.Cancel(t0))
	assert.Equal(t, "not_pending", CodeOf(cancelled.MarkPaymentFailed("late", t1)))
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(o *Order)
		wantCode string
	}{
		{"pending", func(o *Order) {}, ""},
		{"payment failed", func(o *Order) { _ = o.MarkPaymentFailed("x", t0) }, ""},
		{"paid", func(o *Order) { o.MarkPaid("pay_1", "sig", t0) }, "cannot_cancel_paid"},
		{"cancelled", func(o *Order) { o.Status = OrderStatusCancelled }, "already_cancelled"},
		{"delivered", func(o *Order) { o.Status = OrderStatusDelivered; o.DeliveredAt = &t0 }, "already_delivered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := pendingGatewayOrder()
			tt.prepare(o)
			before := *o

			err := o.Cancel(t1)

			if tt.wantCode != "" {
				assert.Equal(t, KindInvalidState, KindOf(err))
				assert.Equal(t, tt.wantCode, CodeOf(err))
				assert.Equal(t, before.Status, o.Status)
				assert.Equal(t, before.UpdatedAt, o.UpdatedAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, OrderStatusCancelled, o.Status)
			assert.Equal(t, t1, o.UpdatedAt)
		})
	}
}

func TestApplyAdminUpdate(t *testing.T) {
	delivered, paid := OrderStatusDelivered, PaymentStatusPaid
	confirmed, pending := OrderStatusConfirmed, PaymentStatusPending

	o := pendingGatewayOrder()
	require.NoError(t, o.ApplyAdminUpdate(&delivered, &paid, t0))
	require.NoError(t, o.ApplyAdminUpdate(&delivered, &paid, t1))
	assert.Equal(t, t0, *o.DeliveredAt)
	assert.Equal(t, t0, *o.PaidAt)
	assert.Equal(t, t1, o.UpdatedAt)
	assert.NoError(t, o.CheckInvariants())

	assert.Equal(t, "already_delivered", CodeOf(o.ApplyAdminUpdate(&confirmed, nil, t1)))
	assert.Equal(t, "already_paid", CodeOf(o.ApplyAdminUpdate(nil, &pending, t1)))
	assert.Equal(t, "empty_update", CodeOf(o.ApplyAdminUpdate(nil, nil, t1)))
}

func TestParseStatuses(t *testing.T) {
	st, err := ParseOrderStatus(" delivered ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivered, st)

	_, err = ParseOrderStatus("SHIPPED")
	assert.Equal(t, "invalid_status", CodeOf(err))

	ps, err := ParsePaymentStatus("Paid")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, ps)

	_, err = ParsePaymentStatus("REFUNDED")
	assert.Equal(t, "invalid_payment_status", CodeOf(err))
}

func TestShippingValidate(t *testing.T) {
	valid := Shipping{Name: "A", Phone: "1", Address: "x", City: "y", State: "z", Pincode: "000001"}
	assert.NoError(t, valid.Validate())

	blank := valid
	blank.City = "   "
	err := blank.Validate()
	assert.Equal(t, KindInvalid, KindOf(err))
	assert.Contains(t, err.Error(), "Shipping city is required")

	noNotes := valid
	noNotes.Notes = ""
	assert.NoError(t, noNotes.Validate())
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Order)
	}{
		{"subtotal drift", func(o *Order) { o.Items[0].Subtotal = d("1.00") }},
		{"total drift", func(o *Order) { o.TotalAmount = d("1.00") }},
		{"final drift", func(o *Order) { o.FinalAmount = d("1.00") }},
		{"paid without timestamp", func(o *Order) { o.PaymentStatus = PaymentStatusPaid }},
		{"delivered without timestamp", func(o *Order) { o.Status = OrderStatusDelivered }},
		{"cod with gateway id", func(o *Order) { o.PaymentMethod = PaymentMethodCOD; o.Gateway.OrderID = "ord_1" }},
	}

	assert.NoError(t, pendingGatewayOrder().CheckInvariants())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := pendingGatewayOrder()
			tt.mutate(o)
			assert.Error(t, o.CheckInvariants())
		})
	}
}

func TestFormatOrderNumber(t *testing.T) {
	assert.Equal(t, "ORD-20260309-000042", FormatOrderNumber(t0, 42))
	assert.Equal(t, "ORD-20260309-1234567", FormatOrderNumber(t0, 1234567))
	assert.Equal(t, fmt.Sprintf("ORD-%s-000001", t0.Format("20060102")), FormatOrderNumber(t0.In(time.FixedZone("IST", 5*3600+1800)), 1))
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFound("order_not_found", "Order not found"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "order_not_found", CodeOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("plain")))
}
