package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

type recordingSender struct {
	mu      sync.Mutex
	sent    []Confirmation
	err     error
	release chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, c Confirmation) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return s.err
}

func (s *recordingSender) Sent() []Confirmation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Confirmation(nil), s.sent...)
}

type recordingPublisher struct {
	key   string
	event any
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, event any) error {
	p.key = key
	p.event = event
	return p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrder() *domain.Order {
	order := &domain.Order{
		OrderNumber:   "ORD-20261016-000042",
		PaymentMethod: domain.PaymentMethodCOD,
		Shipping: domain.Shipping{
			Name: "A", Phone: "1", Address: "x", City: "y", State: "z", Pincode: "000001", Notes: "ring twice",
		},
		Items: []domain.OrderItem{
			{ProductID: 10, ProductName: "Sourdough", Quantity: 2, PriceAtPurchase: decimal.RequireFromString("20.00")},
			{ProductID: 11, ProductName: "Croissant", Quantity: 1, PriceAtPurchase: decimal.RequireFromString("15.00")},
		},
		CreatedAt: time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
	}
	order.ApplyTotals()
	return order
}

func TestNewConfirmation(t *testing.T) {
	c := NewConfirmation(testOrder(), domain.User{ID: 1, Email: "u1@example.com", FullName: "User One"})

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "u1@example.com", c.RecipientEmail)
	assert.Equal(t, "User One", c.CustomerName)
	assert.Equal(t, "ORD-20261016-000042", c.OrderNumber)
	assert.Equal(t, "2026-10-16T09:30:00Z", c.CreatedAt)
	assert.True(t, c.IsCOD)
	require.Len(t, c.Lines, 2)
	assert.Equal(t, Line{ProductName: "Sourdough", Quantity: 2, UnitPrice: "20.00", Subtotal: "40.00"}, c.Lines[0])
	assert.Equal(t, Totals{Subtotal: "55.00", Shipping: "0.00", Final: "55.00"}, c.Totals)
	assert.Equal(t, ShippingInfo{Address: "x, y, z, 000001", Phone: "1", Notes: "ring twice"}, c.Shipping)
}

func TestNewConfirmation_IsDetachedFromOrder(t *testing.T) {
	order := testOrder()
	c := NewConfirmation(order, domain.User{Email: "u1@example.com"})

	order.Items[0].ProductName = "changed"
	order.Shipping.Phone = "999"

	assert.Equal(t, "Sourdough", c.Lines[0].ProductName)
	assert.Equal(t, "1", c.Shipping.Phone)
	assert.Equal(t, "A", c.CustomerName)
}

func TestDispatcher_DeliversQueuedConfirmations(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, discardLogger(), WithWorkers(3))

	for i := 0; i < 5; i++ {
		assert.True(t, d.Dispatch(Confirmation{OrderNumber: "ORD"}))
	}
	d.Close()

	assert.Len(t, sender.Sent(), 5)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	d := NewDispatcher(sender, discardLogger(), WithWorkers(1), WithQueueSize(1))

	// The single worker may or may not have taken the first item yet, so at most two fit.
	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Dispatch(Confirmation{OrderNumber: "ORD"}) {
			accepted++
		}
	}
	assert.LessOrEqual(t, accepted, 2)
	assert.GreaterOrEqual(t, accepted, 1)

	close(sender.release)
	d.Close()
	assert.Len(t, sender.Sent(), accepted)
}

func TestDispatcher_SendErrorIsNotRetried(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d := NewDispatcher(sender, discardLogger())

	assert.True(t, d.Dispatch(Confirmation{OrderNumber: "ORD"}))
	d.Close()

	assert.Len(t, sender.Sent(), 1)
}

func TestDispatcher_DispatchAfterClose(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, discardLogger())
	d.Close()
	d.Close()

	assert.False(t, d.Dispatch(Confirmation{OrderNumber: "ORD"}))
}

func TestKafkaSender_PublishesByOrderNumber(t *testing.T) {
	pub := &recordingPublisher{}
	c := Confirmation{ID: "n1", OrderNumber: "ORD-1"}

	require.NoError(t, NewKafkaSender(pub).Send(context.Background(), c))
	assert.Equal(t, "ORD-1", pub.key)
	assert.Equal(t, c, pub.event)

	pub.err = errors.New("broker down")
	assert.Error(t, NewKafkaSender(pub).Send(context.Background(), c))
}

func TestHandler_Handle(t *testing.T) {
	t.Run("delivers decoded confirmation", func(t *testing.T) {
		sender := &recordingSender{}
		payload, err := json.Marshal(NewConfirmation(testOrder(), domain.User{Email: "u1@example.com"}))
		require.NoError(t, err)

		require.NoError(t, NewHandler(sender, discardLogger()).Handle(context.Background(), payload))

		sent := sender.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "ORD-20261016-000042", sent[0].OrderNumber)
		assert.Len(t, sent[0].Lines, 2)
	})

	t.Run("skips malformed payload", func(t *testing.T) {
		sender := &recordingSender{}
		assert.NoError(t, NewHandler(sender, discardLogger()).Handle(context.Background(), []byte("{")))
		assert.Empty(t, sender.Sent())
	})

	t.Run("swallows send errors", func(t *testing.T) {
		sender := &recordingSender{err: errors.New("smtp down")}
		assert.NoError(t, NewHandler(sender, discardLogger()).Handle(context.Background(), []byte(`{"order_number":"ORD-1"}`)))
	})
}
