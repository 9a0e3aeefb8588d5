package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bakery-checkout/internal/notification"
)

func confirmation(cod bool) notification.Confirmation {
	return notification.Confirmation{
		ID:             "n1",
		RecipientEmail: "u1@example.com",
		CustomerName:   "User One",
		OrderNumber:    "ORD-20261016-000001",
		CreatedAt:      "2026-10-16T09:30:00Z",
		IsCOD:          cod,
		Lines: []notification.Line{
			{ProductName: "Pain <au> Chocolat", Quantity: 2, UnitPrice: "20.00", Subtotal: "40.00"},
		},
		Totals:   notification.Totals{Subtotal: "40.00", Shipping: "5.00", Final: "45.00"},
		Shipping: notification.ShippingInfo{Address: "x, y, z, 000001", Phone: "1"},
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "Order Confirmed! #ORD-20261016-000001 – Pay on Delivery", Subject(confirmation(true)))
	assert.Equal(t, "Payment Successful! Order #ORD-20261016-000001 Confirmed", Subject(confirmation(false)))
}

func TestRenderConfirmation(t *testing.T) {
	body, err := RenderConfirmation(confirmation(true))
	require.NoError(t, err)

	assert.Contains(t, body, "ORD-20261016-000001")
	assert.Contains(t, body, "Pain &lt;au&gt; Chocolat")
	assert.Contains(t, body, "Shipping: ₹5.00")
	assert.Contains(t, body, "Total: ₹45.00")
	assert.Contains(t, body, "pay on delivery")
	assert.NotContains(t, body, "Notes:")

	c := confirmation(false)
	c.Totals.Shipping = "0.00"
	c.Shipping.Notes = "leave at door"
	body, err = RenderConfirmation(c)
	require.NoError(t, err)
	assert.Contains(t, body, "Shipping: FREE")
	assert.Contains(t, body, "Notes: leave at door")
	assert.NotContains(t, body, "pay on delivery")
}

func TestMailer_Send(t *testing.T) {
	var (
		gotAddr string
		gotAuth smtp.Auth
		gotTo   []string
		gotMsg  string
	)
	mailer := NewMailer(Config{Host: "smtp.local", Port: "587", Username: "bot", Password: "pw", From: "shop@bakery.test"},
		slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithSendFunc(func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotAuth, gotTo, gotMsg = addr, auth, to, string(msg)
			return nil
		})

	require.NoError(t, mailer.Send(context.Background(), confirmation(false)))

	assert.Equal(t, "smtp.local:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"u1@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: shop@bakery.test\r\nTo: u1@example.com\r\n"))
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=UTF-8")
}

func TestMailer_SendErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("no recipient", func(t *testing.T) {
		c := confirmation(true)
		c.RecipientEmail = ""
		assert.Error(t, NewMailer(Config{Host: "h", Port: "25"}, logger).Send(context.Background(), c))
	})

	t.Run("transport failure", func(t *testing.T) {
		mailer := NewMailer(Config{Host: "h", Port: "25"}, logger).
			WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") })
		err := mailer.Send(context.Background(), confirmation(true))
		assert.ErrorContains(t, err, "refused")
	})
}
