package email

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"

	"github.com/joao-fontenele/bakery-checkout/internal/notification"
)

// Subject differs for pay-on-delivery and prepaid orders.
func Subject(c notification.Confirmation) string {
	if c.IsCOD {
		return fmt.Sprintf("Order Confirmed! #%s – Pay on Delivery", c.OrderNumber)
	}
	return fmt.Sprintf("Payment Successful! Order #%s Confirmed", c.OrderNumber)
}

func encodeHeader(s string) string {
	return mime.QEncoding.Encode("UTF-8", s)
}

var confirmationTemplate = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"shippingLabel": func(amount string) string {
		if amount == "0.00" || amount == "0" {
			return "FREE"
		}
		return "₹" + amount
	},
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Georgia, serif; color: #3e2723; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="color: #6d4c41;">{{if .IsCOD}}Your order is confirmed{{else}}Thank you for your payment{{end}}</h1>
	<p>Hi {{.CustomerName}},</p>
	<p>Order <strong>#{{.OrderNumber}}</strong> placed on {{.CreatedAt}}.</p>
	{{if .IsCOD}}<p>Please keep <strong>₹{{.Totals.Final}}</strong> ready to pay on delivery.</p>{{end}}
	<table style="width: 100%; border-collapse: collapse;">
		<thead>
			<tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th><th align="right">Subtotal</th></tr>
		</thead>
		<tbody>
		{{range .Lines}}
			<tr><td>{{.ProductName}}</td><td align="center">{{.Quantity}}</td><td align="right">₹{{.UnitPrice}}</td><td align="right">₹{{.Subtotal}}</td></tr>
		{{end}}
		</tbody>
	</table>
	<p>Subtotal: ₹{{.Totals.Subtotal}}<br>
	Shipping: {{shippingLabel .Totals.Shipping}}<br>
	<strong>Total: ₹{{.Totals.Final}}</strong></p>
	<h2 style="font-size: 16px;">Delivering to</h2>
	<p>{{.Shipping.Address}}<br>Phone: {{.Shipping.Phone}}</p>
	{{with .Shipping.Notes}}<p>Notes: {{.}}</p>{{end}}
</body>
</html>
`))

// RenderConfirmation renders the HTML body; product names and notes are escaped.
func RenderConfirmation(c notification.Confirmation) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("render confirmation %s: %w", c.OrderNumber, err)
	}
	return buf.String(), nil
}
