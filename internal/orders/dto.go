package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
)

// Money renders an amount as a JSON number with two fractional digits.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

type shippingRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Notes   string `json:"notes"`
}

func (r shippingRequest) toDomain() domain.Shipping {
	return domain.Shipping{
		Name:    r.Name,
		Phone:   r.Phone,
		Address: r.Address,
		City:    r.City,
		State:   r.State,
		Pincode: r.Pincode,
		Notes:   r.Notes,
	}
}

type orderItemDTO struct {
	OrderItemID     int64  `json:"orderItemId"`
	ProductID       int64  `json:"productId"`
	ProductName     string `json:"productName"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase Money  `json:"priceAtPurchase"`
	Subtotal        Money  `json:"subtotal"`
	ProductImageURL string `json:"productImageUrl"`
}

type orderDTO struct {
	OrderID         int64          `json:"orderId"`
	OrderNumber     string         `json:"orderNumber"`
	TotalAmount     Money          `json:"totalAmount"`
	DiscountAmount  Money          `json:"discountAmount"`
	ShippingFee     Money          `json:"shippingFee"`
	FinalAmount     Money          `json:"finalAmount"`
	Status          string         `json:"status"`
	PaymentStatus   string         `json:"paymentStatus"`
	PaymentMethod   string         `json:"paymentMethod"`
	ShippingName    string         `json:"shippingName"`
	ShippingPhone   string         `json:"shippingPhone"`
	ShippingAddress string         `json:"shippingAddress"`
	ShippingCity    string         `json:"shippingCity"`
	ShippingState   string         `json:"shippingState"`
	ShippingPincode string         `json:"shippingPincode"`
	OrderNotes      string         `json:"orderNotes"`
	PaymentNote     string         `json:"paymentNote,omitempty"`
	OrderItems      []orderItemDTO `json:"orderItems"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	PaidAt          *time.Time     `json:"paidAt"`
	DeliveredAt     *time.Time     `json:"deliveredAt"`
	CustomerEmail   string         `json:"customerEmail,omitempty"`
	CustomerName    string         `json:"customerName,omitempty"`
}

func newOrderDTO(v OrderView) orderDTO {
	o := v.Order
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDTO{
			OrderItemID:     item.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			PriceAtPurchase: Money(item.PriceAtPurchase),
			Subtotal:        Money(item.Subtotal),
			ProductImageURL: item.ProductImageURL,
		})
	}

	dto := orderDTO{
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		TotalAmount:     Money(o.TotalAmount),
		DiscountAmount:  Money(o.DiscountAmount),
		ShippingFee:     Money(o.ShippingFee),
		FinalAmount:     Money(o.FinalAmount),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		ShippingName:    o.Shipping.Name,
		ShippingPhone:   o.Shipping.Phone,
		ShippingAddress: o.Shipping.Address,
		ShippingCity:    o.Shipping.City,
		ShippingState:   o.Shipping.State,
		ShippingPincode: o.Shipping.Pincode,
		OrderNotes:      o.Shipping.Notes,
		PaymentNote:     o.PaymentNote,
		OrderItems:      items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		PaidAt:          o.PaidAt,
		DeliveredAt:     o.DeliveredAt,
	}
	if v.Customer != nil {
		dto.CustomerEmail = v.Customer.Email
		dto.CustomerName = v.Customer.FullName
	}
	return dto
}

type placedResponse struct {
	Message     string   `json:"message"`
	OrderNumber string   `json:"orderNumber"`
	OrderID     int64    `json:"orderId"`
	Order       orderDTO `json:"order"`
}

type cancelResponse struct {
	Message string   `json:"message"`
	Order   orderDTO `json:"order"`
}

type updateStatusRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

type checkoutResponse struct {
	RazorpayOrderID string `json:"razorpay_order_id"`
	RazorpayKeyID   string `json:"razorpay_key_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	OrderNumber     string `json:"order_number"`
	OrderID         int64  `json:"order_id"`
	FinalAmount     Money  `json:"final_amount"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
}

func newCheckoutResponse(c *Checkout) checkoutResponse {
	return checkoutResponse{
		RazorpayOrderID: c.GatewayOrderID,
		RazorpayKeyID:   c.KeyID,
		Amount:          c.Amount,
		Currency:        c.Currency,
		OrderNumber:     c.OrderNumber,
		OrderID:         c.OrderID,
		FinalAmount:     Money(c.FinalAmount),
		CustomerName:    c.CustomerName,
		CustomerEmail:   c.CustomerEmail,
		CustomerPhone:   c.CustomerPhone,
	}
}

type verifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type paymentResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	OrderNumber   string `json:"orderNumber,omitempty"`
	OrderID       int64  `json:"orderId,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
	OrderStatus   string `json:"orderStatus,omitempty"`
}

type failureRequest struct {
	RazorpayOrderID string `json:"razorpay_order_id"`
	Reason          string `json:"reason"`
}

type failureResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	OrderNumber string `json:"order_number"`
	OrderID     int64  `json:"order_id"`
}

type configResponse struct {
	RazorpayKeyID string `json:"razorpay_key_id"`
}
