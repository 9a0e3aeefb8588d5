package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
	"github.com/joao-fontenele/bakery-checkout/internal/gateway"
	"github.com/joao-fontenele/bakery-checkout/internal/notification"
	"github.com/joao-fontenele/bakery-checkout/internal/telemetry"
)

var tracer = otel.Tracer("orders")

const defaultFailureReason = "Payment cancelled by user"

// OrderTx is the write side of the repository, valid inside Store.WithTx.
type OrderTx interface {
	Insert(ctx context.Context, order *domain.Order) error
	LockByID(ctx context.Context, id int64) (*domain.Order, error)
	LockByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
}

// Store persists orders. Lookups return nil, nil when nothing matches.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type ProductLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

type CartStore interface {
	Items(ctx context.Context, userID int64) ([]domain.CartItem, error)
	Clear(ctx context.Context, userID int64) error
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

type Notifier interface {
	Dispatch(c notification.Confirmation) bool
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Caller is the authenticated user behind a request.
type Caller struct {
	User domain.User
}

func (c Caller) IsAdmin() bool {
	return c.User.IsAdmin()
}

func (c Caller) canAccess(order *domain.Order) bool {
	return c.IsAdmin() || order.UserID == c.User.ID
}

// OrderView pairs an order with its owner.
type OrderView struct {
	Order    *domain.Order
	Customer *domain.User
}

// Checkout is what the browser needs to open the gateway's payment widget.
type Checkout struct {
	GatewayOrderID string
	KeyID          string
	Amount         int64
	Currency       string
	OrderNumber    string
	OrderID        int64
	FinalAmount    decimal.Decimal
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
}

// Verification is the signed tuple the gateway hands back to the browser.
type Verification struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type Deps struct {
	Store    Store
	Users    UserLookup
	Products ProductLookup
	Carts    CartStore
	Gateway  PaymentGateway
	Notifier Notifier
	Events   EventPublisher
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

// Service is the only component that changes order and payment status. Every
// transition locks the order row, applies the change and commits before any side
// effect (cart clear, notification, event) runs.
type Service struct {
	store    Store
	builder  *Builder
	users    UserLookup
	carts    CartStore
	gateway  PaymentGateway
	notifier Notifier
	events   EventPublisher
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		builder:  NewBuilder(d.Store, d.Users, d.Products, d.Carts),
		users:    d.Users,
		carts:    d.Carts,
		gateway:  d.Gateway,
		notifier: d.Notifier,
		events:   d.Events,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.builder.now = func() time.Time { return s.now() }
	return s
}

// ResolveCaller loads the user named by the token subject.
func (s *Service) ResolveCaller(ctx context.Context, email string) (Caller, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return Caller{}, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return Caller{}, domain.NotFound("user_not_found", "User not found")
	}
	return Caller{User: *user}, nil
}

// PublicKeyID is the gateway key the browser checkout needs.
func (s *Service) PublicKeyID() string {
	return s.gateway.KeyID()
}

// PlaceCOD creates a confirmed pay-on-delivery order, clears the cart when the cart
// was the source and schedules the confirmation.
func (s *Service) PlaceCOD(ctx context.Context, req CheckoutRequest) (_ *OrderView, err error) {
	ctx, span := tracer.Start(ctx, "orders.PlaceCOD", trace.WithAttributes(attribute.Bool("checkout.buy_now", req.BuyNow != nil)))
	defer func() { endSpan(span, err) }()

	order, user, err := s.builder.Create(ctx, req, domain.PaymentMethodCOD)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.String("order.number", order.OrderNumber))

	s.metrics.OrderCreated(ctx, string(order.PaymentMethod))
	s.logger.InfoContext(ctx, "cod order placed", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", user.ID)
	s.publish(ctx, domain.EventOrderCreated, order)

	if req.BuyNow == nil {
		s.clearCart(ctx, user.ID, order)
	}
	s.notify(ctx, order, user)

	return &OrderView{Order: order, Customer: user}, nil
}

// StartGatewayCheckout creates a pending order and registers it with the gateway.
// A gateway failure leaves the order PENDING/PENDING.
func (s *Service) StartGatewayCheckout(ctx context.Context, req CheckoutRequest) (_ *Checkout, err error) {
	ctx, span := tracer.Start(ctx, "orders.StartGatewayCheckout", trace.WithAttributes(attribute.Bool("checkout.buy_now", req.BuyNow != nil)))
	defer func() { endSpan(span, err) }()

	order, user, err := s.builder.Create(ctx, req, domain.PaymentMethodGateway)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.String("order.number", order.OrderNumber))

	s.metrics.OrderCreated(ctx, string(order.PaymentMethod))
	s.logger.InfoContext(ctx, "gateway order created", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", user.ID)
	s.publish(ctx, domain.EventOrderCreated, order)

	if req.BuyNow == nil {
		s.clearCart(ctx, user.ID, order)
	}

	amount, err := domain.ToMinorUnits(order.FinalAmount)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   amount,
		Currency: gateway.CurrencyINR,
		Receipt:  order.OrderNumber,
		Notes: gateway.OrderNotes{
			OrderNumber:   order.OrderNumber,
			CustomerName:  order.Shipping.Name,
			CustomerPhone: order.Shipping.Phone,
		},
	})
	s.metrics.GatewayCall(ctx, time.Since(start), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create gateway order", "error", err, "order_id", order.ID, "order_number", order.OrderNumber)
		return nil, domain.Upstream("gateway_create_failed", "Failed to create payment order", err)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx OrderTx) error {
		locked, err := tx.LockByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.NotFound("order_not_found", "Order not found")
		}
		if locked.Status != domain.OrderStatusPending || locked.PaymentStatus == domain.PaymentStatusPaid {
			return domain.InvalidState("not_pending", fmt.Sprintf("Order is %s", locked.Status))
		}
		locked.Gateway.OrderID = gwOrder.ID
		locked.Touch(s.now())
		if err := tx.Update(ctx, locked); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attach gateway order: %w", err)
	}

	s.logger.InfoContext(ctx, "gateway order attached", "order_id", order.ID, "gateway_order_id", gwOrder.ID)
	s.publish(ctx, domain.EventOrderGatewayAttached, order)

	return &Checkout{
		GatewayOrderID: gwOrder.ID,
		KeyID:          s.gateway.KeyID(),
		Amount:         amount,
		Currency:       gateway.CurrencyINR,
		OrderNumber:    order.OrderNumber,
		OrderID:        order.ID,
		FinalAmount:    order.FinalAmount,
		CustomerName:   order.Shipping.Name,
		CustomerEmail:  user.Email,
		CustomerPhone:  order.Shipping.Phone,
	}, nil
}

// VerifyPayment checks the gateway signature and marks the order paid. Replays of
// a verified payment return the paid order unchanged. A bad signature moves a
// pending order to FAILED and returns SignatureInvalid.
func (s *Service) VerifyPayment(ctx context.Context, caller Caller, v Verification) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.VerifyPayment", trace.WithAttributes(attribute.String("gateway.order_id", v.GatewayOrderID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(v.GatewayOrderID) == "" || strings.TrimSpace(v.PaymentID) == "" || strings.TrimSpace(v.Signature) == "" {
		return nil, domain.Invalid("missing_field", "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}

	valid := s.gateway.VerifySignature(v.GatewayOrderID, v.PaymentID, v.Signature)

	var (
		order        *domain.Order
		paid, failed bool
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx OrderTx) error {
		locked, err := s.lockForCaller(ctx, tx, caller, v.GatewayOrderID)
		if err != nil {
			return err
		}
		order = locked

		if !valid {
			if locked.Status == domain.OrderStatusPending && locked.PaymentStatus == domain.PaymentStatusPending {
				if err := locked.MarkPaymentFailed("Invalid signature", s.now()); err != nil {
					return err
				}
				failed = true
				return tx.Update(ctx, locked)
			}
			return nil
		}

		switch {
		case locked.PaymentStatus == domain.PaymentStatusPaid:
			return nil
		case locked.Status == domain.OrderStatusCancelled:
			return domain.InvalidState("order_cancelled", "Order has been cancelled")
		case locked.Status != domain.OrderStatusPending:
			return domain.InvalidState("not_pending", fmt.Sprintf("Order is %s", locked.Status))
		}

		locked.MarkPaid(v.PaymentID, v.Signature, s.now())
		paid = true
		return tx.Update(ctx, locked)
	})
	if err != nil {
		s.metrics.PaymentVerified(ctx, "error")
		return nil, err
	}

	if !valid {
		s.metrics.PaymentVerified(ctx, "bad_signature")
		s.logger.WarnContext(ctx, "payment signature mismatch", "order_id", order.ID, "gateway_order_id", v.GatewayOrderID)
		if failed {
			s.publish(ctx, domain.EventOrderPaymentFailed, order)
		}
		return order, domain.SignatureInvalid("Payment verification failed")
	}

	if !paid {
		s.metrics.PaymentVerified(ctx, "replay")
		s.logger.InfoContext(ctx, "payment already verified", "order_id", order.ID, "gateway_order_id", v.GatewayOrderID)
		return order, nil
	}

	s.metrics.PaymentVerified(ctx, "paid")
	s.logger.InfoContext(ctx, "payment verified", "order_id", order.ID, "order_number", order.OrderNumber, "gateway_payment_id", v.PaymentID)
	s.publish(ctx, domain.EventOrderPaid, order)

	customer, err := s.customer(ctx, order.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load customer for confirmation", "error", err, "order_id", order.ID)
	} else {
		s.notify(ctx, order, customer)
	}

	return order, nil
}

// ReportFailure records a payment the customer abandoned or the gateway declined.
func (s *Service) ReportFailure(ctx context.Context, caller Caller, gatewayOrderID, reason string) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.ReportFailure", trace.WithAttributes(attribute.String("gateway.order_id", gatewayOrderID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(gatewayOrderID) == "" {
		return nil, domain.Invalid("missing_field", "razorpay_order_id is required")
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultFailureReason
	}

	var order *domain.Order
	err = s.store.WithTx(ctx, func(ctx context.Context, tx OrderTx) error {
		locked, err := s.lockForCaller(ctx, tx, caller, gatewayOrderID)
		if err != nil {
			return err
		}
		if err := locked.MarkPaymentFailed(reason, s.now()); err != nil {
			return err
		}
		order = locked
		return tx.Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment failure recorded", "order_id", order.ID, "gateway_order_id", gatewayOrderID, "reason", reason)
	s.publish(ctx, domain.EventOrderPaymentFailed, order)

	return order, nil
}

// Cancel applies a cancellation by the owner (or an admin). Paid orders cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, caller Caller, orderID int64) (_ *OrderView, err error) {
	ctx, span := tracer.Start(ctx, "orders.Cancel", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	var order *domain.Order
	err = s.store.WithTx(ctx, func(ctx context.Context, tx OrderTx) error {
		locked, err := tx.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.NotFound("order_not_found", "Order not found")
		}
		if !caller.canAccess(locked) {
			return domain.Forbidden("not_owner", "Unauthorized access to order")
		}
		if err := locked.Cancel(s.now()); err != nil {
			return err
		}
		order = locked
		return tx.Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order cancelled", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", caller.User.ID)
	s.publish(ctx, domain.EventOrderCancelled, order)

	return s.view(ctx, order)
}

// AdminUpdate moves status and/or payment status. Either may be empty.
func (s *Service) AdminUpdate(ctx context.Context, caller Caller, orderID int64, status, paymentStatus string) (_ *OrderView, err error) {
	ctx, span := tracer.Start(ctx, "orders.AdminUpdate", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	if !caller.IsAdmin() {
		return nil, domain.Forbidden("admin_only", "Admin access required")
	}

	var (
		newStatus  *domain.OrderStatus
		newPayment *domain.PaymentStatus
	)
	if strings.TrimSpace(status) != "" {
		st, err := domain.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		newStatus = &st
	}
	if strings.TrimSpace(paymentStatus) != "" {
		ps, err := domain.ParsePaymentStatus(paymentStatus)
		if err != nil {
			return nil, err
		}
		newPayment = &ps
	}

	var order *domain.Order
	err = s.store.WithTx(ctx, func(ctx context.Context, tx OrderTx) error {
		locked, err := tx.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.NotFound("order_not_found", "Order not found")
		}
		if err := locked.ApplyAdminUpdate(newStatus, newPayment, s.now()); err != nil {
			return err
		}
		order = locked
		return tx.Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order status updated", "order_id", order.ID, "status", order.Status, "payment_status", order.PaymentStatus)
	s.publish(ctx, domain.EventOrderStatusUpdated, order)

	return s.view(ctx, order)
}

func (s *Service) Get(ctx context.Context, caller Caller, orderID int64) (*OrderView, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return s.authorizedView(ctx, caller, order)
}

func (s *Service) GetByNumber(ctx context.Context, caller Caller, orderNumber string) (*OrderView, error) {
	order, err := s.store.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderNumber, err)
	}
	return s.authorizedView(ctx, caller, order)
}

// List returns every order for admins and the caller's own orders otherwise, newest first.
func (s *Service) List(ctx context.Context, caller Caller) ([]OrderView, error) {
	var (
		orders []domain.Order
		err    error
	)
	if caller.IsAdmin() {
		orders, err = s.store.List(ctx)
	} else {
		orders, err = s.store.ListByUser(ctx, caller.User.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	customers := map[int64]*domain.User{caller.User.ID: &caller.User}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		order := &orders[i]
		customer, ok := customers[order.UserID]
		if !ok {
			customer, err = s.customer(ctx, order.UserID)
			if err != nil {
				return nil, err
			}
			customers[order.UserID] = customer
		}
		views = append(views, OrderView{Order: order, Customer: customer})
	}

	return views, nil
}

func (s *Service) authorizedView(ctx context.Context, caller Caller, order *domain.Order) (*OrderView, error) {
	if order == nil {
		return nil, domain.NotFound("order_not_found", "Order not found")
	}
	if !caller.canAccess(order) {
		return nil, domain.Forbidden("not_owner", "Unauthorized access to order")
	}
	if order.UserID == caller.User.ID {
		return &OrderView{Order: order, Customer: &caller.User}, nil
	}
	return s.view(ctx, order)
}

func (s *Service) lockForCaller(ctx context.Context, tx OrderTx, caller Caller, gatewayOrderID string) (*domain.Order, error) {
	order, err := tx.LockByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.NotFound("order_not_found", "Order not found for razorpay_order_id: "+gatewayOrderID)
	}
	if !caller.canAccess(order) {
		return nil, domain.Forbidden("not_owner", "Unauthorized access to order")
	}
	return order, nil
}

func (s *Service) view(ctx context.Context, order *domain.Order) (*OrderView, error) {
	customer, err := s.customer(ctx, order.UserID)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: order, Customer: customer}, nil
}

func (s *Service) customer(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	if user == nil {
		return &domain.User{ID: userID}, nil
	}
	return user, nil
}

// clearCart runs after the order commit. Failure leaves a stale cart, never a missing order.
func (s *Service) clearCart(ctx context.Context, userID int64, order *domain.Order) {
	if err := s.carts.Clear(ctx, userID); err != nil {
		s.metrics.CartClearFailed(ctx)
		s.logger.ErrorContext(ctx, "failed to clear cart", "error", err, "user_id", userID, "order_id", order.ID)
	}
}

func (s *Service) notify(ctx context.Context, order *domain.Order, customer *domain.User) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Dispatch(notification.NewConfirmation(order, *customer)) {
		s.logger.WarnContext(ctx, "confirmation not queued", "order_id", order.ID, "order_number", order.OrderNumber)
	}
}

func (s *Service) publish(ctx context.Context, eventType domain.OrderEventType, order *domain.Order) {
	s.metrics.OrderTransition(ctx, string(eventType))
	if s.events == nil {
		return
	}

	event := domain.OrderEvent{
		EventID:       uuid.NewString(),
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		FinalAmount:   order.FinalAmount,
		OccurredAt:    s.now(),
	}
	if err := s.events.Publish(ctx, order.OrderNumber, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order event", "error", err, "order_id", order.ID, "event_type", eventType)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if domain.KindOf(err) == domain.KindInternal || domain.KindOf(err) == domain.KindUpstream {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
