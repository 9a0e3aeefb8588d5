package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bakery-checkout/internal/domain"
	"github.com/joao-fontenele/bakery-checkout/internal/gateway"
	"github.com/joao-fontenele/bakery-checkout/internal/notification"
)

// memStore mimics the Postgres repository: committed state lives in orders, and
// LockBy* holds a per-order mutex until the transaction ends.
type memStore struct {
	mu        sync.Mutex
	orders    map[int64]*domain.Order
	locks     map[int64]*sync.Mutex
	nextID    int64
	seq       int64
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		orders: map[int64]*domain.Order{},
		locks:  map[int64]*sync.Mutex{},
	}
}

type memTx struct {
	store  *memStore
	held   map[int64]*sync.Mutex
	staged map[int64]*domain.Order
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error {
	tx := &memTx{store: s, held: map[int64]*sync.Mutex{}, staged: map[int64]*domain.Order{}}
	defer func() {
		for _, l := range tx.held {
			l.Unlock()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, order := range tx.staged {
		s.orders[id] = cloneOrder(order)
	}
	return nil
}

func (t *memTx) Insert(ctx context.Context, order *domain.Order) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}

	s.nextID++
	s.seq++
	order.ID = s.nextID
	order.OrderNumber = domain.FormatOrderNumber(order.CreatedAt, s.seq)
	for i := range order.Items {
		order.Items[i].ID = s.nextID*100 + int64(i+1)
	}
	t.staged[order.ID] = cloneOrder(order)
	return nil
}

func (t *memTx) lock(id int64) {
	if _, ok := t.held[id]; ok {
		return
	}
	t.store.mu.Lock()
	l, ok := t.store.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.store.locks[id] = l
	}
	t.store.mu.Unlock()

	l.Lock()
	t.held[id] = l
}

func (t *memTx) LockByID(ctx context.Context, id int64) (*domain.Order, error) {
	t.lock(id)

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if order, ok := t.staged[id]; ok {
		return cloneOrder(order), nil
	}
	order, ok := t.store.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(order), nil
}

func (t *memTx) LockByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	t.store.mu.Lock()
	var id int64
	for _, order := range t.store.orders {
		if order.Gateway.OrderID == gatewayOrderID {
			id = order.ID
			break
		}
	}
	t.store.mu.Unlock()

	if id == 0 {
		return nil, nil
	}
	return t.LockByID(ctx, id)
}

func (t *memTx) Update(ctx context.Context, order *domain.Order) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; !ok {
		if _, staged := t.staged[order.ID]; !staged {
			return domain.NotFound("order_not_found", "Order not found")
		}
	}
	if order.Gateway.OrderID != "" {
		for id, other := range s.orders {
			if id != order.ID && other.Gateway.OrderID == order.Gateway.OrderID {
				return domain.InvalidState("duplicate_gateway_order", "Gateway order id is already attached to another order")
			}
		}
	}
	t.staged[order.ID] = cloneOrder(order)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.orders[id]; ok {
		return cloneOrder(order), nil
	}
	return nil, nil
}

func (s *memStore) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.OrderNumber == orderNumber {
			return cloneOrder(order), nil
		}
	}
	return nil, nil
}

func (s *memStore) List(ctx context.Context) ([]domain.Order, error) {
	return s.filter(func(*domain.Order) bool { return true }), nil
}

func (s *memStore) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.filter(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (s *memStore) filter(keep func(*domain.Order) bool) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Order{}
	for _, order := range s.orders {
		if keep(order) {
			out = append(out, *cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *memStore) all() []domain.Order {
	return s.filter(func(*domain.Order) bool { return true })
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}

type fakeUsers struct {
	byEmail map[string]domain.User
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[int64]domain.Product
}

func (f *fakeProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeProducts) set(p domain.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
}

type fakeCarts struct {
	mu       sync.Mutex
	items    map[int64][]domain.CartItem
	clearErr error
	cleared  []int64
}

func (f *fakeCarts) Items(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CartItem(nil), f.items[userID]...), nil
}

func (f *fakeCarts) Clear(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, userID)
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.items, userID)
	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	keyID     string
	secret    string
	createErr error
	ids       []string
	created   []gateway.CreateOrderRequest
}

func (f *fakeGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := fmt.Sprintf("order_%d", len(f.created))
	if len(f.ids) > 0 {
		id, f.ids = f.ids[0], f.ids[1:]
	}
	return &gateway.Order{ID: id, Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.Sign(f.secret, orderID, paymentID) == signature
}

func (f *fakeGateway) KeyID() string { return f.keyID }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Confirmation
}

func (n *recordingNotifier) Dispatch(c notification.Confirmation) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return true
}

func (n *recordingNotifier) Sent() []notification.Confirmation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Confirmation(nil), n.sent...)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (e *recordingEvents) Publish(ctx context.Context, key string, event any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event.(domain.OrderEvent))
	return e.err
}

func (e *recordingEvents) Types() []domain.OrderEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.OrderEventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

var (
	u1    = domain.User{ID: 1, Email: "u1@example.com", FullName: "User One", Role: "USER"}
	u2    = domain.User{ID: 2, Email: "u2@example.com", FullName: "User Two", Role: "user"}
	admin = domain.User{ID: 9, Email: "admin@example.com", FullName: "Admin", Role: "admin"}

	shipping = domain.Shipping{Name: "A", Phone: "1", Address: "x", City: "y", State: "z", Pincode: "000001"}

	errBoom = errors.New("boom")
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func product(id int64, name, p string, stock int) domain.Product {
	return domain.Product{ID: id, Name: name, Price: price(p), StockQuantity: stock, IsAvailable: true, ImageURL: fmt.Sprintf("/img/%d.jpg", id)}
}

type fixture struct {
	store    *memStore
	users    *fakeUsers
	products *fakeProducts
	carts    *fakeCarts
	gateway  *fakeGateway
	notifier *recordingNotifier
	events   *recordingEvents
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		store: newMemStore(),
		users: &fakeUsers{byEmail: map[string]domain.User{
			u1.Email: u1, u2.Email: u2, admin.Email: admin,
		}},
		products: &fakeProducts{products: map[int64]domain.Product{
			5:  product(5, "Baguette", "4.50", 2),
			10: product(10, "Sourdough Loaf", "20.00", 50),
			11: product(11, "Almond Croissant", "15.00", 50),
		}},
		carts:    &fakeCarts{items: map[int64][]domain.CartItem{}},
		gateway:  &fakeGateway{keyID: "rzp_test_key", secret: "s"},
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
	}
	f.svc = NewService(Deps{
		Store:    f.store,
		Users:    f.users,
		Products: f.products,
		Carts:    f.carts,
		Gateway:  f.gateway,
		Notifier: f.notifier,
		Events:   f.events,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func (f *fixture) setCart(userID int64, lines ...domain.CartItem) {
	f.carts.mu.Lock()
	defer f.carts.mu.Unlock()
	f.carts.items[userID] = lines
}

func (f *fixture) cartLine(productID int64, qty int) domain.CartItem {
	p, _ := f.products.GetByID(context.Background(), productID)
	return domain.CartItem{Product: *p, Quantity: qty, Price: p.Price, Subtotal: domain.LineSubtotal(p.Price, qty)}
}

func (f *fixture) cartSize(userID int64) int {
	f.carts.mu.Lock()
	defer f.carts.mu.Unlock()
	return len(f.carts.items[userID])
}
