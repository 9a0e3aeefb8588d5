package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/bakery-checkout/internal/telemetry"
)

const (
	DefaultQueueSize   = 100
	DefaultWorkers     = 2
	DefaultSendTimeout = 30 * time.Second
)

// Sender delivers one confirmation.
type Sender interface {
	Send(ctx context.Context, c Confirmation) error
}

// Dispatcher delivers confirmations on background workers through a bounded queue.
// Delivery is fire-and-forget: failed sends are logged and never retried.
type Dispatcher struct {
	sender      Sender
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	queue       chan Confirmation
	workers     int
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Confirmation, n)
		}
	}
}

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

func WithMetrics(m *telemetry.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(sender Sender, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		logger:      logger,
		queue:       make(chan Confirmation, DefaultQueueSize),
		workers:     DefaultWorkers,
		sendTimeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	for range d.workers {
		d.wg.Add(1)
		go d.run()
	}

	return d
}

// Dispatch enqueues c without blocking. It reports false when the queue is full or
// the dispatcher is closed; the confirmation is dropped in that case.
func (d *Dispatcher) Dispatch(c Confirmation) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped, dispatcher closed", "order_number", c.OrderNumber)
		d.metrics.Notification(context.Background(), "dropped")
		return false
	}

	select {
	case d.queue <- c:
		return true
	default:
		d.logger.Warn("notification dropped, queue full", "order_number", c.OrderNumber, "queue_size", cap(d.queue))
		d.metrics.Notification(context.Background(), "dropped")
		return false
	}
}

// Close stops accepting confirmations and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for c := range d.queue {
		d.deliver(c)
	}
}

func (d *Dispatcher) deliver(c Confirmation) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, c); err != nil {
		d.logger.Error("failed to send confirmation", "error", err, "order_number", c.OrderNumber, "notification_id", c.ID)
		d.metrics.Notification(ctx, "failed")
		return
	}

	d.logger.Info("confirmation sent", "order_number", c.OrderNumber, "notification_id", c.ID)
	d.metrics.Notification(ctx, "sent")
}
