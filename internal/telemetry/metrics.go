package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMeterProvider installs a Prometheus-backed MeterProvider as the global provider.
// It returns the /metrics handler and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		)),
	)

	otel.SetMeterProvider(mp)

	return promhttp.Handler(), mp.Shutdown, nil
}

// Metrics holds the checkout counters. A nil *Metrics records nothing.
type Metrics struct {
	ordersCreated     otelmetric.Int64Counter
	orderTransitions  otelmetric.Int64Counter
	paymentsVerified  otelmetric.Int64Counter
	gatewayDuration   otelmetric.Float64Histogram
	notifications     otelmetric.Int64Counter
	cartClearFailures otelmetric.Int64Counter
}

func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.ordersCreated, err = meter.Int64Counter("checkout.orders.created",
		otelmetric.WithDescription("Orders committed, by payment method")); err != nil {
		return nil, err
	}
	if m.orderTransitions, err = meter.Int64Counter("checkout.orders.transitions",
		otelmetric.WithDescription("Committed order state transitions, by event type")); err != nil {
		return nil, err
	}
	if m.paymentsVerified, err = meter.Int64Counter("checkout.payments.verified",
		otelmetric.WithDescription("Payment verification attempts, by outcome")); err != nil {
		return nil, err
	}
	if m.gatewayDuration, err = meter.Float64Histogram("checkout.gateway.create_order.duration",
		otelmetric.WithDescription("Gateway create-order latency"),
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.notifications, err = meter.Int64Counter("checkout.notifications",
		otelmetric.WithDescription("Confirmation notifications, by outcome")); err != nil {
		return nil, err
	}
	if m.cartClearFailures, err = meter.Int64Counter("checkout.cart.clear_failures",
		otelmetric.WithDescription("Post-commit cart clears that failed")); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Metrics) OrderCreated(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("payment_method", method)))
}

func (m *Metrics) OrderTransition(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.orderTransitions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("event", event)))
}

func (m *Metrics) PaymentVerified(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.paymentsVerified.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) GatewayCall(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayDuration.Record(ctx, elapsed.Seconds(), otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) Notification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) CartClearFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.cartClearFailures.Add(ctx, 1)
}
