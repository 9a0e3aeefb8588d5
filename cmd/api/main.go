package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/bakery-checkout/internal/auth"
	"github.com/joao-fontenele/bakery-checkout/internal/cart"
	"github.com/joao-fontenele/bakery-checkout/internal/catalog"
	"github.com/joao-fontenele/bakery-checkout/internal/config"
	"github.com/joao-fontenele/bakery-checkout/internal/email"
	"github.com/joao-fontenele/bakery-checkout/internal/gateway"
	"github.com/joao-fontenele/bakery-checkout/internal/messaging"
	"github.com/joao-fontenele/bakery-checkout/internal/notification"
	"github.com/joao-fontenele/bakery-checkout/internal/orders"
	"github.com/joao-fontenele/bakery-checkout/internal/telemetry"
	"github.com/joao-fontenele/bakery-checkout/internal/users"
)

const (
	serviceName    = "bakery-checkout"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := telemetry.NewLogger(os.Stdout, serviceName)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		logger.Error("failed to start runtime metrics", "error", err)
		os.Exit(1)
	}

	metrics, err := telemetry.NewMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	gatewayClient := gateway.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret,
		&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		gateway.WithBaseURL(cfg.RazorpayAPIURL),
		gateway.WithTimeout(cfg.GatewayTimeout),
	)

	sender, closeSender := newSender(cfg, logger)
	defer closeSender()

	dispatcher := notification.NewDispatcher(sender, logger,
		notification.WithQueueSize(cfg.NotifyQueueSize),
		notification.WithWorkers(cfg.NotifyWorkers),
		notification.WithMetrics(metrics),
	)

	deps := orders.Deps{
		Store:    orders.NewOrderRepository(db),
		Users:    users.NewUserRepository(db),
		Products: catalog.NewProductRepository(db),
		Carts:    cart.NewRepository(db),
		Gateway:  gatewayClient,
		Notifier: dispatcher,
		Metrics:  metrics,
		Logger:   logger,
	}

	var events *messaging.Producer
	if cfg.KafkaEnabled() {
		events = messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		defer func() { _ = events.Close() }()
		deps.Events = events
	}

	svc := orders.NewService(deps)
	handler := orders.NewHandler(svc, logger)

	authenticate := auth.Middleware(auth.NewValidator(cfg.JWTSecret))

	mux := http.NewServeMux()
	handler.Routes(mux, func(h http.Handler) http.Handler {
		return telemetry.WithHTTPRoute(authenticate(h))
	})
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("GET /healthz", telemetry.WithHTTPRoute(healthHandler(db, logger)))

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.GatewayTimeout + 10*time.Second,
	}

	go func() {
		logger.Info("starting checkout api", "port", cfg.Port, "notify_transport", cfg.NotifyTransport, "kafka", cfg.KafkaEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Drains queued confirmations before the transports close.
	dispatcher.Close()
}

// newSender picks the confirmation transport: direct SMTP, or the confirmation
// topic consumed by cmd/notifier.
func newSender(cfg *config.Config, logger *slog.Logger) (notification.Sender, func()) {
	if cfg.NotifyTransport == config.TransportKafka {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.ConfirmationTopic)
		return notification.NewKafkaSender(producer), func() { _ = producer.Close() }
	}

	mailer := email.NewMailer(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, logger)
	return mailer, func() {}
}

func healthHandler(db *sql.DB, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(ctx); err != nil {
			logger.ErrorContext(r.Context(), "health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}
