package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayAPIURL    string
	GatewayTimeout    time.Duration

	JWTSecret     string
	JWTExpiration time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	NotifyTransport string
	NotifyQueueSize int
	NotifyWorkers   int

	KafkaBrokers      []string
	OrderEventsTopic  string
	ConfirmationTopic string

	OTLPEndpoint string
}

const (
	TransportSMTP  = "smtp"
	TransportKafka = "kafka"
)

// Load reads an optional .env file and then the process environment. Every missing
// required variable is reported in a single error.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

type reader struct {
	getenv  func(string) string
	missing []string
	invalid []string
}

func (r *reader) required(key string) string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *reader) optional(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.invalid = append(r.invalid, key)
		return def
	}
	return d
}

func (r *reader) positive(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.invalid = append(r.invalid, key)
		return def
	}
	return n
}

func (r *reader) err() error {
	if len(r.missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(r.missing, ", "))
	}
	if len(r.invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %s", strings.Join(r.invalid, ", "))
	}
	return nil
}

func (r *reader) mail(cfg *Config) {
	cfg.SMTPHost = r.optional("SMTP_HOST", "localhost")
	cfg.SMTPPort = r.optional("SMTP_PORT", "587")
	cfg.SMTPUsername = r.optional("SMTP_USERNAME", "")
	cfg.SMTPPassword = r.optional("SMTP_PASSWORD", "")
	cfg.MailFrom = r.optional("MAIL_FROM", "orders@bakery.local")
}

// FromEnv builds the API configuration.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := &reader{getenv: getenv}

	cfg := &Config{
		Port:              r.optional("PORT", "8080"),
		DatabaseURL:       r.required("DATABASE_URL"),
		RazorpayKeyID:     r.required("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: r.required("RAZORPAY_KEY_SECRET"),
		RazorpayAPIURL:    r.optional("RAZORPAY_API_URL", "https://api.razorpay.com/v1"),
		GatewayTimeout:    r.duration("GATEWAY_TIMEOUT", 10*time.Second),
		JWTSecret:         r.required("JWT_SECRET"),
		JWTExpiration:     r.duration("JWT_EXPIRATION", 24*time.Hour),
		NotifyTransport:   strings.ToLower(r.optional("NOTIFY_TRANSPORT", TransportSMTP)),
		NotifyQueueSize:   r.positive("NOTIFY_QUEUE_SIZE", 100),
		NotifyWorkers:     r.positive("NOTIFY_WORKERS", 2),
		KafkaBrokers:      splitList(getenv("KAFKA_BROKERS")),
		OrderEventsTopic:  r.optional("ORDER_EVENTS_TOPIC", "order.events"),
		ConfirmationTopic: r.optional("CONFIRMATION_TOPIC", "order.confirmation"),
		OTLPEndpoint:      r.optional("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
	r.mail(cfg)

	switch cfg.NotifyTransport {
	case TransportSMTP:
	case TransportKafka:
		if len(cfg.KafkaBrokers) == 0 {
			r.missing = append(r.missing, "KAFKA_BROKERS")
		}
	default:
		r.invalid = append(r.invalid, "NOTIFY_TRANSPORT")
	}

	if err := r.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadNotifier reads the subset of settings used by the notifier process.
func LoadNotifier() (*Config, error) {
	_ = godotenv.Load()
	return NotifierFromEnv(os.Getenv)
}

func NotifierFromEnv(getenv func(string) string) (*Config, error) {
	r := &reader{getenv: getenv}

	cfg := &Config{
		KafkaBrokers:      splitList(getenv("KAFKA_BROKERS")),
		ConfirmationTopic: r.optional("CONFIRMATION_TOPIC", "order.confirmation"),
		OTLPEndpoint:      r.optional("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		NotifyTransport:   TransportKafka,
	}
	r.mail(cfg)

	if len(cfg.KafkaBrokers) == 0 {
		r.missing = append(r.missing, "KAFKA_BROKERS")
	}

	if err := r.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
