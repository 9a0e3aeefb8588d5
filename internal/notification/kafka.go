package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Publisher is satisfied by messaging.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// KafkaSender hands confirmations to the notifier process instead of mailing in-process.
type KafkaSender struct {
	publisher Publisher
}

func NewKafkaSender(publisher Publisher) *KafkaSender {
	return &KafkaSender{publisher: publisher}
}

func (s *KafkaSender) Send(ctx context.Context, c Confirmation) error {
	if err := s.publisher.Publish(ctx, c.OrderNumber, c); err != nil {
		return fmt.Errorf("publish confirmation %s: %w", c.OrderNumber, err)
	}
	return nil
}

// Handler consumes published confirmations and delivers them with sender.
type Handler struct {
	sender Sender
	logger *slog.Logger
}

func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{sender: sender, logger: logger}
}

// Handle never fails the consumer: malformed payloads and send errors are logged and
// the message is committed.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	var c Confirmation
	if err := json.Unmarshal(payload, &c); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal confirmation", "error", err)
		return nil
	}

	h.logger.InfoContext(ctx, "processing confirmation", "order_number", c.OrderNumber, "notification_id", c.ID)

	if err := h.sender.Send(ctx, c); err != nil {
		h.logger.ErrorContext(ctx, "failed to send confirmation", "error", err, "order_number", c.OrderNumber)
		return nil
	}

	h.logger.InfoContext(ctx, "confirmation sent", "order_number", c.OrderNumber)
	return nil
}
