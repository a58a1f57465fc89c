package notification

import (
	"context"
	"log/slog"
)

const (
	// KindHoldCreated indicates funds were placed on hold against a payer.
	KindHoldCreated = "hold_created"
	// KindHoldExecuted indicates a hold resolved by moving value to the payee.
	KindHoldExecuted = "hold_executed"
	// KindHoldReleased indicates a hold resolved without moving value.
	KindHoldReleased = "hold_released"
	// KindHoldRenewed indicates a hold's expiration was moved.
	KindHoldRenewed = "hold_renewed"
	// KindRequestStatus indicates a workflow request changed status.
	KindRequestStatus = "request_status"
	// KindTransfer indicates a direct wallet-to-wallet transfer settled.
	KindTransfer = "transfer"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
