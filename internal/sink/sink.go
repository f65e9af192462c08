// Package sink delivers normalized provider events to downstream consumers.
// The dispatcher only sees the Sink interface; implementations decide where
// events are stored and how consumers are notified. Delivery is best-effort
// and must tolerate out-of-order or concurrent calls for the same message key.
package sink

import (
	"context"
	"encoding/json"

	"evolution-gateway/internal/common/logging"
	"evolution-gateway/internal/events"
)

// Sink receives normalized events from the webhook dispatcher.
type Sink interface {
	// SaveMessage persists an inbound message together with its correlation key.
	SaveMessage(ctx context.Context, instance string, key events.MessageKey, msg events.NormalizedMessage) error
	// UpdateMessageStatus records a delivery status transition for the keyed message.
	UpdateMessageStatus(ctx context.Context, instance string, key events.MessageKey, status string) error
	// SaveConnectionState records an instance connectivity transition.
	SaveConnectionState(ctx context.Context, instance, state string) error
	// StoreQR stores a session-pairing QR code, superseding any prior pending one.
	StoreQR(ctx context.Context, instance, qrcode string) error
	// SaveEvent forwards a kind-tagged update with no further interpretation.
	SaveEvent(ctx context.Context, instance, kind string, data json.RawMessage) error
	// Health reports whether the sink can currently accept deliveries.
	Health(ctx context.Context) error
}

// LogSink is the fallback used when no Redis address is configured. It only
// logs deliveries, which keeps the gateway functional in development setups.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a log-only sink.
func NewLogSink(logger logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LogSink{logger: logger.WithFields(logging.String("component", "log_sink"))}
}

func (s *LogSink) SaveMessage(_ context.Context, instance string, key events.MessageKey, msg events.NormalizedMessage) error {
	s.logger.Info("Message received",
		logging.String("instance", instance),
		logging.String("from", key.RemoteJid),
		logging.String("message_id", key.ID),
		logging.String("kind", string(msg.Kind)),
	)
	return nil
}

func (s *LogSink) UpdateMessageStatus(_ context.Context, instance string, key events.MessageKey, status string) error {
	s.logger.Info("Message status updated",
		logging.String("instance", instance),
		logging.String("message_id", key.ID),
		logging.String("status", status),
	)
	return nil
}

func (s *LogSink) SaveConnectionState(_ context.Context, instance, state string) error {
	s.logger.Info("Connection state updated",
		logging.String("instance", instance),
		logging.String("state", state),
	)
	return nil
}

func (s *LogSink) StoreQR(_ context.Context, instance, qrcode string) error {
	s.logger.Info("QR code updated",
		logging.String("instance", instance),
		logging.Bool("present", qrcode != ""),
	)
	return nil
}

func (s *LogSink) SaveEvent(_ context.Context, instance, kind string, _ json.RawMessage) error {
	s.logger.Info("Event received",
		logging.String("instance", instance),
		logging.String("event", kind),
	)
	return nil
}

func (s *LogSink) Health(_ context.Context) error {
	return nil
}

var _ Sink = (*LogSink)(nil)
