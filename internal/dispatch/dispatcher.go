// Package dispatch routes validated webhook envelopes to their per-event
// handlers and produces the acknowledgment returned to the provider.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"evolution-gateway/internal/common/errors"
	"evolution-gateway/internal/common/logging"
	"evolution-gateway/internal/events"
	"evolution-gateway/internal/sink"
)

// Ack is the acknowledgment body returned for a processed webhook.
type Ack struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	EventType      string `json:"eventType"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

// Dispatcher validates incoming envelopes and hands each event to the sink.
// A failure while handling one event never affects the handling of others:
// every Dispatch call is independent and panics are contained.
type Dispatcher struct {
	sink   sink.Sink
	logger logging.Logger

	now func() time.Time
}

// NewDispatcher creates a dispatcher that delivers to the given sink.
func NewDispatcher(s sink.Sink, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Dispatcher{
		sink:   s,
		logger: logger.WithFields(logging.String("component", "dispatcher")),
		now:    time.Now,
	}
}

// Dispatch validates the envelope, routes it by event type and returns the
// acknowledgment. Validation failures and handler failures are returned as
// errors for the transport layer to map to a status code.
func (d *Dispatcher) Dispatch(ctx context.Context, env *events.Envelope) (ack *Ack, err error) {
	start := d.now()

	if err := env.Validate(); err != nil {
		d.logger.Warn("Webhook rejected",
			logging.String("event", env.Event),
			logging.String("instance", env.Instance),
			logging.Err(err),
		)
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Webhook handler panicked", fmt.Errorf("%v", r),
				logging.String("event", env.Event),
				logging.String("instance", env.Instance),
			)
			ack = nil
			err = errors.InternalError("failed to process webhook", fmt.Errorf("panic: %v", r))
		}
	}()

	message, herr := d.handle(ctx, env)
	if herr != nil {
		d.logger.Error("Webhook processing failed", herr,
			logging.String("event", env.Event),
			logging.String("instance", env.Instance),
		)
		return nil, herr
	}

	elapsed := d.now().Sub(start)
	d.logger.Info("Webhook processed",
		logging.String("event", env.Event),
		logging.String("instance", env.Instance),
		logging.Duration("elapsed", elapsed),
	)

	return &Ack{
		Success:        true,
		Message:        message,
		EventType:      env.Event,
		ResponseTimeMs: elapsed.Milliseconds(),
	}, nil
}

func (d *Dispatcher) handle(ctx context.Context, env *events.Envelope) (string, error) {
	switch env.Event {
	case events.EventMessagesUpsert:
		return d.handleMessageUpsert(ctx, env)
	case events.EventMessagesUpdate:
		return d.handleMessageUpdate(ctx, env)
	case events.EventConnectionUpdate:
		return d.handleConnectionUpdate(ctx, env)
	case events.EventQRUpdate:
		return d.handleQRUpdate(ctx, env)
	default:
		// Whitelisted but structurally uninterpreted: forward verbatim.
		if err := d.sink.SaveEvent(ctx, env.Instance, env.Event, env.Data); err != nil {
			return "", err
		}
		return "Webhook processed successfully", nil
	}
}

func (d *Dispatcher) handleMessageUpsert(ctx context.Context, env *events.Envelope) (string, error) {
	var data events.MessageData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", errors.ValidationError("invalid message data").WithContext("event", env.Event)
	}

	// Outbound echoes are suppressed: only messages from remote parties
	// reach the sink.
	if data.Key.FromMe {
		return "Event ignored", nil
	}

	normalized := events.Normalize(data.Message)
	if err := d.sink.SaveMessage(ctx, env.Instance, data.Key, normalized); err != nil {
		return "", err
	}
	return "Webhook processed successfully", nil
}

func (d *Dispatcher) handleMessageUpdate(ctx context.Context, env *events.Envelope) (string, error) {
	var data events.MessageUpdateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", errors.ValidationError("invalid message update data").WithContext("event", env.Event)
	}

	if err := d.sink.UpdateMessageStatus(ctx, env.Instance, data.Key, data.Update.Status); err != nil {
		return "", err
	}
	return "Webhook processed successfully", nil
}

func (d *Dispatcher) handleConnectionUpdate(ctx context.Context, env *events.Envelope) (string, error) {
	var data events.ConnectionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", errors.ValidationError("invalid connection data").WithContext("event", env.Event)
	}

	if err := d.sink.SaveConnectionState(ctx, env.Instance, data.State); err != nil {
		return "", err
	}
	return "Webhook processed successfully", nil
}

func (d *Dispatcher) handleQRUpdate(ctx context.Context, env *events.Envelope) (string, error) {
	var data events.QRData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", errors.ValidationError("invalid qr data").WithContext("event", env.Event)
	}

	if err := d.sink.StoreQR(ctx, env.Instance, data.QRCode); err != nil {
		return "", err
	}
	return "Webhook processed successfully", nil
}
