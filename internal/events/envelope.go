// Package events defines the inbound provider event model: the webhook
// envelope, the message correlation key, and the classifier that turns raw
// provider message payloads into a closed set of normalized kinds.
package events

import (
	"encoding/json"

	"evolution-gateway/internal/common/errors"
)

// Provider event types the gateway accepts. Anything else is rejected at the
// validation gate before dispatch.
const (
	EventMessagesUpsert   = "messages.upsert"
	EventMessagesUpdate   = "messages.update"
	EventConnectionUpdate = "connection.update"
	EventQRUpdate         = "qr.update"
	EventGroupsUpsert     = "groups.upsert"
	EventGroupsUpdate     = "groups.update"
	EventPresenceUpdate   = "presence.update"
	EventContactsUpsert   = "contacts.upsert"
	EventContactsUpdate   = "contacts.update"
)

var knownEvents = map[string]struct{}{
	EventMessagesUpsert:   {},
	EventMessagesUpdate:   {},
	EventConnectionUpdate: {},
	EventQRUpdate:         {},
	EventGroupsUpsert:     {},
	EventGroupsUpdate:     {},
	EventPresenceUpdate:   {},
	EventContactsUpsert:   {},
	EventContactsUpdate:   {},
}

// IsKnownEvent reports whether the event type is in the accepted whitelist.
func IsKnownEvent(event string) bool {
	_, ok := knownEvents[event]
	return ok
}

// Envelope is the outer JSON object the provider posts for one event.
type Envelope struct {
	Event     string          `json:"event"`
	Instance  string          `json:"instance"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Validate enforces the validation gate: event and instance must be present
// and the event must be whitelisted.
func (e *Envelope) Validate() error {
	if e.Event == "" {
		return errors.ValidationError("event is required")
	}
	if e.Instance == "" {
		return errors.ValidationError("instance is required")
	}
	if !IsKnownEvent(e.Event) {
		return errors.ValidationError("unknown event type").WithContext("event", e.Event)
	}
	return nil
}

// MessageKey identifies a provider message uniquely within an instance. It
// correlates messages.upsert events with later messages.update events.
type MessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MessageData is the data payload of a messages.upsert event.
type MessageData struct {
	Key              MessageKey                 `json:"key"`
	Message          map[string]json.RawMessage `json:"message"`
	MessageTimestamp int64                      `json:"messageTimestamp"`
	PushName         string                     `json:"pushName,omitempty"`
}

// MessageUpdateData is the data payload of a messages.update event.
type MessageUpdateData struct {
	Key    MessageKey `json:"key"`
	Update struct {
		Status string `json:"status"`
	} `json:"update"`
}

// ConnectionData is the data payload of a connection.update event.
type ConnectionData struct {
	State          string          `json:"state"`
	LastDisconnect json.RawMessage `json:"lastDisconnect,omitempty"`
}

// QRData is the data payload of a qr.update event.
type QRData struct {
	QRCode string `json:"qrcode"`
}
