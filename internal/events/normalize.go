package events

import "encoding/json"

// Kind is the normalized, closed-set classification of a message's content.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
	KindLocation Kind = "location"
	KindContact  Kind = "contact"
	KindContacts Kind = "contacts"
	KindReaction Kind = "reaction"
	KindProtocol Kind = "protocol"
	KindUnknown  Kind = "unknown"
)

// NormalizedMessage is the canonical shape handed to the sink. Payload holds
// the kind-specific struct below, or the raw provider payload for unknown
// kinds so nothing is lost on forward-compatible inputs.
type NormalizedMessage struct {
	Kind    Kind        `json:"kind"`
	Payload interface{} `json:"payload"`
}

// TextPayload carries conversation and extendedTextMessage content.
type TextPayload struct {
	Content string `json:"content"`
}

// MediaPayload carries image and video content.
type MediaPayload struct {
	URL      string `json:"url,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// AudioPayload carries audio content; PTT marks push-to-talk voice notes.
type AudioPayload struct {
	URL      string `json:"url,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	PTT      bool   `json:"ptt,omitempty"`
}

// DocumentPayload carries document content.
type DocumentPayload struct {
	URL      string `json:"url,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// LocationPayload carries shared locations.
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ContactPayload carries a single shared contact card.
type ContactPayload struct {
	Contacts json.RawMessage `json:"contacts,omitempty"`
}

// ContactsPayload carries a shared contact array.
type ContactsPayload struct {
	Contacts json.RawMessage `json:"contacts,omitempty"`
}

// ReactionPayload carries a reaction to an earlier message.
type ReactionPayload struct {
	Key  json.RawMessage `json:"key,omitempty"`
	Text string          `json:"text,omitempty"`
}

// ProtocolPayload carries provider protocol messages (revokes, history sync).
type ProtocolPayload struct {
	Key  json.RawMessage `json:"key,omitempty"`
	Type json.RawMessage `json:"type,omitempty"`
}

// normalizers is the fixed dispatch table from provider type name to
// normalization function. Provider payloads are expected single-keyed; the
// ordered probe below makes classification deterministic regardless of map
// iteration order.
var normalizers = map[string]func(json.RawMessage, map[string]json.RawMessage) NormalizedMessage{
	"conversation":         normalizeText,
	"extendedTextMessage":  normalizeText,
	"imageMessage":         normalizeImage,
	"videoMessage":         normalizeVideo,
	"audioMessage":         normalizeAudio,
	"documentMessage":      normalizeDocument,
	"locationMessage":      normalizeLocation,
	"contactMessage":       normalizeContact,
	"contactsArrayMessage": normalizeContacts,
	"reactionMessage":      normalizeReaction,
	"protocolMessage":      normalizeProtocol,
}

var probeOrder = []string{
	"conversation",
	"extendedTextMessage",
	"imageMessage",
	"videoMessage",
	"audioMessage",
	"documentMessage",
	"locationMessage",
	"contactMessage",
	"contactsArrayMessage",
	"reactionMessage",
	"protocolMessage",
}

// Normalize maps a raw provider message payload to exactly one normalized
// message. It is pure and total: any input, including nil and payloads with
// unrecognized keys, yields a result and never an error.
func Normalize(raw map[string]json.RawMessage) NormalizedMessage {
	if len(raw) == 0 {
		return NormalizedMessage{Kind: KindUnknown, Payload: nil}
	}

	for _, name := range probeOrder {
		if value, ok := raw[name]; ok {
			return normalizers[name](value, raw)
		}
	}

	// Unrecognized content type: preserve the payload verbatim so new
	// provider message types survive the trip to the sink.
	return NormalizedMessage{Kind: KindUnknown, Payload: raw}
}

func normalizeText(value json.RawMessage, raw map[string]json.RawMessage) NormalizedMessage {
	// extendedTextMessage nests the text; bare conversation is a string.
	var nested struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(value, &nested); err == nil && nested.Text != "" {
		return NormalizedMessage{Kind: KindText, Payload: TextPayload{Content: nested.Text}}
	}

	var content string
	if conv, ok := raw["conversation"]; ok {
		json.Unmarshal(conv, &content)
	}
	return NormalizedMessage{Kind: KindText, Payload: TextPayload{Content: content}}
}

func normalizeImage(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var payload MediaPayload
	json.Unmarshal(value, &payload)
	return NormalizedMessage{Kind: KindImage, Payload: payload}
}

func normalizeVideo(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var payload MediaPayload
	json.Unmarshal(value, &payload)
	return NormalizedMessage{Kind: KindVideo, Payload: payload}
}

func normalizeAudio(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var payload AudioPayload
	json.Unmarshal(value, &payload)
	return NormalizedMessage{Kind: KindAudio, Payload: payload}
}

func normalizeDocument(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var payload DocumentPayload
	json.Unmarshal(value, &payload)
	return NormalizedMessage{Kind: KindDocument, Payload: payload}
}

func normalizeLocation(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var loc struct {
		DegreesLatitude  float64 `json:"degreesLatitude"`
		DegreesLongitude float64 `json:"degreesLongitude"`
		Name             string  `json:"name"`
		Address          string  `json:"address"`
	}
	json.Unmarshal(value, &loc)
	return NormalizedMessage{Kind: KindLocation, Payload: LocationPayload{
		Latitude:  loc.DegreesLatitude,
		Longitude: loc.DegreesLongitude,
		Name:      loc.Name,
		Address:   loc.Address,
	}}
}

func normalizeContact(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var payload ContactPayload
	json.Unmarshal(value, &payload)
	return NormalizedMessage{Kind: KindContact, Payload: payload}
}

func normalizeContacts(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var payload ContactsPayload
	json.Unmarshal(value, &payload)
	return NormalizedMessage{Kind: KindContacts, Payload: payload}
}

func normalizeReaction(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var payload ReactionPayload
	json.Unmarshal(value, &payload)
	return NormalizedMessage{Kind: KindReaction, Payload: payload}
}

func normalizeProtocol(value json.RawMessage, _ map[string]json.RawMessage) NormalizedMessage {
	var payload ProtocolPayload
	json.Unmarshal(value, &payload)
	return NormalizedMessage{Kind: KindProtocol, Payload: payload}
}
