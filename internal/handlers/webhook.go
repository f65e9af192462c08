package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"evolution-gateway/internal/common/errors"
	"evolution-gateway/internal/events"
)

// HandleWebhook receives provider events. The envelope is validated, routed
// to the sink and acknowledged with the processing time.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var env events.Envelope
	if err := decodeBody(r, &env); err != nil {
		h.writeError(w, r, err)
		return
	}

	ack, err := h.dispatcher.Dispatch(r.Context(), &env)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ack)
}

type configureWebhookRequest struct {
	Instance   string   `json:"instance"`
	WebhookURL string   `json:"webhookUrl"`
	Events     []string `json:"events,omitempty"`
}

// ConfigureWebhook registers this gateway's ingestion URL with the provider.
func (h *Handlers) ConfigureWebhook(w http.ResponseWriter, r *http.Request) {
	var req configureWebhookRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Instance == "" || req.WebhookURL == "" {
		h.writeError(w, r, errors.ValidationError("instance and webhookUrl are required"))
		return
	}

	data, err := h.provider.ConfigureWebhook(r.Context(), req.Instance, req.WebhookURL, req.Events)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Webhook configured successfully", data)
}

// GetWebhookConfig returns the provider-side webhook registration.
func (h *Handlers) GetWebhookConfig(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.GetWebhookConfig(r.Context(), instance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}
