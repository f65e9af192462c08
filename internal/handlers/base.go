// Package handlers implements the HTTP boundary: webhook ingestion, the
// authenticated proxy API in front of the provider, token issuance and
// health. Handlers stay thin; behavior lives in dispatch, provider and sink.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"evolution-gateway/internal/auth"
	"evolution-gateway/internal/common/errors"
	"evolution-gateway/internal/common/logging"
	"evolution-gateway/internal/dispatch"
	"evolution-gateway/internal/provider"
	"evolution-gateway/internal/sink"
)

type Handlers struct {
	dispatcher *dispatch.Dispatcher
	provider   *provider.Client
	auth       *auth.Service
	sink       sink.Sink
	adminKey   string
	logger     logging.Logger
}

func New(dispatcher *dispatch.Dispatcher, providerClient *provider.Client, authService *auth.Service, eventSink sink.Sink, adminKey string, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		dispatcher: dispatcher,
		provider:   providerClient,
		auth:       authService,
		sink:       eventSink,
		adminKey:   adminKey,
		logger:     logger,
	}
}

// successResponse is the standard success envelope for proxy responses.
type successResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type errorResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeData wraps a verbatim provider response in the success envelope.
func (h *Handlers) writeData(w http.ResponseWriter, message string, data json.RawMessage) {
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// writeError maps the error taxonomy to its HTTP status. Rate limit errors
// additionally carry the Retry-After header and body hint.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.AsAppError(err)

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", appErr,
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
	} else {
		h.logger.Warn("Request rejected",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.String("reason", appErr.Message),
		)
	}

	body := errorResponse{Success: false, Message: appErr.Message}
	if appErr.Type == errors.ErrTypeRateLimit && appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
		body.RetryAfter = appErr.RetryAfter
	}

	// Internal details never leak to clients.
	if status == http.StatusInternalServerError {
		body.Message = "Internal server error"
	}

	writeJSON(w, status, body)
}

// decodeBody decodes a JSON request body into dest.
func decodeBody(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.ValidationError("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errors.ValidationError("invalid JSON body")
	}
	return nil
}
