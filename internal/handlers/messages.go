package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"evolution-gateway/internal/auth"
	"evolution-gateway/internal/common/errors"
	"evolution-gateway/internal/provider"
)

// sendRequest is the common shape of all message-send bodies. Kind-specific
// fields are validated per endpoint.
type sendRequest struct {
	Instance string `json:"instance"`
	To       string `json:"to"`
	ClientID string `json:"clientId,omitempty"`

	Message     string   `json:"message,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	DocumentURL string   `json:"documentUrl,omitempty"`
	AudioURL    string   `json:"audioUrl,omitempty"`
	VideoURL    string   `json:"videoUrl,omitempty"`
	FileName    string   `json:"fileName,omitempty"`
	Caption     string   `json:"caption,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Name        string   `json:"name,omitempty"`
	Address     string   `json:"address,omitempty"`
	ContactNum  string   `json:"contactNumber,omitempty"`
	ContactName string   `json:"contactName,omitempty"`
	Title       string   `json:"title,omitempty"`
	Body        string   `json:"body,omitempty"`
	Buttons     []string `json:"buttons,omitempty"`
}

// decodeSend decodes the body and runs the checks shared by every send
// endpoint: instance and recipient present, tenant access allowed.
func (h *Handlers) decodeSend(r *http.Request) (*sendRequest, error) {
	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if req.Instance == "" || req.To == "" {
		return nil, errors.ValidationError("instance and to are required")
	}
	if err := auth.RequireTenantAccess(r.Context(), req.ClientID); err != nil {
		return nil, err
	}
	return &req, nil
}

func (h *Handlers) SendText(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSend(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Message == "" {
		h.writeError(w, r, errors.ValidationError("message is required"))
		return
	}

	data, err := h.provider.SendText(r.Context(), req.Instance, req.To, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Message sent successfully", data)
}

func (h *Handlers) SendImage(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSend(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ImageURL == "" {
		h.writeError(w, r, errors.ValidationError("imageUrl is required"))
		return
	}

	data, err := h.provider.SendImage(r.Context(), req.Instance, req.To, req.ImageURL, req.Caption)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Image sent successfully", data)
}

func (h *Handlers) SendDocument(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSend(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.DocumentURL == "" || req.FileName == "" {
		h.writeError(w, r, errors.ValidationError("documentUrl and fileName are required"))
		return
	}

	data, err := h.provider.SendDocument(r.Context(), req.Instance, req.To, req.DocumentURL, req.FileName, req.Caption)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Document sent successfully", data)
}

func (h *Handlers) SendAudio(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSend(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.AudioURL == "" {
		h.writeError(w, r, errors.ValidationError("audioUrl is required"))
		return
	}

	data, err := h.provider.SendAudio(r.Context(), req.Instance, req.To, req.AudioURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Audio sent successfully", data)
}

func (h *Handlers) SendVideo(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSend(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.VideoURL == "" {
		h.writeError(w, r, errors.ValidationError("videoUrl is required"))
		return
	}

	data, err := h.provider.SendVideo(r.Context(), req.Instance, req.To, req.VideoURL, req.Caption)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Video sent successfully", data)
}

func (h *Handlers) SendLocation(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSend(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		h.writeError(w, r, errors.ValidationError("latitude and longitude are required"))
		return
	}

	data, err := h.provider.SendLocation(r.Context(), req.Instance, req.To, *req.Latitude, *req.Longitude, req.Name, req.Address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Location sent successfully", data)
}

func (h *Handlers) SendContact(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSend(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ContactNum == "" || req.ContactName == "" {
		h.writeError(w, r, errors.ValidationError("contactNumber and contactName are required"))
		return
	}

	data, err := h.provider.SendContact(r.Context(), req.Instance, req.To, req.ContactNum, req.ContactName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Contact sent successfully", data)
}

func (h *Handlers) SendButtons(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSend(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Title == "" || req.Body == "" || len(req.Buttons) == 0 {
		h.writeError(w, r, errors.ValidationError("title, body and buttons are required"))
		return
	}

	data, err := h.provider.SendButtons(r.Context(), req.Instance, req.To, req.Title, req.Body, req.Buttons)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Buttons sent successfully", data)
}

// GetMessageHistory lists messages exchanged with a phone number.
func (h *Handlers) GetMessageHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	data, err := h.provider.GetMessageHistory(r.Context(), vars["instance"], vars["phone"], pageOptions(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}

// GetMessageStatus returns the delivery status of one message.
func (h *Handlers) GetMessageStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	data, err := h.provider.GetMessageStatus(r.Context(), vars["instance"], vars["messageId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}

func pageOptions(r *http.Request) *provider.PageOptions {
	opts := &provider.PageOptions{Cursor: r.URL.Query().Get("cursor")}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}
	return opts
}
