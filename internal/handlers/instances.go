package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"evolution-gateway/internal/auth"
	"evolution-gateway/internal/common/errors"
)

type createInstanceRequest struct {
	Instance string                 `json:"instance"`
	ClientID string                 `json:"clientId,omitempty"`
	Config   map[string]interface{} `json:"config,omitempty"`
}

// CreateInstance provisions a new provider instance.
func (h *Handlers) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Instance == "" {
		h.writeError(w, r, errors.ValidationError("instance is required"))
		return
	}
	if err := auth.RequireTenantAccess(r.Context(), req.ClientID); err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := h.provider.CreateInstance(r.Context(), req.Instance, req.Config)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Instance created successfully", data)
}

func (h *Handlers) ConnectInstance(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.ConnectInstance(r.Context(), instance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Instance connecting", data)
}

func (h *Handlers) DisconnectInstance(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.DisconnectInstance(r.Context(), instance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Instance disconnected", data)
}

func (h *Handlers) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.DeleteInstance(r.Context(), instance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Instance deleted", data)
}

func (h *Handlers) GetInstanceInfo(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.GetInstanceInfo(r.Context(), instance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}

func (h *Handlers) GetInstanceStatus(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.GetInstanceStatus(r.Context(), instance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}

func (h *Handlers) GetInstanceQR(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.GetInstanceQR(r.Context(), instance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}

func (h *Handlers) GetInstanceConfig(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.GetInstanceConfig(r.Context(), instance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}

func (h *Handlers) UpdateInstanceConfig(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	var config map[string]interface{}
	if err := decodeBody(r, &config); err != nil {
		h.writeError(w, r, err)
		return
	}

	data, err := h.provider.UpdateInstanceConfig(r.Context(), instance, config)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "Instance config updated", data)
}

func (h *Handlers) GetChats(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.GetChats(r.Context(), instance, pageOptions(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}

func (h *Handlers) GetContacts(w http.ResponseWriter, r *http.Request) {
	instance := mux.Vars(r)["instance"]

	data, err := h.provider.GetContacts(r.Context(), instance, pageOptions(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, "", data)
}
