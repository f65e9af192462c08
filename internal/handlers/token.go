package handlers

import (
	"crypto/subtle"
	"net/http"

	"evolution-gateway/internal/common/errors"
	"evolution-gateway/internal/common/logging"
)

type tokenRequest struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
	UserID     string `json:"userId,omitempty"`
	UserRole   string `json:"userRole,omitempty"`
}

type tokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// IssueToken mints a tenant bearer token. The caller must present the admin
// API key; when no key is configured the endpoint is disabled.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.adminKey == "" {
		h.writeError(w, r, errors.NotFoundError("token issuance"))
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("apikey")), []byte(h.adminKey)) != 1 {
		h.writeError(w, r, errors.AuthorizationError("invalid API key"))
		return
	}

	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ClientID == "" || req.ClientName == "" {
		h.writeError(w, r, errors.ValidationError("clientId and clientName are required"))
		return
	}

	token, err := h.auth.GenerateToken(req.ClientID, req.ClientName, req.UserID, req.UserRole)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("Token issued",
		logging.String("client_id", req.ClientID),
		logging.String("client_name", req.ClientName),
	)
	writeJSON(w, http.StatusOK, tokenResponse{Success: true, Token: token})
}
