package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolution-gateway/internal/auth"
	"evolution-gateway/internal/dispatch"
	"evolution-gateway/internal/provider"
	"evolution-gateway/internal/sink"
)

const testAdminKey = "admin-key"

func newTestHandlers(t *testing.T, providerHandler http.HandlerFunc) (*Handlers, *auth.Service) {
	t.Helper()

	if providerHandler == nil {
		providerHandler = func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"ok": true}`))
		}
	}
	server := httptest.NewServer(providerHandler)
	t.Cleanup(server.Close)

	client, err := provider.NewClient(&provider.Config{BaseURL: server.URL, APIKey: "pk"}, nil)
	require.NoError(t, err)

	authService, err := auth.New("test-secret-key-that-is-long-enough", time.Hour, nil)
	require.NoError(t, err)

	eventSink := sink.NewLogSink(nil)
	dispatcher := dispatch.NewDispatcher(eventSink, nil)

	return New(dispatcher, client, authService, eventSink, testAdminKey, nil), authService
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleWebhook(t *testing.T) {
	h, _ := newTestHandlers(t, nil)

	t.Run("valid event acknowledged", func(t *testing.T) {
		body := `{
			"event": "messages.upsert",
			"instance": "demo",
			"data": {"key": {"remoteJid": "x@s.whatsapp.net", "fromMe": false, "id": "M1"}, "message": {"conversation": "hi"}}
		}`
		rec := postJSON(t, h.HandleWebhook, "/webhook", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var ack dispatch.Ack
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
		assert.True(t, ack.Success)
		assert.Equal(t, "messages.upsert", ack.EventType)
	})

	t.Run("unknown event rejected with 400", func(t *testing.T) {
		rec := postJSON(t, h.HandleWebhook, "/webhook", `{"event": "messages.delete", "instance": "demo", "data": {}}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
	})

	t.Run("malformed JSON rejected with 400", func(t *testing.T) {
		rec := postJSON(t, h.HandleWebhook, "/webhook", `{not json`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func authHeader(t *testing.T, s *auth.Service, tenantID string) map[string]string {
	t.Helper()
	token, err := s.GenerateToken(tenantID, "Test Tenant", "", "")
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestSendText(t *testing.T) {
	t.Run("success wraps provider response", func(t *testing.T) {
		h, authService := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/message/sendText/demo", r.URL.Path)
			w.Write([]byte(`{"messageId": "M1"}`))
		})

		handler := authService.Middleware(http.HandlerFunc(h.SendText))
		req := httptest.NewRequest(http.MethodPost, "/api/messages/send/text",
			bytes.NewBufferString(`{"instance": "demo", "to": "5551234", "message": "hi"}`))
		for k, v := range authHeader(t, authService, "client-1") {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp successResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.JSONEq(t, `{"messageId": "M1"}`, string(resp.Data))
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		h, _ := newTestHandlers(t, nil)
		rec := postJSON(t, h.SendText, "/api/messages/send/text", `{"instance": "demo"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cross-tenant clientId forbidden", func(t *testing.T) {
		h, authService := newTestHandlers(t, nil)

		handler := authService.Middleware(http.HandlerFunc(h.SendText))
		req := httptest.NewRequest(http.MethodPost, "/api/messages/send/text",
			bytes.NewBufferString(`{"instance": "demo", "to": "5551234", "message": "hi", "clientId": "someone-else"}`))
		for k, v := range authHeader(t, authService, "client-1") {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestSendLocation_RequiresCoordinates(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	rec := postJSON(t, h.SendLocation, "/api/messages/send/location",
		`{"instance": "demo", "to": "5551234", "name": "HQ"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstanceHandlers(t *testing.T) {
	t.Run("create requires instance", func(t *testing.T) {
		h, _ := newTestHandlers(t, nil)
		rec := postJSON(t, h.CreateInstance, "/api/instances/create", `{}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("info proxies with path variable", func(t *testing.T) {
		h, _ := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/instance/info/demo", r.URL.Path)
			w.Write([]byte(`{"instance": "demo", "state": "open"}`))
		})

		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/instances/info/demo", nil),
			map[string]string{"instance": "demo"})
		rec := httptest.NewRecorder()
		h.GetInstanceInfo(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"state": "open"`)
	})

	t.Run("provider 404 propagates", func(t *testing.T) {
		h, _ := newTestHandlers(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "instance not found"}`))
		})

		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/instances/info/ghost", nil),
			map[string]string{"instance": "ghost"})
		rec := httptest.NewRecorder()
		h.GetInstanceInfo(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "instance not found")
	})

	t.Run("provider 500 becomes 502", func(t *testing.T) {
		h, _ := newTestHandlers(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/instances/status/demo", nil),
			map[string]string{"instance": "demo"})
		rec := httptest.NewRecorder()
		h.GetInstanceStatus(rec, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestGetMessageHistory(t *testing.T) {
	h, _ := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/findAll/demo", r.URL.Path)
		assert.Equal(t, "5551234", r.URL.Query().Get("number"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"messages": []}`))
	})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/messages/history/demo/5551234?limit=10", nil),
		map[string]string{"instance": "demo", "phone": "5551234"})
	rec := httptest.NewRecorder()
	h.GetMessageHistory(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfigureWebhook(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h, _ := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/webhook/set/demo", r.URL.Path)
			w.Write([]byte(`{"webhook": {"url": "https://gw/webhook"}}`))
		})

		rec := postJSON(t, h.ConfigureWebhook, "/api/webhook/configure",
			`{"instance": "demo", "webhookUrl": "https://gw/webhook"}`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing url rejected", func(t *testing.T) {
		h, _ := newTestHandlers(t, nil)
		rec := postJSON(t, h.ConfigureWebhook, "/api/webhook/configure", `{"instance": "demo"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestIssueToken(t *testing.T) {
	t.Run("issues verifiable token", func(t *testing.T) {
		h, authService := newTestHandlers(t, nil)

		rec := postJSON(t, h.IssueToken, "/auth/token",
			`{"clientId": "client-1", "clientName": "Acme"}`,
			map[string]string{"apikey": testAdminKey})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp tokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)

		claims, err := authService.VerifyToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "client-1", claims.TenantID)
	})

	t.Run("wrong admin key rejected", func(t *testing.T) {
		h, _ := newTestHandlers(t, nil)
		rec := postJSON(t, h.IssueToken, "/auth/token",
			`{"clientId": "client-1", "clientName": "Acme"}`,
			map[string]string{"apikey": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("disabled without admin key", func(t *testing.T) {
		h, _ := newTestHandlers(t, nil)
		h.adminKey = ""
		rec := postJSON(t, h.IssueToken, "/auth/token", `{"clientId": "c", "clientName": "n"}`, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		h, _ := newTestHandlers(t, nil)
		rec := postJSON(t, h.IssueToken, "/auth/token", `{"clientId": "c"}`,
			map[string]string{"apikey": testAdminKey})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h, _ := newTestHandlers(t, nil)
		rec := httptest.NewRecorder()
		h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	})

	t.Run("provider down stays 200", func(t *testing.T) {
		h, _ := newTestHandlers(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		rec := httptest.NewRecorder()
		h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"provider_status":"unhealthy"`)
	})
}
