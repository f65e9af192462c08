package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolution-gateway/internal/common/errors"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	apiKey string
	body   map[string]interface{}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.apiKey = r.Header.Get("apikey")
		if data, err := io.ReadAll(r.Body); err == nil && len(data) > 0 {
			json.Unmarshal(data, &captured.body)
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{BaseURL: server.URL, APIKey: "secret"}, nil)
	require.NoError(t, err)
	return client, captured
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"success": true}`))
}

func TestNewClient(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewClient(&Config{}, nil)
		assert.Error(t, err)

		_, err = NewClient(nil, nil)
		assert.Error(t, err)
	})

	t.Run("applies default timeout", func(t *testing.T) {
		client, err := NewClient(&Config{BaseURL: "http://localhost:8080"}, nil)
		require.NoError(t, err)
		assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	})
}

func TestClient_APIKeyHeader(t *testing.T) {
	client, captured := newTestClient(t, okHandler)

	_, err := client.GetInstanceInfo(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "secret", captured.apiKey)
	assert.Equal(t, http.MethodGet, captured.method)
	assert.Equal(t, "/instance/info/demo", captured.path)
}

func TestClient_InstanceLifecycle(t *testing.T) {
	t.Run("create merges config into body", func(t *testing.T) {
		client, captured := newTestClient(t, okHandler)

		_, err := client.CreateInstance(context.Background(), "demo", map[string]interface{}{"qrcode": true})
		require.NoError(t, err)
		assert.Equal(t, "/instance/create", captured.path)
		assert.Equal(t, "demo", captured.body["instance"])
		assert.Equal(t, true, captured.body["qrcode"])
	})

	t.Run("delete uses DELETE", func(t *testing.T) {
		client, captured := newTestClient(t, okHandler)

		_, err := client.DeleteInstance(context.Background(), "demo")
		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, captured.method)
		assert.Equal(t, "/instance/delete/demo", captured.path)
	})

	t.Run("config update uses PUT", func(t *testing.T) {
		client, captured := newTestClient(t, okHandler)

		_, err := client.UpdateInstanceConfig(context.Background(), "demo", map[string]interface{}{"reject_call": true})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, captured.method)
		assert.Equal(t, "/instance/config/demo", captured.path)
	})
}

func TestClient_SendText(t *testing.T) {
	client, captured := newTestClient(t, okHandler)

	body, err := client.SendText(context.Background(), "demo", "5551234", "hello")
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true}`, string(body))
	assert.Equal(t, "/message/sendText/demo", captured.path)
	assert.Equal(t, "5551234", captured.body["number"])
	assert.Equal(t, "hello", captured.body["text"])
}

func TestClient_SendContact(t *testing.T) {
	client, captured := newTestClient(t, okHandler)

	_, err := client.SendContact(context.Background(), "demo", "5551234", "5559999", "Ana")
	require.NoError(t, err)
	contact, ok := captured.body["contact"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "5559999", contact["number"])
	assert.Equal(t, "Ana", contact["name"])
}

func TestClient_Pagination(t *testing.T) {
	t.Run("defaults limit to 50", func(t *testing.T) {
		client, captured := newTestClient(t, okHandler)

		_, err := client.GetChats(context.Background(), "demo", nil)
		require.NoError(t, err)
		assert.Equal(t, "/chat/findAll/demo", captured.path)
		assert.Contains(t, captured.query, "limit=50")
	})

	t.Run("passes cursor and limit", func(t *testing.T) {
		client, captured := newTestClient(t, okHandler)

		_, err := client.GetMessageHistory(context.Background(), "demo", "5551234", &PageOptions{Limit: 10, Cursor: "abc"})
		require.NoError(t, err)
		assert.Contains(t, captured.query, "limit=10")
		assert.Contains(t, captured.query, "cursor=abc")
		assert.Contains(t, captured.query, "number=5551234")
	})
}

func TestClient_ConfigureWebhook(t *testing.T) {
	t.Run("explicit events", func(t *testing.T) {
		client, captured := newTestClient(t, okHandler)

		_, err := client.ConfigureWebhook(context.Background(), "demo", "https://gw/webhook", []string{"messages.upsert"})
		require.NoError(t, err)
		assert.Equal(t, "/webhook/set/demo", captured.path)
		assert.Equal(t, "https://gw/webhook", captured.body["url"])
		assert.Equal(t, []interface{}{"messages.upsert"}, captured.body["events"])
	})

	t.Run("default events when none given", func(t *testing.T) {
		client, captured := newTestClient(t, okHandler)

		_, err := client.ConfigureWebhook(context.Background(), "demo", "https://gw/webhook", nil)
		require.NoError(t, err)
		assert.Len(t, captured.body["events"], 3)
	})
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Run("4xx propagates provider status and message", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "instance not found"}`))
		})

		_, err := client.GetInstanceInfo(context.Background(), "ghost")
		require.Error(t, err)

		appErr := errors.AsAppError(err)
		assert.Equal(t, errors.ErrTypeUpstream, appErr.Type)
		assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus())
		assert.Contains(t, appErr.Message, "instance not found")
	})

	t.Run("5xx maps to bad gateway", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message": "boom"}`))
		})

		_, err := client.GetInstanceStatus(context.Background(), "demo")
		require.Error(t, err)

		appErr := errors.AsAppError(err)
		assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())
	})

	t.Run("unreachable provider maps to bad gateway", func(t *testing.T) {
		client, err := NewClient(&Config{BaseURL: "http://127.0.0.1:1"}, nil)
		require.NoError(t, err)

		_, err = client.SendText(context.Background(), "demo", "x", "y")
		require.Error(t, err)

		appErr := errors.AsAppError(err)
		assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())
	})

	t.Run("non-JSON error body falls back to generic message", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("plain text failure"))
		})

		_, err := client.GetInstanceQR(context.Background(), "demo")
		require.Error(t, err)

		appErr := errors.AsAppError(err)
		assert.Equal(t, "provider request failed", appErr.Message)
	})
}

func TestClient_Health(t *testing.T) {
	client, captured := newTestClient(t, okHandler)
	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, "/health", captured.path)
}
