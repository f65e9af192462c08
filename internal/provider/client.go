// Package provider implements the Evolution API client. It is a thin façade:
// request bodies are typed where the gateway adds structure, responses are
// passed through verbatim, and provider failures are normalized into the
// gateway error taxonomy.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"evolution-gateway/internal/common/errors"
	"evolution-gateway/internal/common/logging"
)

const defaultTimeout = 30 * time.Second

// Config holds the provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// RequestsPerSecond throttles outbound calls to the provider. Zero
	// disables the throttle.
	RequestsPerSecond float64
}

// Client talks to the Evolution API. All methods honor the request context
// and return the provider response body verbatim on success.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
}

// NewClient validates the configuration and builds a client.
func NewClient(config *Config, logger logging.Logger) (*Client, error) {
	if config == nil || config.BaseURL == "" {
		return nil, errors.ConfigError("provider base URL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid provider base URL: %v", err))
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), int(config.RequestsPerSecond)+1)
	}

	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
		logger:     logger.WithFields(logging.String("component", "provider_client")),
	}, nil
}

// PageOptions carries cursor pagination parameters for listing calls.
type PageOptions struct {
	Limit  int
	Cursor string
}

func (p *PageOptions) query() url.Values {
	q := url.Values{}
	limit := 50
	if p != nil && p.Limit > 0 {
		limit = p.Limit
	}
	q.Set("limit", strconv.Itoa(limit))
	if p != nil && p.Cursor != "" {
		q.Set("cursor", p.Cursor)
	}
	return q
}

// Instance lifecycle.

func (c *Client) CreateInstance(ctx context.Context, instance string, config map[string]interface{}) (json.RawMessage, error) {
	body := map[string]interface{}{"instance": instance}
	for k, v := range config {
		body[k] = v
	}
	return c.do(ctx, http.MethodPost, "/instance/create", nil, body)
}

func (c *Client) ConnectInstance(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/instance/connect/"+instance, nil, nil)
}

func (c *Client) DisconnectInstance(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/instance/disconnect/"+instance, nil, nil)
}

func (c *Client) DeleteInstance(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, "/instance/delete/"+instance, nil, nil)
}

func (c *Client) GetInstanceInfo(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/instance/info/"+instance, nil, nil)
}

func (c *Client) GetInstanceStatus(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/instance/status/"+instance, nil, nil)
}

func (c *Client) GetInstanceQR(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/instance/qrcode/"+instance, nil, nil)
}

func (c *Client) GetInstanceConfig(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/instance/config/"+instance, nil, nil)
}

func (c *Client) UpdateInstanceConfig(ctx context.Context, instance string, config map[string]interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, "/instance/config/"+instance, nil, config)
}

// Outbound messages. Each send maps to its own provider endpoint; the body
// shapes follow the provider contract.

func (c *Client) SendText(ctx context.Context, instance, to, text string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendText/"+instance, nil, map[string]interface{}{
		"number": to,
		"text":   text,
	})
}

func (c *Client) SendImage(ctx context.Context, instance, to, imageURL, caption string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendImage/"+instance, nil, map[string]interface{}{
		"number":  to,
		"image":   imageURL,
		"caption": caption,
	})
}

func (c *Client) SendDocument(ctx context.Context, instance, to, documentURL, fileName, caption string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendDocument/"+instance, nil, map[string]interface{}{
		"number":   to,
		"document": documentURL,
		"fileName": fileName,
		"caption":  caption,
	})
}

func (c *Client) SendAudio(ctx context.Context, instance, to, audioURL string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendAudio/"+instance, nil, map[string]interface{}{
		"number": to,
		"audio":  audioURL,
	})
}

func (c *Client) SendVideo(ctx context.Context, instance, to, videoURL, caption string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendVideo/"+instance, nil, map[string]interface{}{
		"number":  to,
		"video":   videoURL,
		"caption": caption,
	})
}

func (c *Client) SendLocation(ctx context.Context, instance, to string, latitude, longitude float64, name, address string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendLocation/"+instance, nil, map[string]interface{}{
		"number":    to,
		"latitude":  latitude,
		"longitude": longitude,
		"name":      name,
		"address":   address,
	})
}

func (c *Client) SendContact(ctx context.Context, instance, to, contactNumber, contactName string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendContact/"+instance, nil, map[string]interface{}{
		"number": to,
		"contact": map[string]string{
			"number": contactNumber,
			"name":   contactName,
		},
	})
}

func (c *Client) SendButtons(ctx context.Context, instance, to, title, body string, buttons []string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendButtons/"+instance, nil, map[string]interface{}{
		"number":  to,
		"title":   title,
		"body":    body,
		"buttons": buttons,
	})
}

// Message and conversation queries.

func (c *Client) GetMessageHistory(ctx context.Context, instance, phone string, opts *PageOptions) (json.RawMessage, error) {
	q := opts.query()
	q.Set("number", phone)
	return c.do(ctx, http.MethodGet, "/message/findAll/"+instance, q, nil)
}

func (c *Client) GetMessageStatus(ctx context.Context, instance, messageID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/message/findOne/"+instance+"/"+messageID, nil, nil)
}

func (c *Client) GetChats(ctx context.Context, instance string, opts *PageOptions) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/chat/findAll/"+instance, opts.query(), nil)
}

func (c *Client) GetContacts(ctx context.Context, instance string, opts *PageOptions) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/contact/findAll/"+instance, opts.query(), nil)
}

// Webhook registration.

// DefaultWebhookEvents is used when a webhook is configured without an
// explicit event selection.
var DefaultWebhookEvents = []string{"messages.upsert", "messages.update", "connection.update"}

func (c *Client) ConfigureWebhook(ctx context.Context, instance, webhookURL string, webhookEvents []string) (json.RawMessage, error) {
	if len(webhookEvents) == 0 {
		webhookEvents = DefaultWebhookEvents
	}
	return c.do(ctx, http.MethodPost, "/webhook/set/"+instance, nil, map[string]interface{}{
		"url":    webhookURL,
		"events": webhookEvents,
	})
}

func (c *Client) GetWebhookConfig(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/webhook/find/"+instance, nil, nil)
}

// Health reports whether the provider is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err
}

// do executes one provider call: throttle, marshal, attach the apikey header,
// and normalize failures into upstream errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.UpstreamError("provider request cancelled", 0, err)
		}
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.InternalError("failed to marshal request body", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}
	req.Header.Set("apikey", c.apiKey)
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Provider request failed", err,
			logging.String("method", method),
			logging.String("path", path),
		)
		return nil, errors.UpstreamError("provider unreachable", 0, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.UpstreamError("failed to read provider response", 0, err)
	}

	c.logger.Debug("Provider request completed",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.upstreamError(resp.StatusCode, responseBody, path)
	}

	return responseBody, nil
}

// upstreamError extracts the provider's error message when the body carries
// one and wraps it with the provider status.
func (c *Client) upstreamError(status int, body []byte, path string) error {
	message := "provider request failed"
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		message = parsed.Message
	}

	c.logger.Warn("Provider returned error",
		logging.String("path", path),
		logging.Int("status", status),
		logging.String("message", message),
	)

	return errors.UpstreamError(message, status, nil)
}
