package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the configuration for connecting to the Nexora API.
type Config struct {
	APIURL       string // Base URL, e.g. "http://localhost:8080"
	SessionToken string // Bearer session token; alert tools need one
}

// Client is a pure HTTP client for the Nexora API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new client for the Nexora API.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.SessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.SessionToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// CheckRisk scores an identifier.
func (c *Client) CheckRisk(ctx context.Context, entity, entityType string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/risk/check", map[string]string{
		"entity":     entity,
		"entityType": entityType,
	})
}

// AnalyzeContent scans a message, optionally with its sender.
func (c *Client) AnalyzeContent(ctx context.Context, content, contentType, sender string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/content/analyze", map[string]string{
		"content":      content,
		"contentType":  contentType,
		"senderEntity": sender,
	})
}

// PendingAlerts lists unacknowledged alerts for the session user.
func (c *Client) PendingAlerts(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/alerts/pending", nil)
}

// AcknowledgeAlert records a decision on an alert.
func (c *Client) AcknowledgeAlert(ctx context.Context, alertID, action string) (json.RawMessage, error) {
	path := "/v1/alerts/" + url.PathEscape(alertID) + "/acknowledge"
	return c.doRequest(ctx, http.MethodPost, path, map[string]string{"action": action})
}

// Protect watches an identifier for the session user.
func (c *Client) Protect(ctx context.Context, entity string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/protection", map[string]string{"entity": entity})
}
