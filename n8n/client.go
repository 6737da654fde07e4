package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client talks to the workflow-automation engine. One shared instance is
// enough: n8n runs as a single platform service, not per tenant.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClientFromEnv builds the client from N8N_PROTOCOL / N8N_HOST / N8N_PORT,
// defaulting to a local instance.
func NewClientFromEnv() *Client {
	protocol := strings.TrimSpace(os.Getenv("N8N_PROTOCOL"))
	if protocol == "" {
		protocol = "http"
	}
	host := strings.TrimSpace(os.Getenv("N8N_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("N8N_PORT"))
	if port == "" {
		port = "5678"
	}
	return &Client{
		baseURL: fmt.Sprintf("%s://%s:%s", protocol, host, port),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// HealthCheck pings the engine's healthz endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("n8n health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// TriggerWorkflow fires a workflow by its webhook path. Fire-and-forget from
// the caller's perspective; the response body is returned for logging only.
func (c *Client) TriggerWorkflow(ctx context.Context, webhookPath string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	endpoint := c.baseURL + "/webhook/" + strings.TrimLeft(webhookPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("n8n workflow trigger failed %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
