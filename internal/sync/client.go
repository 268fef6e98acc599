package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lifelog-dev/lifelog/internal/models"
)

// Client talks to the host's sync API with the device's bearer token.
// Data calls get a generous timeout; liveness probes a short one.
type Client struct {
	baseURL string
	token   string
	data    *http.Client
	probe   *http.Client
}

// NewClient builds a Client for the host at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		data:    &http.Client{Timeout: 30 * time.Second},
		probe:   &http.Client{Timeout: 3 * time.Second},
	}
}

// Ping checks connectivity to the host.
func (c *Client) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("host URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

// Push sends one queued change to the host. It is only satisfied by a 2xx
// response carrying {"status":"success"}; anything else leaves the entry
// pending.
func (c *Client) Push(ctx context.Context, table, operation string, payload json.RawMessage) error {
	body, err := json.Marshal(PushRequest{Operation: operation, Data: payload})
	if err != nil {
		return fmt.Errorf("encode push: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, "/api/v1/sync/"+table, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push %s %s: host returned %d", operation, table, resp.StatusCode)
	}
	var ack PushResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("decode push ack: %w", err)
	}
	if ack.Status != "success" {
		return fmt.Errorf("push %s %s: host status %q", operation, table, ack.Status)
	}
	return nil
}

// FetchSince returns the host's full snapshots for table with updated_at at
// or after since, tombstones included. A zero since fetches everything.
func (c *Client) FetchSince(ctx context.Context, table string, since time.Time) ([]json.RawMessage, error) {
	path := "/api/v1/sync/" + table
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(models.FormatTime(since))
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: host returned %d", table, resp.StatusCode)
	}
	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s records: %w", table, err)
	}
	return records, nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return c.data.Do(req)
}
