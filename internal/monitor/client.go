package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/breaker"
)

// Client reads breaker and health state from a running thirdeye server.
type Client struct {
	baseURL string
	client  *http.Client
}

// Health mirrors the server's GET /health body.
type Health struct {
	Status       string   `json:"status"`
	Eyes         int      `json:"eyes"`
	Sessions     int      `json:"sessions"`
	OpenBreakers []string `json:"open_breakers"`
}

type breakersResponse struct {
	Breakers []breaker.Status `json:"breakers"`
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Breakers returns the status of every breaker the server knows about.
func (c *Client) Breakers(ctx context.Context) ([]breaker.Status, error) {
	var resp breakersResponse
	if err := c.get(ctx, "/v1/breakers", &resp); err != nil {
		return nil, err
	}
	return resp.Breakers, nil
}

// Health returns the server's health summary.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
