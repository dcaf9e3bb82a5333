package vault

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client addresses the asset store. The store itself is a dumb blob
// server that trusts capability tokens signed with the shared keys;
// this client only needs to build object URLs and check liveness.
type Client struct {
	baseURL     string
	pingTimeout time.Duration
	httpClient  *http.Client
}

func NewClient(baseURL string, pingTimeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid vault base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("vault base URL must be http or https, got %q", baseURL)
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		pingTimeout: pingTimeout,
		httpClient:  &http.Client{Timeout: pingTimeout},
	}, nil
}

// ObjectURL returns the absolute URL of an object key on the store.
func (c *Client) ObjectURL(key string) string {
	return c.baseURL + "/" + strings.TrimLeft(key, "/")
}

// ObjectPath returns the URL path the store serves the key under. This
// is the path capability tokens must match.
func (c *Client) ObjectPath(key string) string {
	return "/" + strings.TrimLeft(key, "/")
}

// Ping checks that the store answers on its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build vault ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vault is unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vault health check returned status %d", resp.StatusCode)
	}

	return nil
}
