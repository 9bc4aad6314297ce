package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for the failure classes a cycle distinguishes.
var (
	// ErrServerUnreachable covers transport failures and non-2xx responses.
	ErrServerUnreachable = errors.New("server unreachable")
	// ErrDecode is returned when a response body is not the expected JSON.
	ErrDecode = errors.New("decode response")
)

// Client is an HTTP client for the plugin development server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a new client. A trailing slash on baseURL is ignored.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ChangedFile is one entry of the server's change list.
type ChangedFile struct {
	Path string `json:"path"`
}

// CheckUpdatesResponse is the response from GET /api/check-updates.
type CheckUpdatesResponse struct {
	Files []ChangedFile `json:"files"`
}

// FileContent is the response from GET /api/file.
type FileContent struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// CheckUpdates fetches the list of files changed since the last clear.
func (c *Client) CheckUpdates(ctx context.Context) (*CheckUpdatesResponse, error) {
	var resp CheckUpdatesResponse
	if err := c.do(ctx, http.MethodGet, "/api/check-updates", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFile downloads one changed file by its server-relative path.
func (c *Client) GetFile(ctx context.Context, name string) (*FileContent, error) {
	params := url.Values{}
	params.Set("name", name)

	var resp FileContent
	if err := c.do(ctx, http.MethodGet, "/api/file?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearUpdates tells the server the change list was consumed.
// The response body is ignored.
func (c *Client) ClearUpdates(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/clear-updates", nil, nil)
}

// --- HTTP helpers ---

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrServerUnreachable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrServerUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrServerUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrServerUnreachable, method, path, resp.StatusCode, truncate(string(respBody), 200))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
		}
	}

	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
