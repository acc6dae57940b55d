// Package remote talks to a snippets server over HTTP. Client implements
// autosave.Remote so an editor can persist to another process.
package remote

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

	"snippets/internal/domain"
)

type Config struct {
	// Endpoint is the server base URL, e.g. "http://localhost:7420".
	Endpoint string
	Timeout  time.Duration
	// UserID is sent as X-User-ID.
	UserID string
}

type Client struct {
	endpoint string
	user     string
	client   *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		user:     cfg.UserID,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) GetSnippet(ctx context.Context, id string) (*domain.Snippet, error) {
	var sn domain.Snippet
	if err := c.call(ctx, http.MethodGet, "/api/snippets/"+url.PathEscape(id), nil, &sn); err != nil {
		return nil, err
	}
	return &sn, nil
}

// UpdateSnippet sends patch as a PATCH and returns the stored snippet.
func (c *Client) UpdateSnippet(ctx context.Context, id string, patch domain.DocumentPatch) (*domain.Snippet, error) {
	var sn domain.Snippet
	if err := c.call(ctx, http.MethodPatch, "/api/snippets/"+url.PathEscape(id), patch, &sn); err != nil {
		return nil, err
	}
	return &sn, nil
}

func (c *Client) ListSnippets(ctx context.Context, projectID string) ([]domain.Snippet, error) {
	var list []domain.Snippet
	if err := c.call(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/snippets", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Ping checks the server health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	u := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps error responses back onto the domain sentinels.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidDocument, msg)
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

// StatusError is a non-2xx response that has no domain meaning.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
