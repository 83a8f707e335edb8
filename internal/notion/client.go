// Package notion pushes leads into a Notion database used as the CRM.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config defines settings for the Notion client.
type Config struct {
	Token      string
	DatabaseID string
	BaseURL    string
	MaxRetries int
	Backoff    time.Duration
}

// Client talks to the Notion REST API.
type Client struct {
	token      string
	databaseID string
	baseURL    string
	httpClient HTTPClient
	maxRetries int
	backoff    time.Duration
}

// New creates a Notion client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &Client{
		token:      cfg.Token,
		databaseID: cfg.DatabaseID,
		baseURL:    base,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// APIError is a non-2xx response from Notion.
type APIError struct {
	Status     int
	Code       string
	Message    string
	retryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion status %d (%s): %s", e.Status, e.Code, e.Message)
}

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type pageResponse struct {
	ID string `json:"id"`
}

// createPage adds a row to the database and returns its page id.
func (c *Client) createPage(ctx context.Context, props map[string]any) (string, error) {
	body := map[string]any{
		"parent":     map[string]string{"database_id": c.databaseID},
		"properties": props,
	}
	var page pageResponse
	if err := c.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return "", err
	}
	if page.ID == "" {
		return "", errors.New("notion: page created without an id")
	}
	return page.ID, nil
}

func (c *Client) updatePage(ctx context.Context, pageID string, props map[string]any) error {
	body := map[string]any{"properties": props}
	return c.do(ctx, http.MethodPatch, "/pages/"+pageID, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode notion request: %w", err)
	}

	var (
		attempts   int
		retryAfter time.Duration
	)
	backoff := retry.WithMaxRetries(uint64(c.maxRetries-1), retry.NewExponential(c.backoff))
	backoff = honourRetryAfter(backoff, &retryAfter)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		retryAfter = 0
		err := c.send(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !apiErr.Temporary() {
				return err
			}
			retryAfter = apiErr.retryAfter
		}
		return retry.RetryableError(err)
	})
	if err != nil && attempts >= c.maxRetries {
		return fmt.Errorf("notion request failed after %d attempts: %w", attempts, err)
	}
	return err
}

// honourRetryAfter waits at least as long as the server asked.
func honourRetryAfter(next retry.Backoff, retryAfter *time.Duration) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		wait, stop := next.Next()
		if stop {
			return 0, true
		}
		if *retryAfter > wait {
			wait = *retryAfter
		}
		return wait, false
	})
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Code, apiErr.Message = body.Code, body.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(raw))
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.retryAfter = time.Duration(secs) * time.Second
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
