// Package analytics reports conversions to Google Analytics 4 through the
// Measurement Protocol.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/somersetwc/website/internal/leads"
)

const defaultEndpoint = "https://www.google-analytics.com/mp/collect"

// CookieName is the cookie gtag.js stores the client id in.
const CookieName = "_ga"

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config defines settings for the GA4 client.
type Config struct {
	MeasurementID string
	APISecret     string
	Endpoint      string
}

// Client sends Measurement Protocol events.
type Client struct {
	measurementID string
	apiSecret     string
	endpoint      string
	httpClient    HTTPClient
}

// New creates a GA4 client.
func New(httpClient HTTPClient, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		measurementID: cfg.MeasurementID,
		apiSecret:     cfg.APISecret,
		endpoint:      endpoint,
		httpClient:    httpClient,
	}
}

// Event is one Measurement Protocol event.
type Event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

type payload struct {
	ClientID string  `json:"client_id"`
	Events   []Event `json:"events"`
}

// Send posts events for the given client id.
func (c *Client) Send(ctx context.Context, clientID string, events ...Event) error {
	body, err := json.Marshal(payload{ClientID: clientID, Events: events})
	if err != nil {
		return fmt.Errorf("encode ga4 events: %w", err)
	}

	q := url.Values{}
	q.Set("measurement_id", c.measurementID)
	q.Set("api_secret", c.apiSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ga4 status %d", resp.StatusCode)
	}
	return nil
}

// TrackLead records a generate_lead conversion.
func (c *Client) TrackLead(ctx context.Context, lead leads.Lead) error {
	clientID := lead.AnalyticsClientID
	if clientID == "" {
		clientID = NewClientID(time.Now())
	}
	params := map[string]any{
		"lead_kind":       string(lead.Kind),
		"in_service_area": lead.InServiceArea,
	}
	if lead.Kind == leads.KindQuote {
		params["currency"] = "GBP"
		params["value"] = lead.Estimate.Total
		params["services"] = strings.Join(lead.ServiceLabels(), ",")
		params["needs_quote"] = lead.Estimate.HasPOA
	}
	if lead.Source != "" {
		params["lead_source"] = lead.Source
	}
	return c.Send(ctx, clientID, Event{Name: "generate_lead", Params: params})
}

// ClientIDFromCookie extracts the client id from a _ga cookie value such
// as "GA1.1.1234567890.1700000000".
func ClientIDFromCookie(value string) (string, bool) {
	parts := strings.Split(value, ".")
	if len(parts) < 4 || !strings.HasPrefix(parts[0], "GA") {
		return "", false
	}
	id := parts[len(parts)-2] + "." + parts[len(parts)-1]
	for _, p := range parts[len(parts)-2:] {
		if _, err := strconv.ParseUint(p, 10, 64); err != nil {
			return "", false
		}
	}
	return id, true
}

// ClientIDFromRequest reads the _ga cookie, if any.
func ClientIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	id, _ := ClientIDFromCookie(cookie.Value)
	return id
}

// NewClientID makes an id in the same shape gtag.js uses.
func NewClientID(now time.Time) string {
	return fmt.Sprintf("%d.%d", rand.Int64N(1_000_000_000)+1_000_000_000, now.Unix())
}
