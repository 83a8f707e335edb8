// Package ads pulls campaign performance from the Google Ads REST API,
// stores it for the admin dashboard and pauses campaigns that spend without
// converting.
package ads

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultBaseURL = "https://googleads.googleapis.com/v19"
	adwordsScope   = "https://www.googleapis.com/auth/adwords"
	dateLayout     = "2006-01-02"
)

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config defines the Google Ads account and credentials.
type Config struct {
	DeveloperToken  string
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	CustomerID      string
	LoginCustomerID string
	BaseURL         string
}

// Client calls the Google Ads API for one customer account.
type Client struct {
	httpClient      HTTPClient
	baseURL         string
	developerToken  string
	customerID      string
	loginCustomerID string
}

// NewClient authenticates with the OAuth2 refresh token in cfg. Access
// tokens are refreshed automatically.
func NewClient(ctx context.Context, cfg Config) *Client {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{adwordsScope},
	}
	httpClient := oauthCfg.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	httpClient.Timeout = 30 * time.Second
	return New(httpClient, cfg)
}

// New creates a client on an already-authenticated HTTP client.
func New(httpClient HTTPClient, cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		httpClient:      httpClient,
		baseURL:         base,
		developerToken:  cfg.DeveloperToken,
		customerID:      cfg.CustomerID,
		loginCustomerID: cfg.LoginCustomerID,
	}
}

// APIError is a failed Google Ads call.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google ads status %d (%s): %s", e.Status, e.Code, e.Message)
}

// micros decodes int64 fields, which the REST API sends as strings.
type micros int64

func (m *micros) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("decode int64 %s: %w", b, err)
	}
	*m = micros(n)
	return nil
}

type searchRow struct {
	Campaign struct {
		ResourceName string `json:"resourceName"`
		ID           micros `json:"id"`
		Name         string `json:"name"`
		Status       string `json:"status"`
	} `json:"campaign"`
	Metrics struct {
		Impressions micros  `json:"impressions"`
		Clicks      micros  `json:"clicks"`
		CostMicros  micros  `json:"costMicros"`
		Conversions float64 `json:"conversions"`
	} `json:"metrics"`
	Segments struct {
		Date string `json:"date"`
	} `json:"segments"`
}

type searchResponse struct {
	Results       []searchRow `json:"results"`
	NextPageToken string      `json:"nextPageToken"`
}

// search runs a GAQL query, following page tokens to the end.
func (c *Client) search(ctx context.Context, query string) ([]searchRow, error) {
	var (
		rows      []searchRow
		pageToken string
	)
	for {
		body := map[string]string{"query": query}
		if pageToken != "" {
			body["pageToken"] = pageToken
		}
		var page searchResponse
		if err := c.post(ctx, "/customers/"+c.customerID+"/googleAds:search", body, &page); err != nil {
			return nil, err
		}
		rows = append(rows, page.Results...)
		if page.NextPageToken == "" {
			return rows, nil
		}
		pageToken = page.NextPageToken
	}
}

// CampaignPerformance returns one metric row per campaign per day in
// [from, to].
func (c *Client) CampaignPerformance(ctx context.Context, from, to time.Time) ([]DailyMetric, error) {
	query := fmt.Sprintf(`
		SELECT
			campaign.id,
			campaign.name,
			campaign.status,
			campaign.resource_name,
			segments.date,
			metrics.impressions,
			metrics.clicks,
			metrics.cost_micros,
			metrics.conversions
		FROM campaign
		WHERE segments.date BETWEEN '%s' AND '%s'
			AND campaign.status != 'REMOVED'
		ORDER BY segments.date`,
		from.Format(dateLayout), to.Format(dateLayout))

	rows, err := c.search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("campaign performance: %w", err)
	}

	out := make([]DailyMetric, 0, len(rows))
	for _, r := range rows {
		day, err := time.Parse(dateLayout, r.Segments.Date)
		if err != nil {
			return nil, fmt.Errorf("parse segment date %q: %w", r.Segments.Date, err)
		}
		out = append(out, DailyMetric{
			CampaignID:     strconv.FormatInt(int64(r.Campaign.ID), 10),
			CampaignName:   r.Campaign.Name,
			CampaignStatus: r.Campaign.Status,
			ResourceName:   r.Campaign.ResourceName,
			Day:            day,
			Impressions:    int64(r.Metrics.Impressions),
			Clicks:         int64(r.Metrics.Clicks),
			CostMicros:     int64(r.Metrics.CostMicros),
			Conversions:    r.Metrics.Conversions,
		})
	}
	return out, nil
}

// PauseCampaign sets a campaign's status to PAUSED.
func (c *Client) PauseCampaign(ctx context.Context, resourceName string) error {
	body := map[string]any{
		"operations": []map[string]any{{
			"update":     map[string]string{"resourceName": resourceName, "status": "PAUSED"},
			"updateMask": "status",
		}},
	}
	if err := c.post(ctx, "/customers/"+c.customerID+"/campaigns:mutate", body, nil); err != nil {
		return fmt.Errorf("pause campaign %s: %w", resourceName, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("developer-token", c.developerToken)
	if c.loginCustomerID != "" {
		req.Header.Set("login-customer-id", c.loginCustomerID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Code, apiErr.Message = envelope.Error.Status, envelope.Error.Message
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

// ErrNotConfigured is returned when the Ads credentials are missing.
var ErrNotConfigured = errors.New("google ads is not configured")
