// Package recaptcha checks reCAPTCHA v3 tokens submitted with forms.
package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

var (
	ErrMissingToken   = errors.New("recaptcha token missing")
	ErrFailed         = errors.New("recaptcha verification failed")
	ErrLowScore       = errors.New("recaptcha score below threshold")
	ErrActionMismatch = errors.New("recaptcha action mismatch")
)

// HTTPClient matches net/http.Client Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config defines settings for the verifier.
type Config struct {
	Secret    string
	MinScore  float64
	VerifyURL string
}

// Verifier checks tokens against Google's siteverify endpoint.
type Verifier struct {
	secret     string
	minScore   float64
	verifyURL  string
	httpClient HTTPClient
	logger     *zap.Logger
	warnOnce   sync.Once
}

// New creates a Verifier. Without a secret every token passes.
func New(httpClient HTTPClient, cfg Config, logger *zap.Logger) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	verifyURL := cfg.VerifyURL
	if verifyURL == "" {
		verifyURL = defaultVerifyURL
	}
	return &Verifier{
		secret:     cfg.Secret,
		minScore:   cfg.MinScore,
		verifyURL:  verifyURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Enabled reports whether tokens are actually checked.
func (v *Verifier) Enabled() bool { return v.secret != "" }

// Result is the decoded siteverify response.
type Result struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks token for the expected action.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP, action string) (Result, error) {
	if !v.Enabled() {
		v.warnOnce.Do(func() {
			v.logger.Warn("recaptcha secret not set; form submissions are not verified")
		})
		return Result{Success: true, Score: 1, Action: action}, nil
	}
	if strings.TrimSpace(token) == "" {
		return Result{}, ErrMissingToken
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("siteverify status %d", resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	switch {
	case !res.Success:
		return res, fmt.Errorf("%w: %s", ErrFailed, strings.Join(res.ErrorCodes, ","))
	case action != "" && res.Action != action:
		return res, fmt.Errorf("%w: got %q want %q", ErrActionMismatch, res.Action, action)
	case res.Score < v.minScore:
		return res, fmt.Errorf("%w: %.2f < %.2f", ErrLowScore, res.Score, v.minScore)
	}
	return res, nil
}

// Rejected reports whether err means the submission looked automated, as
// opposed to siteverify being unreachable.
func Rejected(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrFailed) ||
		errors.Is(err, ErrLowScore) ||
		errors.Is(err, ErrActionMismatch)
}
