// Package monitoring forwards unexpected errors and panics to Sentry.
package monitoring

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

// Options configures the Sentry client.
type Options struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// Init sets up the global Sentry hub. It returns false, and does nothing,
// when no DSN is configured.
func Init(opts Options) (bool, error) {
	if opts.DSN == "" {
		return false, nil
	}
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          opts.Release,
		SampleRate:       sampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, fmt.Errorf("init sentry: %w", err)
	}
	return true, nil
}

// Report sends err to Sentry. It is a no-op before Init or for nil errors.
func Report(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// ReportRequest sends err tagged with the request it happened in.
func ReportRequest(r *http.Request, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
		return
	}
	Report(err)
}

// Middleware attaches a per-request hub and reports panics before
// re-raising them for the recoverer.
func Middleware() func(http.Handler) http.Handler {
	handler := sentryhttp.New(sentryhttp.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
	return handler.Handle
}

// Flush waits for buffered events.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
