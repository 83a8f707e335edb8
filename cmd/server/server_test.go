package main

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/somersetwc/website/internal/config"
	"github.com/somersetwc/website/internal/content"
	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/seed"
	"github.com/somersetwc/website/internal/testdb"
	"github.com/somersetwc/website/web"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "correct-horse"
	testWebhookSecret = "whsec_test"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	database := testdb.Open(t)
	if _, err := seed.Run(database, seed.Config{AdminEmail: testAdminEmail, AdminPassword: testAdminPassword}); err != nil {
		t.Fatalf("seed database: %v", err)
	}
	site, err := content.Load(web.FS, web.ContentPath)
	if err != nil {
		t.Fatalf("load site content: %v", err)
	}

	cfg := config.Config{
		Env:            "development",
		BaseURL:        "http://localhost:8080",
		SessionSecret:  "test-session-secret",
		WebhookSecret:  testWebhookSecret,
		FormsPerMinute: 100,
		DraftLifetime:  time.Hour,
	}
	srv, err := newServer(context.Background(), cfg, zap.NewNop(), database, site)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return srv
}

// newTestClient starts srv and returns a cookie-keeping client for it.
func newTestClient(t *testing.T, srv *server) (*httptest.Server, *http.Client) {
	t.Helper()

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return ts, &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func postForm(t *testing.T, client *http.Client, target string, form url.Values) (*http.Response, string) {
	t.Helper()

	resp, err := client.PostForm(target, form)
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	return resp, readBody(t, resp)
}

func get(t *testing.T, client *http.Client, target string) (*http.Response, string) {
	t.Helper()

	resp, err := client.Get(target)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func login(t *testing.T, ts *httptest.Server, client *http.Client) {
	t.Helper()

	resp, _ := postForm(t, client, ts.URL+"/admin/login", url.Values{
		"email":    {testAdminEmail},
		"password": {testAdminPassword},
	})
	if resp.StatusCode != http.StatusOK || resp.Request.URL.Path != "/admin/leads" {
		t.Fatalf("login landed on %s with %d", resp.Request.URL.Path, resp.StatusCode)
	}
}

// seedLead stores a lead and backdates it so list ordering is deterministic.
func seedLead(t *testing.T, srv *server, lead leads.Lead, createdAt string) leads.Lead {
	t.Helper()

	if err := srv.leads.Store().Create(context.Background(), &lead); err != nil {
		t.Fatalf("create lead: %v", err)
	}
	if _, err := srv.db.Exec(`UPDATE leads SET created_at = ? WHERE id = ?`, createdAt, lead.ID); err != nil {
		t.Fatalf("backdate lead: %v", err)
	}
	return lead
}

func assertContains(t *testing.T, body string, expected ...string) {
	t.Helper()
	for _, e := range expected {
		if !strings.Contains(body, e) {
			t.Fatalf("expected body to contain %q, got: %s", e, body)
		}
	}
}
