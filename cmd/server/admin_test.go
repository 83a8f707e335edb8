package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/somersetwc/website/internal/ads"
	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/pricing"
)

func TestAdminRoutesRequireLogin(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)

	for _, path := range []string{"/admin/leads", "/admin/ads", "/admin/leads/export.xlsx"} {
		resp, body := get(t, client, ts.URL+path)
		if resp.Request.URL.Path != "/admin/login" {
			t.Fatalf("%s: expected redirect to login, ended at %s", path, resp.Request.URL.Path)
		}
		assertContains(t, body, "Admin login")
	}
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	core, logs := observer.New(zap.WarnLevel)
	srv.logger = zap.New(core)
	ts, client := newTestClient(t, srv)

	resp, body := postForm(t, client, ts.URL+"/admin/login", url.Values{
		"email":    {testAdminEmail},
		"password": {"wrong"},
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	assertContains(t, body, "Invalid email or password.")

	failed := logs.FilterMessage("failed admin login").All()
	if len(failed) != 1 {
		t.Fatalf("expected one failed-login entry, got %d", len(failed))
	}
	if got := failed[0].ContextMap()["email"]; got != testAdminEmail {
		t.Fatalf("email field = %v, want %q", got, testAdminEmail)
	}
}

func TestAdminLeadsListOrdersAndFilters(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)
	login(t, ts, client)

	seedLead(t, srv, leads.Lead{Kind: leads.KindContact, Name: "Primera", Email: "a@example.com", Message: "about gutters"}, "2024-01-01 10:00:00.000000")
	seedLead(t, srv, leads.Lead{Kind: leads.KindQuote, Name: "Tercera", Postcode: "TA6 3AB"}, "2024-01-03 10:00:00.000000")
	seedLead(t, srv, leads.Lead{Kind: leads.KindQuote, Name: "Segunda", Postcode: "BA5 1AA"}, "2024-01-02 10:00:00.000000")

	_, body := get(t, client, ts.URL+"/admin/leads")
	first, second, third := strings.Index(body, "Tercera"), strings.Index(body, "Segunda"), strings.Index(body, "Primera")
	if first < 0 || second < 0 || third < 0 || !(first < second && second < third) {
		t.Fatalf("leads are not sorted newest first: %d %d %d", first, second, third)
	}
	assertContains(t, body, "3 total")

	_, body = get(t, client, ts.URL+"/admin/leads?q=TA6")
	if !strings.Contains(body, "Tercera") || strings.Contains(body, "Segunda") {
		t.Fatalf("expected search to match postcode only")
	}

	_, body = get(t, client, ts.URL+"/admin/leads?kind=contact")
	if !strings.Contains(body, "Primera") || strings.Contains(body, "Tercera") {
		t.Fatalf("expected kind filter to keep contact leads only")
	}

	resp, body := get(t, client, ts.URL+"/admin/leads?status=Pending")
	if resp.Request.URL.Query().Get("error") == "" {
		t.Fatalf("expected unknown status to redirect with an error")
	}
	assertContains(t, body, "unknown status")
}

func TestHandleAdminLeadTextReturnsPlainText(t *testing.T) {
	srv := newTestServer(t)
	lead := seedLead(t, srv, leads.Lead{
		Kind:      leads.KindQuote,
		Name:      "Jane",
		Email:     "jane@example.com",
		Services:  []pricing.Service{pricing.ServiceGutters},
		Property:  pricing.PropertySemi,
		Bedrooms:  2,
		Estimate:  pricing.Calculate(pricing.Input{Services: []pricing.Service{pricing.ServiceGutters}, Bedrooms: 2, Property: pricing.PropertySemi}),
		Postcode:  "TA1 1AA",
		Frequency: "",
	}, "2024-02-01 09:30:00.000000")

	req := httptest.NewRequest(http.MethodGet, "/admin/leads/"+lead.ID+"/text", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", lead.ID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	srv.handleAdminLeadText(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", rr.Header().Get("Content-Type"))
	}
	assertContains(t, rr.Body.String(), "Quote request from Jane", "Gutter Clearing: £70", "Total: £70")
}

func TestAdminLeadStatusUpdate(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)
	login(t, ts, client)

	lead := seedLead(t, srv, leads.Lead{Kind: leads.KindContact, Name: "Bob", Phone: "01823000000", Message: "Please call me back"}, "2024-03-01 09:00:00.000000")

	_, body := postForm(t, client, ts.URL+"/admin/leads/"+lead.ID+"/status", url.Values{"status": {"booked"}})
	assertContains(t, body, "Status set to Booked")

	got, err := srv.leads.Store().Get(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("reload lead: %v", err)
	}
	if got.Status != leads.StatusBooked {
		t.Fatalf("expected Booked, got %s", got.Status)
	}

	_, body = postForm(t, client, ts.URL+"/admin/leads/"+lead.ID+"/status", url.Values{"status": {"archived"}})
	assertContains(t, body, "Unknown status")
}

func TestAdminExportIsWorkbook(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)
	login(t, ts, client)

	seedLead(t, srv, leads.Lead{Kind: leads.KindContact, Name: "=HYPERLINK(\"x\")", Email: "x@example.com", Message: "spreadsheet injection"}, "2024-03-01 09:00:00.000000")

	resp, body := get(t, client, ts.URL+"/admin/leads/export.xlsx")
	if !strings.Contains(resp.Header.Get("Content-Disposition"), ".xlsx") {
		t.Fatalf("expected an xlsx attachment, got %q", resp.Header.Get("Content-Disposition"))
	}

	f, err := excelize.OpenReader(bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Leads")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and one lead, got %d rows", len(rows))
	}
	found := false
	for _, cell := range rows[1] {
		if cell == "'=HYPERLINK(\"x\")" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected formula to be neutralised: %v", rows[1])
	}
}

func TestAdminAdsShowsStoredMetrics(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)
	login(t, ts, client)

	today := srv.now().UTC()
	err := srv.ads.UpsertDaily(context.Background(), []ads.DailyMetric{
		{CampaignID: "1", CampaignName: "Taunton windows", CampaignStatus: "ENABLED", ResourceName: "customers/1/campaigns/1", Day: today, Impressions: 1000, Clicks: 50, CostMicros: 60_000_000},
		{CampaignID: "2", CampaignName: "Gutters", CampaignStatus: "ENABLED", ResourceName: "customers/1/campaigns/2", Day: today, Impressions: 200, Clicks: 10, CostMicros: 5_000_000, Conversions: 1},
	})
	if err != nil {
		t.Fatalf("upsert metrics: %v", err)
	}

	_, body := get(t, client, ts.URL+"/admin/ads")
	assertContains(t, body, "Taunton windows", "£60.00", "5.0%", "API not configured")
	if !strings.Contains(body, "<strong>Taunton windows</strong>") {
		t.Fatalf("expected the spending campaign to be flagged by the guard")
	}

	_, body = postForm(t, client, ts.URL+"/admin/ads/sync", nil)
	assertContains(t, body, "Google Ads API is not configured")
}
