package main

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/somersetwc/website/internal/leads"
)

func TestMarketingPagesRender(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)

	tests := map[string][]string{
		"/":         {"Somerset Window Cleaning", "Free window clean", "Helen, Taunton"},
		"/services": {"Window Cleaning", "From £15", "Do I need to be at home?"},
		"/about":    {"About Somerset Window Cleaning"},
		"/areas":    {"Bridgwater", "TA6"},
		"/privacy":  {"Privacy notice"},
		"/contact":  {"Contact us"},
	}
	for path, expected := range tests {
		resp, body := get(t, client, ts.URL+path)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		assertContains(t, body, expected...)
	}
}

func TestUnknownPageIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)

	resp, body := get(t, client, ts.URL+"/pressure-washing")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	assertContains(t, body, "Page not found")
}

func TestStaticAndHealth(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)

	resp, _ := get(t, client, ts.URL+"/static/site.css")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected stylesheet, got %d", resp.StatusCode)
	}

	resp, body := get(t, client, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	assertContains(t, body, `"status":"ok"`)
}

func TestContactFormSubmitsLead(t *testing.T) {
	srv := newTestServer(t)
	ts, client := newTestClient(t, srv)

	resp, body := postForm(t, client, ts.URL+"/contact", url.Values{
		"name":    {"Dan"},
		"email":   {"not-an-email"},
		"message": {"hi"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	assertContains(t, body, "Please enter a valid email address.", "Please tell us a little more.", `value="Dan"`)

	resp, body = postForm(t, client, ts.URL+"/contact", url.Values{
		"name":     {"Dan"},
		"email":    {"dan@example.com"},
		"postcode": {"BA20 1AA"},
		"message":  {"Do you clean conservatory roofs?"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	assertContains(t, body, "Thanks for your message.")

	list, err := srv.leads.Store().List(context.Background(), leads.ListQuery{Kind: leads.KindContact})
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Dan" || !list[0].InServiceArea || list[0].PreferredContact != "either" {
		t.Fatalf("unexpected leads: %+v", list)
	}
}
