package leads

import (
	"strings"
	"testing"
	"time"

	"github.com/somersetwc/website/internal/pricing"
)

func TestSummaryForQuote(t *testing.T) {
	in := pricing.Input{
		Services: []pricing.Service{pricing.ServiceWindows, pricing.ServiceConservatory},
		Bedrooms: 7, Property: pricing.PropertyDetached, Extensions: 1, Frequency: pricing.FrequencyAdHoc,
	}
	lead := Lead{
		Kind:      KindQuote,
		Name:      "Jo Bloggs",
		Email:     "jo@example.com",
		Postcode:  "TA10 0AA",
		Services:  in.Services,
		Property:  in.Property,
		Bedrooms:  in.Bedrooms,
		Frequency: in.Frequency,
		Estimate:  pricing.Calculate(in),
		Status:    StatusNew,
		CreatedAt: time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
		Message:   "Side gate is unlocked.",
	}
	lead.Extensions = in.Extensions

	text := lead.Summary()
	for _, want := range []string{
		"Quote request from Jo Bloggs",
		"Received: 04 Mar 2024 09:30",
		"  Email: jo@example.com",
		"(outside the usual service area)",
		"  Type: Detached",
		"  Bedrooms: 6+",
		"  Extensions: 1",
		"  Frequency: One-off / ad-hoc",
		"  Window Cleaning: POA",
		"  Total: £0 + items priced on application",
		"Message:\nSide gate is unlocked.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Phone:") {
		t.Errorf("empty phone should be omitted:\n%s", text)
	}
}

func TestSummaryForContact(t *testing.T) {
	lead := Lead{Kind: KindContact, Name: "Al", Phone: "01823123456", Message: "Call me back please", InServiceArea: true, Postcode: "TA1 1AA"}
	text := lead.Summary()
	if !strings.HasPrefix(text, "Contact message from Al") {
		t.Fatalf("unexpected title:\n%s", text)
	}
	if strings.Contains(text, "Estimate:") || strings.Contains(text, "outside") {
		t.Fatalf("contact summary has quote-only sections:\n%s", text)
	}
}

func TestLeadLabels(t *testing.T) {
	lead := Lead{Bedrooms: 3, Estimate: pricing.Quote{Rows: []pricing.Row{{}}, Total: 120}}
	if lead.BedroomsLabel() != "3" || lead.EstimateLabel() != "£120" {
		t.Fatalf("labels = %q %q", lead.BedroomsLabel(), lead.EstimateLabel())
	}
	if (Lead{}).EstimateLabel() != "" {
		t.Fatalf("expected empty estimate label without rows")
	}
	if !lead.Synced(false, false) || lead.Synced(true, false) {
		t.Fatalf("unexpected Synced result")
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus(" booked "); !ok || s != StatusBooked {
		t.Fatalf("ParseStatus = %q, %v", s, ok)
	}
	if _, ok := ParseStatus("archived"); ok {
		t.Fatalf("expected unknown status to fail")
	}
}
