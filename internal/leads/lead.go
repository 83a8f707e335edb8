// Package leads stores customer enquiries and forwards them to the CRM,
// the notification mailer and analytics.
package leads

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/somersetwc/website/internal/pricing"
)

// ErrNotFound is returned when a lead id does not exist.
var ErrNotFound = errors.New("lead not found")

// Kind says which form produced the lead.
type Kind string

const (
	KindQuote   Kind = "quote"
	KindContact Kind = "contact"
)

// Status mirrors the CRM pipeline column.
type Status string

const (
	StatusNew       Status = "New"
	StatusContacted Status = "Contacted"
	StatusQuoted    Status = "Quoted"
	StatusBooked    Status = "Booked"
	StatusLost      Status = "Lost"
)

// Statuses lists the pipeline in order.
func Statuses() []Status {
	return []Status{StatusNew, StatusContacted, StatusQuoted, StatusBooked, StatusLost}
}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range Statuses() {
		if strings.EqualFold(string(s), raw) {
			return s, true
		}
	}
	return "", false
}

// Lead is a customer's quote or contact request.
type Lead struct {
	ID               string
	Kind             Kind
	Name             string
	Email            string
	Phone            string
	Address          string
	Postcode         string
	PreferredContact string
	Message          string

	Services   []pricing.Service
	Property   pricing.PropertyType
	Bedrooms   int
	Extensions int
	Frequency  pricing.Frequency
	Estimate   pricing.Quote

	Source        string
	InServiceArea bool
	Status        Status

	NotionPageID      string
	EmailSent         bool
	SyncError         string
	SyncAttempts      int
	AnalyticsClientID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServiceLabels returns the selected services by display name.
func (l Lead) ServiceLabels() []string {
	out := make([]string, 0, len(l.Services))
	for _, s := range l.Services {
		out = append(out, s.Label())
	}
	return out
}

// BedroomsLabel renders the bedroom count with the 6+ bucket.
func (l Lead) BedroomsLabel() string {
	if l.Bedrooms <= 0 {
		return ""
	}
	if l.Bedrooms >= pricing.MaxBedrooms {
		return fmt.Sprintf("%d+", pricing.MaxBedrooms)
	}
	return fmt.Sprintf("%d", l.Bedrooms)
}

// EstimateLabel is the one-line total used in notifications.
func (l Lead) EstimateLabel() string {
	if len(l.Estimate.Rows) == 0 {
		return ""
	}
	label := pricing.FormatGBP(l.Estimate.Total)
	if l.Estimate.HasPOA {
		label += " + items priced on application"
	}
	return label
}

// Synced reports whether every configured sink has the lead.
func (l Lead) Synced(needCRM, needEmail bool) bool {
	if needCRM && l.NotionPageID == "" {
		return false
	}
	if needEmail && !l.EmailSent {
		return false
	}
	return true
}

// Summary renders the lead as plain text for pasting into messages.
func (l Lead) Summary() string {
	var b strings.Builder
	title := "Quote request"
	if l.Kind == KindContact {
		title = "Contact message"
	}
	fmt.Fprintf(&b, "%s from %s\n", title, l.Name)
	fmt.Fprintf(&b, "Received: %s\n", l.CreatedAt.Format("02 Jan 2006 15:04"))
	fmt.Fprintf(&b, "Status: %s\n\n", l.Status)

	b.WriteString("Contact:\n")
	writeLine(&b, "Email", l.Email)
	writeLine(&b, "Phone", l.Phone)
	writeLine(&b, "Address", l.Address)
	writeLine(&b, "Postcode", l.Postcode)
	writeLine(&b, "Prefers", l.PreferredContact)
	if !l.InServiceArea && l.Postcode != "" {
		b.WriteString("  (outside the usual service area)\n")
	}

	if l.Kind == KindQuote {
		b.WriteString("\nProperty:\n")
		writeLine(&b, "Type", l.Property.Label())
		writeLine(&b, "Bedrooms", l.BedroomsLabel())
		if l.Extensions > 0 {
			writeLine(&b, "Extensions", fmt.Sprintf("%d", l.Extensions))
		}
		if l.Frequency != "" {
			writeLine(&b, "Frequency", l.Frequency.Label())
		}

		b.WriteString("\nEstimate:\n")
		for _, r := range l.Estimate.Rows {
			fmt.Fprintf(&b, "  %s: %s\n", r.Label, r.Display())
		}
		fmt.Fprintf(&b, "  Total: %s\n", l.EstimateLabel())
	}

	if l.Message != "" {
		fmt.Fprintf(&b, "\nMessage:\n%s\n", l.Message)
	}
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s: %s\n", label, value)
}
