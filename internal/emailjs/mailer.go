package emailjs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/somersetwc/website/internal/leads"
)

// MailerConfig names the templates used for lead emails.
type MailerConfig struct {
	NotifyTemplate    string
	AutoReplyTemplate string
	OwnerEmail        string
	BaseURL           string
}

// LeadMailer emails the owner about new leads and, when a template is
// configured, thanks the customer.
type LeadMailer struct {
	client *Client
	cfg    MailerConfig
	logger *zap.Logger
}

// NewLeadMailer wires a mailer to a client.
func NewLeadMailer(client *Client, cfg MailerConfig, logger *zap.Logger) *LeadMailer {
	return &LeadMailer{client: client, cfg: cfg, logger: logger}
}

// NotifyLead sends the owner notification. A failed auto-reply is logged
// rather than returned so a retry does not email the owner twice.
func (m *LeadMailer) NotifyLead(ctx context.Context, lead leads.Lead) error {
	params := LeadParams(lead)
	params["to_email"] = m.cfg.OwnerEmail
	if m.cfg.BaseURL != "" {
		params["admin_url"] = strings.TrimRight(m.cfg.BaseURL, "/") + "/admin/leads/" + lead.ID
	}
	if err := m.client.Send(ctx, m.cfg.NotifyTemplate, params); err != nil {
		return fmt.Errorf("send owner notification: %w", err)
	}

	if m.cfg.AutoReplyTemplate == "" || lead.Email == "" {
		return nil
	}
	reply := LeadParams(lead)
	reply["to_email"] = lead.Email
	reply["reply_to"] = m.cfg.OwnerEmail
	if err := m.client.Send(ctx, m.cfg.AutoReplyTemplate, reply); err != nil {
		m.logger.Warn("customer auto-reply failed", zap.String("lead_id", lead.ID), zap.Error(err))
	}
	return nil
}

// LeadParams flattens a lead into template variables.
func LeadParams(lead leads.Lead) map[string]string {
	params := map[string]string{
		"lead_id":           lead.ID,
		"lead_kind":         string(lead.Kind),
		"name":              lead.Name,
		"email":             lead.Email,
		"phone":             lead.Phone,
		"address":           lead.Address,
		"postcode":          lead.Postcode,
		"preferred_contact": lead.PreferredContact,
		"message":           lead.Message,
		"in_service_area":   strconv.FormatBool(lead.InServiceArea),
		"summary":           lead.Summary(),
	}
	if lead.Kind == leads.KindQuote {
		params["services"] = strings.Join(lead.ServiceLabels(), ", ")
		params["property"] = lead.Property.Label()
		params["bedrooms"] = lead.BedroomsLabel()
		params["frequency"] = lead.Frequency.Label()
		params["estimate"] = lead.EstimateLabel()
	}
	return params
}
