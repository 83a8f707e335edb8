package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/somersetwc/website/internal/leads"
)

// Notion rejects rich text items longer than this.
const maxTextLen = 2000

// Database property names. The CRM database must have these columns.
const (
	propName      = "Name"
	propKind      = "Type"
	propEmail     = "Email"
	propPhone     = "Phone"
	propAddress   = "Address"
	propPostcode  = "Postcode"
	propInArea    = "In Area"
	propServices  = "Services"
	propProperty  = "Property"
	propBedrooms  = "Bedrooms"
	propExtension = "Extensions"
	propFrequency = "Frequency"
	propEstimate  = "Estimate"
	propPOA       = "Needs Quote"
	propStatus    = "Status"
	propSource    = "Source"
	propMessage   = "Message"
	propSubmitted = "Submitted"
	propLeadID    = "Lead ID"
)

// CreateLead adds the lead to the CRM database.
func (c *Client) CreateLead(ctx context.Context, lead leads.Lead) (string, error) {
	pageID, err := c.createPage(ctx, LeadProperties(lead))
	if err != nil {
		return "", fmt.Errorf("create notion page for lead %s: %w", lead.ID, err)
	}
	return pageID, nil
}

// UpdateStatus moves the lead's page to another pipeline column.
func (c *Client) UpdateStatus(ctx context.Context, pageID string, status leads.Status) error {
	if err := c.updatePage(ctx, pageID, map[string]any{propStatus: selectValue(string(status))}); err != nil {
		return fmt.Errorf("update notion status: %w", err)
	}
	return nil
}

// LeadProperties maps a lead onto the CRM database columns. Empty values
// are left out so Notion keeps its column defaults.
func LeadProperties(lead leads.Lead) map[string]any {
	props := map[string]any{
		propName:      map[string]any{"title": richText(lead.Name)},
		propKind:      selectValue(string(lead.Kind)),
		propStatus:    selectValue(string(lead.Status)),
		propInArea:    map[string]any{"checkbox": lead.InServiceArea},
		propLeadID:    map[string]any{"rich_text": richText(lead.ID)},
		propSubmitted: map[string]any{"date": map[string]string{"start": lead.CreatedAt.UTC().Format(time.RFC3339)}},
	}
	if lead.Email != "" {
		props[propEmail] = map[string]any{"email": lead.Email}
	}
	if lead.Phone != "" {
		props[propPhone] = map[string]any{"phone_number": lead.Phone}
	}
	if lead.Address != "" {
		props[propAddress] = map[string]any{"rich_text": richText(lead.Address)}
	}
	if lead.Postcode != "" {
		props[propPostcode] = map[string]any{"rich_text": richText(lead.Postcode)}
	}
	if lead.Source != "" {
		props[propSource] = map[string]any{"rich_text": richText(lead.Source)}
	}
	if lead.Message != "" {
		props[propMessage] = map[string]any{"rich_text": richText(lead.Message)}
	}

	if lead.Kind == leads.KindQuote {
		names := make([]map[string]string, 0, len(lead.Services))
		for _, label := range lead.ServiceLabels() {
			names = append(names, map[string]string{"name": label})
		}
		props[propServices] = map[string]any{"multi_select": names}
		if lead.Property != "" {
			props[propProperty] = selectValue(lead.Property.Label())
			props[propBedrooms] = map[string]any{"number": lead.Bedrooms}
			props[propExtension] = map[string]any{"number": lead.Extensions}
		}
		if lead.Frequency != "" {
			props[propFrequency] = selectValue(lead.Frequency.Label())
		}
		props[propEstimate] = map[string]any{"number": lead.Estimate.Total}
		props[propPOA] = map[string]any{"checkbox": lead.Estimate.HasPOA}
	}
	return props
}

func selectValue(name string) map[string]any {
	return map[string]any{"select": map[string]string{"name": name}}
}

func richText(s string) []map[string]any {
	r := []rune(s)
	if len(r) > maxTextLen {
		r = r[:maxTextLen]
	}
	return []map[string]any{{"type": "text", "text": map[string]string{"content": string(r)}}}
}

// StatusChange is a pipeline move reported by a CRM automation.
type StatusChange struct {
	PageID string
	Status leads.Status
}

// ParseStatusChange reads the page payload a Notion automation webhook
// sends and extracts the page id and its Status column.
func ParseStatusChange(body []byte) (StatusChange, error) {
	var payload struct {
		Data struct {
			Object     string `json:"object"`
			ID         string `json:"id"`
			Properties map[string]struct {
				Select *struct {
					Name string `json:"name"`
				} `json:"select"`
				Status *struct {
					Name string `json:"name"`
				} `json:"status"`
			} `json:"properties"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return StatusChange{}, fmt.Errorf("decode notion webhook: %w", err)
	}
	if payload.Data.Object != "page" || payload.Data.ID == "" {
		return StatusChange{}, errors.New("notion webhook is not about a page")
	}

	prop, ok := payload.Data.Properties[propStatus]
	if !ok {
		return StatusChange{}, errors.New("notion webhook has no Status property")
	}
	var name string
	switch {
	case prop.Select != nil:
		name = prop.Select.Name
	case prop.Status != nil:
		name = prop.Status.Name
	}
	status, ok := leads.ParseStatus(name)
	if !ok {
		return StatusChange{}, fmt.Errorf("unknown lead status %q", name)
	}
	return StatusChange{PageID: payload.Data.ID, Status: status}, nil
}
