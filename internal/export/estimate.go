package export

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/pricing"
)

// Business is the letterhead printed on estimates.
type Business struct {
	Name    string
	Phone   string
	Email   string
	Website string
}

var (
	muted = &props.Color{Red: 110, Green: 110, Blue: 110}
	brand = &props.Color{Red: 31, Green: 78, Blue: 121}
)

// EstimatePDF renders the quote lead as a one-page estimate.
func EstimatePDF(lead leads.Lead, biz Business) ([]byte, error) {
	if lead.Kind != leads.KindQuote {
		return nil, fmt.Errorf("lead %s is not a quote", lead.ID)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	addEstimateHeader(m, lead, biz)
	addCustomer(m, lead)
	addRows(m, lead.Estimate)
	addFooter(m, lead, biz)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate estimate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func addEstimateHeader(m core.Maroto, lead leads.Lead, biz Business) {
	m.AddRows(
		row.New(12).Add(
			col.New(7).Add(text.New(biz.Name, props.Text{Size: 16, Style: fontstyle.Bold, Color: brand})),
			col.New(5).Add(text.New("ESTIMATE", props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Right})),
		),
		row.New(6).Add(
			col.New(7).Add(text.New(joinNonEmpty(" | ", biz.Phone, biz.Email, biz.Website), props.Text{Size: 8, Color: muted})),
			col.New(5).Add(text.New("Date: "+lead.CreatedAt.Format("2 January 2006"), props.Text{Size: 9, Align: align.Right})),
		),
		row.New(6).Add(
			col.New(12).Add(text.New("Reference: "+Reference(lead.ID), props.Text{Size: 9, Align: align.Right})),
		),
	)
	m.AddRows(row.New(4).Add(col.New(12).Add(line.New())))
}

func addCustomer(m core.Maroto, lead leads.Lead) {
	label := props.Text{Size: 8, Style: fontstyle.Bold, Color: muted}
	value := props.Text{Size: 10}

	m.AddRows(
		row.New(6).Add(
			col.New(6).Add(text.New("PREPARED FOR", label)),
			col.New(6).Add(text.New("PROPERTY", label)),
		),
		row.New(6).Add(
			col.New(6).Add(text.New(lead.Name, value)),
			col.New(6).Add(text.New(propertyLine(lead), value)),
		),
		row.New(6).Add(
			col.New(6).Add(text.New(joinNonEmpty(", ", lead.Address, lead.Postcode), value)),
			col.New(6).Add(text.New(frequencyLine(lead), value)),
		),
		row.New(6),
	)
}

func addRows(m core.Maroto, q pricing.Quote) {
	head := props.Text{Size: 9, Style: fontstyle.Bold, Color: muted}
	m.AddRows(
		row.New(7).Add(
			col.New(5).Add(text.New("SERVICE", head)),
			col.New(5).Add(text.New("NOTES", head)),
			col.New(2).Add(text.New("PRICE", props.Text{Size: 9, Style: fontstyle.Bold, Color: muted, Align: align.Right})),
		),
	)

	for _, r := range q.Rows {
		m.AddRows(
			row.New(8).Add(
				col.New(5).Add(text.New(r.Label, props.Text{Size: 10})),
				col.New(5).Add(text.New(rowNote(r), props.Text{Size: 8, Color: muted})),
				col.New(2).Add(text.New(r.Display(), props.Text{Size: 10, Align: align.Right})),
			),
		)
	}

	m.AddRows(row.New(3).Add(col.New(12).Add(line.New())))
	m.AddRows(
		row.New(9).Add(
			col.New(10).Add(text.New("Total per visit", props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right})),
			col.New(2).Add(text.New(pricing.FormatGBP(q.Total), props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right})),
		),
	)
	if q.HasPOA {
		m.AddRows(row.New(6).Add(col.New(12).Add(
			text.New("Items marked POA are priced on application. We'll confirm them after a quick look at the property.",
				props.Text{Size: 8, Color: muted, Align: align.Right}),
		)))
	}
}

func addFooter(m core.Maroto, lead leads.Lead, biz Business) {
	m.AddRows(row.New(10))
	m.AddRows(row.New(12).Add(col.New(12).Add(
		text.New("This estimate is based on the details you gave online and is valid for 30 days. "+
			"Prices may change if the property differs from the description.",
			props.Text{Size: 8, Color: muted}),
	)))
	if lead.Message != "" {
		m.AddRows(row.New(10).Add(col.New(12).Add(
			text.New("Your notes: "+lead.Message, props.Text{Size: 8}),
		)))
	}
	m.AddRows(row.New(8).Add(col.New(12).Add(
		text.New("Thank you for choosing "+biz.Name+".", props.Text{Size: 9, Style: fontstyle.Italic}),
	)))
}

func rowNote(r pricing.Row) string {
	if r.Note != "" {
		return r.Note
	}
	if r.Status == pricing.StatusPOA {
		return "Priced on application"
	}
	return ""
}

func propertyLine(lead leads.Lead) string {
	if lead.Property == "" {
		return "Not needed for these services"
	}
	line := lead.Property.Label() + ", " + lead.BedroomsLabel() + " bedrooms"
	if lead.Extensions > 0 {
		line += fmt.Sprintf(", %d extension(s)", lead.Extensions)
	}
	return line
}

func frequencyLine(lead leads.Lead) string {
	if lead.Frequency == "" {
		return ""
	}
	return "Window cleaning: " + lead.Frequency.Label()
}

// Reference is the short customer-facing id printed on estimates.
func Reference(id string) string {
	id = strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(id) > 8 {
		id = id[:8]
	}
	return "SWC-" + id
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
