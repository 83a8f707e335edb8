// Package export renders leads as spreadsheets for the admin and as PDF
// estimates for customers.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/somersetwc/website/internal/leads"
)

const leadsSheet = "Leads"

var leadColumns = []struct {
	header string
	width  float64
	value  func(l leads.Lead) any
}{
	{"Received", 18, func(l leads.Lead) any { return l.CreatedAt.Format("2006-01-02 15:04") }},
	{"Type", 9, func(l leads.Lead) any { return string(l.Kind) }},
	{"Status", 11, func(l leads.Lead) any { return string(l.Status) }},
	{"Name", 22, func(l leads.Lead) any { return l.Name }},
	{"Email", 28, func(l leads.Lead) any { return l.Email }},
	{"Phone", 15, func(l leads.Lead) any { return l.Phone }},
	{"Address", 30, func(l leads.Lead) any { return l.Address }},
	{"Postcode", 10, func(l leads.Lead) any { return l.Postcode }},
	{"In area", 8, func(l leads.Lead) any { return yesNo(l.InServiceArea) }},
	{"Services", 36, func(l leads.Lead) any { return strings.Join(l.ServiceLabels(), ", ") }},
	{"Property", 14, func(l leads.Lead) any { return l.Property.Label() }},
	{"Bedrooms", 9, func(l leads.Lead) any { return l.BedroomsLabel() }},
	{"Frequency", 16, func(l leads.Lead) any { return l.Frequency.Label() }},
	{"Estimate (£)", 12, func(l leads.Lead) any { return l.Estimate.Total }},
	{"Needs quote", 11, func(l leads.Lead) any { return yesNo(l.Estimate.HasPOA) }},
	{"Source", 14, func(l leads.Lead) any { return l.Source }},
	{"Message", 50, func(l leads.Lead) any { return l.Message }},
}

// LeadsWorkbook writes leads to an XLSX file, one row per lead.
func LeadsWorkbook(list []leads.Lead) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), leadsSheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F4E79"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, c := range leadColumns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(leadsSheet, col, col, c.width); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
		if err := f.SetCellValue(leadsSheet, col+"1", c.header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(leadColumns))
	if err := f.SetCellStyle(leadsSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(leadsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	for r, lead := range list {
		for c, column := range leadColumns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			value := column.value(lead)
			if s, ok := value.(string); ok {
				value = sanitizeExcelCell(s)
			}
			if err := f.SetCellValue(leadsSheet, cell, value); err != nil {
				return nil, fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	if len(list) > 0 {
		if err := f.AutoFilter(leadsSheet, "A1:"+lastCol+"1", nil); err != nil {
			return nil, fmt.Errorf("add filter: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeExcelCell stops user input from being read as a formula.
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
