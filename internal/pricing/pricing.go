// Package pricing computes itemised estimates for the quote form.
package pricing

import (
	"fmt"
	"strings"
)

// Service is one of the fixed services offered on the quote form.
type Service string

const (
	ServiceWindows      Service = "windows"
	ServiceGutters      Service = "gutters"
	ServiceFascias      Service = "fascias"
	ServiceConservatory Service = "conservatory"
	ServiceSolar        Service = "solar"
	ServiceCommercial   Service = "commercial"
)

// PropertyType describes the building the customer lives in.
type PropertyType string

const (
	PropertyDetached PropertyType = "detached"
	PropertySemi     PropertyType = "semi"
	PropertyTerraced PropertyType = "terraced"
	PropertyFlat     PropertyType = "flat"
)

// Frequency is how often window cleaning is booked.
type Frequency string

const (
	FrequencyFourWeekly  Frequency = "4-weekly"
	FrequencyEightWeekly Frequency = "8-weekly"
	FrequencyAdHoc       Frequency = "adhoc"
)

// MaxBedrooms is the "6+" bucket.
const MaxBedrooms = 6

const (
	detachedWindowSurcharge = 5
	detachedGutterSurcharge = 15
	perExtension            = 5
	adHocSurcharge          = 10
	fasciaOverGutter        = 15
)

// Window cleaning base prices by bedroom count. 6+ is always POA.
var windowBase = map[int]int{
	1: 15,
	2: 18,
	3: 22,
	4: 26,
	5: 30,
}

// Gutter clearing base prices by bedroom count, including the 6+ bucket.
var gutterBase = map[int]int{
	1: 60,
	2: 70,
	3: 80,
	4: 95,
	5: 110,
	6: 130,
}

// ServiceInfo is a catalogue entry for forms and pages.
type ServiceInfo struct {
	Service  Service
	Label    string
	Computed bool
}

var catalogue = []ServiceInfo{
	{ServiceWindows, "Window Cleaning", true},
	{ServiceGutters, "Gutter Clearing", true},
	{ServiceFascias, "Fascias & Soffits", true},
	{ServiceConservatory, "Conservatory Cleaning", false},
	{ServiceSolar, "Solar Panel Cleaning", false},
	{ServiceCommercial, "Commercial Cleaning", false},
}

// Services returns the catalogue in display order.
func Services() []ServiceInfo {
	out := make([]ServiceInfo, len(catalogue))
	copy(out, catalogue)
	return out
}

// Label returns the human name of the service.
func (s Service) Label() string {
	for _, info := range catalogue {
		if info.Service == s {
			return info.Label
		}
	}
	return string(s)
}

// Computed reports whether the service gets an automatic price.
func (s Service) Computed() bool {
	for _, info := range catalogue {
		if info.Service == s {
			return info.Computed
		}
	}
	return false
}

// PropertyTypes lists the property types in form order.
func PropertyTypes() []PropertyType {
	return []PropertyType{PropertyDetached, PropertySemi, PropertyTerraced, PropertyFlat}
}

// Label returns the human name of the property type.
func (p PropertyType) Label() string {
	switch p {
	case PropertyDetached:
		return "Detached"
	case PropertySemi:
		return "Semi-detached"
	case PropertyTerraced:
		return "Terraced"
	case PropertyFlat:
		return "Flat"
	}
	return string(p)
}

// Frequencies lists the cleaning frequencies in form order.
func Frequencies() []Frequency {
	return []Frequency{FrequencyFourWeekly, FrequencyEightWeekly, FrequencyAdHoc}
}

// Label returns the human name of the frequency.
func (f Frequency) Label() string {
	switch f {
	case FrequencyFourWeekly:
		return "Every 4 weeks"
	case FrequencyEightWeekly:
		return "Every 8 weeks"
	case FrequencyAdHoc:
		return "One-off / ad-hoc"
	}
	return string(f)
}

// ParseService maps a form value to a Service.
func ParseService(raw string) (Service, bool) {
	s := Service(strings.ToLower(strings.TrimSpace(raw)))
	for _, info := range catalogue {
		if info.Service == s {
			return s, true
		}
	}
	return "", false
}

// ParsePropertyType maps a form value to a PropertyType.
func ParsePropertyType(raw string) (PropertyType, bool) {
	p := PropertyType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range PropertyTypes() {
		if known == p {
			return p, true
		}
	}
	return "", false
}

// ParseFrequency maps a form value to a Frequency.
func ParseFrequency(raw string) (Frequency, bool) {
	f := Frequency(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Frequencies() {
		if known == f {
			return f, true
		}
	}
	return "", false
}

// Input holds everything the calculator needs.
type Input struct {
	Services   []Service
	Bedrooms   int
	Property   PropertyType
	Extensions int
	Frequency  Frequency
}

// Has reports whether the service is selected.
func (in Input) Has(s Service) bool {
	for _, selected := range in.Services {
		if selected == s {
			return true
		}
	}
	return false
}

// Status says how a row's amount should be read.
type Status int

const (
	StatusPriced Status = iota
	StatusFree
	StatusPOA
)

func (s Status) String() string {
	switch s {
	case StatusFree:
		return "free"
	case StatusPOA:
		return "poa"
	}
	return "priced"
}

// MarshalText encodes the status by name so stored estimates stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "priced":
		*s = StatusPriced
	case "free":
		*s = StatusFree
	case "poa":
		*s = StatusPOA
	default:
		return fmt.Errorf("unknown row status %q", b)
	}
	return nil
}

// Row is one itemised line of an estimate.
type Row struct {
	Service Service `json:"service"`
	Label   string  `json:"label"`
	Status  Status  `json:"status"`
	Amount  int     `json:"amount"`
	Note    string  `json:"note,omitempty"`
}

// Display renders the amount column.
func (r Row) Display() string {
	switch r.Status {
	case StatusFree:
		return "FREE"
	case StatusPOA:
		return "POA"
	}
	return FormatGBP(r.Amount)
}

// Quote is the calculator's output.
type Quote struct {
	Rows   []Row `json:"rows"`
	Total  int   `json:"total"`
	HasPOA bool  `json:"has_poa"`
}

// FormatGBP renders whole pounds.
func FormatGBP(amount int) string {
	return fmt.Sprintf("£%d", amount)
}

// price is an amount or POA.
type price struct {
	amount int
	poa    bool
}

var poa = price{poa: true}

// Calculate prices the selected services. Rows come back in catalogue
// order, one per distinct selected service.
func Calculate(in Input) Quote {
	gutter := gutterPrice(in)
	bundle := in.Has(ServiceWindows) && in.Has(ServiceGutters) && in.Has(ServiceFascias)

	var q Quote
	for _, info := range catalogue {
		if !in.Has(info.Service) {
			continue
		}

		row := Row{Service: info.Service, Label: info.Label}
		var p price
		switch info.Service {
		case ServiceWindows:
			p = windowPrice(in)
			if bundle && !p.poa {
				row.Status = StatusFree
				row.Note = fmt.Sprintf("Included free with gutters and fascias (usually %s)", FormatGBP(p.amount))
				q.Rows = append(q.Rows, row)
				continue
			}
		case ServiceGutters:
			p = gutter
		case ServiceFascias:
			p = gutter
			if !p.poa {
				p.amount += fasciaOverGutter
			}
		default:
			p = poa
		}

		if p.poa {
			row.Status = StatusPOA
			q.HasPOA = true
		} else {
			row.Status = StatusPriced
			row.Amount = p.amount
			q.Total += p.amount
		}
		q.Rows = append(q.Rows, row)
	}
	return q
}

func windowPrice(in Input) price {
	if in.Bedrooms >= MaxBedrooms {
		return poa
	}
	base, ok := windowBase[in.Bedrooms]
	if !ok {
		return poa
	}
	extra, ok := propertyExtras(in, detachedWindowSurcharge)
	if !ok {
		return poa
	}

	switch in.Frequency {
	case FrequencyFourWeekly, FrequencyEightWeekly:
	case FrequencyAdHoc:
		extra += adHocSurcharge
	default:
		return poa
	}
	return price{amount: base + extra}
}

func gutterPrice(in Input) price {
	bedrooms := in.Bedrooms
	if bedrooms > MaxBedrooms {
		bedrooms = MaxBedrooms
	}
	base, ok := gutterBase[bedrooms]
	if !ok {
		return poa
	}
	extra, ok := propertyExtras(in, detachedGutterSurcharge)
	if !ok {
		return poa
	}
	return price{amount: base + extra}
}

func propertyExtras(in Input, detachedSurcharge int) (int, bool) {
	if _, ok := ParsePropertyType(string(in.Property)); !ok {
		return 0, false
	}
	if in.Extensions < 0 {
		return 0, false
	}
	extra := in.Extensions * perExtension
	if in.Property == PropertyDetached {
		extra += detachedSurcharge
	}
	return extra, true
}
