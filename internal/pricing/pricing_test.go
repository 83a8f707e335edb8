package pricing

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func row(s Service, status Status, amount int) Row {
	return Row{Service: s, Label: s.Label(), Status: status, Amount: amount}
}

func TestCalculate(t *testing.T) {
	ignoreNote := cmpopts.IgnoreFields(Row{}, "Note")

	tests := []struct {
		name  string
		input Input
		want  Quote
	}{
		{
			name:  "windows semi four weekly",
			input: Input{Services: []Service{ServiceWindows}, Bedrooms: 3, Property: PropertySemi, Frequency: FrequencyFourWeekly},
			want:  Quote{Rows: []Row{row(ServiceWindows, StatusPriced, 22)}, Total: 22},
		},
		{
			name:  "windows detached ad-hoc with extension",
			input: Input{Services: []Service{ServiceWindows}, Bedrooms: 3, Property: PropertyDetached, Extensions: 1, Frequency: FrequencyAdHoc},
			want:  Quote{Rows: []Row{row(ServiceWindows, StatusPriced, 42)}, Total: 42},
		},
		{
			name:  "flat eight weekly has no surcharge",
			input: Input{Services: []Service{ServiceWindows}, Bedrooms: 1, Property: PropertyFlat, Frequency: FrequencyEightWeekly},
			want:  Quote{Rows: []Row{row(ServiceWindows, StatusPriced, 15)}, Total: 15},
		},
		{
			name:  "gutters and fascias detached with extension",
			input: Input{Services: []Service{ServiceGutters, ServiceFascias}, Bedrooms: 3, Property: PropertyDetached, Extensions: 1},
			want: Quote{
				Rows:  []Row{row(ServiceGutters, StatusPriced, 100), row(ServiceFascias, StatusPriced, 115)},
				Total: 215,
			},
		},
		{
			name: "bundle makes windows free",
			input: Input{
				Services: []Service{ServiceWindows, ServiceGutters, ServiceFascias},
				Bedrooms: 3, Property: PropertySemi, Frequency: FrequencyFourWeekly,
			},
			want: Quote{
				Rows: []Row{
					row(ServiceWindows, StatusFree, 0),
					row(ServiceGutters, StatusPriced, 80),
					row(ServiceFascias, StatusPriced, 95),
				},
				Total: 175,
			},
		},
		{
			name:  "six plus bedrooms forces windows to POA",
			input: Input{Services: []Service{ServiceWindows, ServiceGutters}, Bedrooms: 6, Property: PropertySemi, Frequency: FrequencyFourWeekly},
			want: Quote{
				Rows:   []Row{row(ServiceWindows, StatusPOA, 0), row(ServiceGutters, StatusPriced, 130)},
				Total:  130,
				HasPOA: true,
			},
		},
		{
			name: "POA beats the bundle discount",
			input: Input{
				Services: []Service{ServiceWindows, ServiceGutters, ServiceFascias},
				Bedrooms: 6, Property: PropertySemi, Frequency: FrequencyFourWeekly,
			},
			want: Quote{
				Rows: []Row{
					row(ServiceWindows, StatusPOA, 0),
					row(ServiceGutters, StatusPriced, 130),
					row(ServiceFascias, StatusPriced, 145),
				},
				Total:  275,
				HasPOA: true,
			},
		},
		{
			name:  "bedrooms above six fall into the six plus gutter bucket",
			input: Input{Services: []Service{ServiceGutters}, Bedrooms: 9, Property: PropertyTerraced},
			want:  Quote{Rows: []Row{row(ServiceGutters, StatusPriced, 130)}, Total: 130},
		},
		{
			name: "quote-only services are always POA",
			input: Input{
				Services: []Service{ServiceCommercial, ServiceSolar, ServiceConservatory},
				Bedrooms: 2, Property: PropertySemi,
			},
			want: Quote{
				Rows: []Row{
					row(ServiceConservatory, StatusPOA, 0),
					row(ServiceSolar, StatusPOA, 0),
					row(ServiceCommercial, StatusPOA, 0),
				},
				HasPOA: true,
			},
		},
		{
			name: "zero bedrooms falls back to POA",
			input: Input{
				Services: []Service{ServiceWindows, ServiceGutters, ServiceFascias},
				Bedrooms: 0, Property: PropertySemi, Frequency: FrequencyFourWeekly,
			},
			want: Quote{
				Rows: []Row{
					row(ServiceWindows, StatusPOA, 0),
					row(ServiceGutters, StatusPOA, 0),
					row(ServiceFascias, StatusPOA, 0),
				},
				HasPOA: true,
			},
		},
		{
			name:  "unknown property type falls back to POA",
			input: Input{Services: []Service{ServiceGutters}, Bedrooms: 2, Property: "castle"},
			want:  Quote{Rows: []Row{row(ServiceGutters, StatusPOA, 0)}, HasPOA: true},
		},
		{
			name:  "negative extensions fall back to POA",
			input: Input{Services: []Service{ServiceGutters}, Bedrooms: 2, Property: PropertySemi, Extensions: -1},
			want:  Quote{Rows: []Row{row(ServiceGutters, StatusPOA, 0)}, HasPOA: true},
		},
		{
			name:  "missing frequency only affects windows",
			input: Input{Services: []Service{ServiceWindows, ServiceGutters}, Bedrooms: 2, Property: PropertySemi},
			want: Quote{
				Rows:   []Row{row(ServiceWindows, StatusPOA, 0), row(ServiceGutters, StatusPriced, 70)},
				Total:  70,
				HasPOA: true,
			},
		},
		{
			name: "duplicates collapse and rows follow catalogue order",
			input: Input{
				Services: []Service{ServiceFascias, ServiceWindows, ServiceWindows},
				Bedrooms: 3, Property: PropertySemi, Frequency: FrequencyFourWeekly,
			},
			want: Quote{
				Rows:  []Row{row(ServiceWindows, StatusPriced, 22), row(ServiceFascias, StatusPriced, 95)},
				Total: 117,
			},
		},
		{
			name:  "nothing selected",
			input: Input{Bedrooms: 3, Property: PropertySemi},
			want:  Quote{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.input)
			if diff := cmp.Diff(tt.want, got, ignoreNote, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Calculate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCalculate_BundleNoteShowsUsualPrice(t *testing.T) {
	q := Calculate(Input{
		Services: []Service{ServiceWindows, ServiceGutters, ServiceFascias},
		Bedrooms: 2, Property: PropertyDetached, Frequency: FrequencyAdHoc,
	})

	if q.Rows[0].Note != "Included free with gutters and fascias (usually £33)" {
		t.Fatalf("unexpected note %q", q.Rows[0].Note)
	}
	if q.Rows[0].Display() != "FREE" {
		t.Fatalf("Display()=%q, want FREE", q.Rows[0].Display())
	}
}

func TestCalculate_TotalIsSumOfRows(t *testing.T) {
	for bedrooms := 0; bedrooms <= 7; bedrooms++ {
		for _, property := range PropertyTypes() {
			for _, frequency := range Frequencies() {
				q := Calculate(Input{
					Services:   []Service{ServiceWindows, ServiceGutters, ServiceFascias, ServiceSolar},
					Bedrooms:   bedrooms,
					Property:   property,
					Extensions: 2,
					Frequency:  frequency,
				})
				sum := 0
				for _, r := range q.Rows {
					if r.Status != StatusPriced && r.Amount != 0 {
						t.Fatalf("non-priced row carries amount: %+v", r)
					}
					sum += r.Amount
				}
				if sum != q.Total {
					t.Fatalf("total %d != row sum %d for %d beds %s %s", q.Total, sum, bedrooms, property, frequency)
				}
			}
		}
	}
}

func TestRowDisplay(t *testing.T) {
	tests := []struct {
		row  Row
		want string
	}{
		{Row{Status: StatusPriced, Amount: 42}, "£42"},
		{Row{Status: StatusFree}, "FREE"},
		{Row{Status: StatusPOA}, "POA"},
	}
	for _, tt := range tests {
		if got := tt.row.Display(); got != tt.want {
			t.Errorf("Display() = %q, want %q", got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	if s, ok := ParseService(" Windows "); !ok || s != ServiceWindows {
		t.Fatalf("ParseService windows = %q, %v", s, ok)
	}
	if _, ok := ParseService("pressure-washing"); ok {
		t.Fatalf("expected unknown service to fail")
	}
	if p, ok := ParsePropertyType("DETACHED"); !ok || p != PropertyDetached {
		t.Fatalf("ParsePropertyType = %q, %v", p, ok)
	}
	if f, ok := ParseFrequency("adhoc"); !ok || f != FrequencyAdHoc {
		t.Fatalf("ParseFrequency = %q, %v", f, ok)
	}
	if _, ok := ParseFrequency("weekly"); ok {
		t.Fatalf("expected unknown frequency to fail")
	}
}

func TestStatusJSONUsesNames(t *testing.T) {
	raw, err := json.Marshal(Row{Service: ServiceSolar, Status: StatusPOA})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["status"] != "poa" {
		t.Fatalf("status encoded as %v", decoded["status"])
	}

	var back Row
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal row: %v", err)
	}
	if back.Status != StatusPOA {
		t.Fatalf("round trip status = %v", back.Status)
	}
}
