// Package booking holds the quote wizard: a draft that moves through the
// form steps, skipping the ones the selected services do not need.
package booking

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/pricing"
)

// Step is one page of the quote wizard.
type Step int

const (
	StepServices Step = iota + 1
	StepProperty
	StepFrequency
	StepContact
	StepReview
	StepDone
)

const (
	maxExtensions = 5
	maxNotesLen   = 2000
)

var stepNames = map[Step]string{
	StepServices:  "services",
	StepProperty:  "property",
	StepFrequency: "frequency",
	StepContact:   "contact",
	StepReview:    "review",
	StepDone:      "done",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "step(" + strconv.Itoa(int(s)) + ")"
}

// Title is the heading shown above the step.
func (s Step) Title() string {
	switch s {
	case StepServices:
		return "What can we help with?"
	case StepProperty:
		return "About your property"
	case StepFrequency:
		return "How often?"
	case StepContact:
		return "Your details"
	case StepReview:
		return "Check your quote"
	}
	return "Thanks"
}

// Draft is a quote request being filled in.
type Draft struct {
	ID         string               `json:"-"`
	Step       Step                 `json:"-"`
	Services   []pricing.Service    `json:"services"`
	Property   pricing.PropertyType `json:"property,omitempty"`
	Bedrooms   int                  `json:"bedrooms,omitempty"`
	Extensions int                  `json:"extensions,omitempty"`
	Frequency  pricing.Frequency    `json:"frequency,omitempty"`
	Contact    leads.ContactDetails `json:"contact"`
	Notes      string               `json:"notes,omitempty"`
	Source     string               `json:"source,omitempty"`
	CreatedAt  time.Time            `json:"-"`
	UpdatedAt  time.Time            `json:"-"`
}

// NewDraft starts a draft at the first step.
func NewDraft() *Draft {
	return &Draft{Step: StepServices}
}

// Has reports whether the service is selected.
func (d *Draft) Has(s pricing.Service) bool {
	return d.Input().Has(s)
}

// NeedsProperty reports whether any selected service is priced from the
// property details.
func (d *Draft) NeedsProperty() bool {
	for _, s := range d.Services {
		if s.Computed() {
			return true
		}
	}
	return false
}

// NeedsFrequency reports whether window cleaning is selected.
func (d *Draft) NeedsFrequency() bool {
	return d.Has(pricing.ServiceWindows)
}

// Applies reports whether the step is shown for the current selection.
func (d *Draft) Applies(step Step) bool {
	switch step {
	case StepProperty:
		return d.NeedsProperty()
	case StepFrequency:
		return d.NeedsFrequency()
	case StepServices, StepContact, StepReview, StepDone:
		return true
	}
	return false
}

// Next returns the applicable step after the current one.
func (d *Draft) Next() Step {
	for step := d.Step + 1; step < StepDone; step++ {
		if d.Applies(step) {
			return step
		}
	}
	return StepDone
}

// Prev returns the applicable step before the current one.
func (d *Draft) Prev() Step {
	for step := d.Step - 1; step > StepServices; step-- {
		if d.Applies(step) {
			return step
		}
	}
	return StepServices
}

// Steps lists the steps the customer will see, for the progress bar.
func (d *Draft) Steps() []Step {
	var out []Step
	for step := StepServices; step < StepDone; step++ {
		if d.Applies(step) {
			out = append(out, step)
		}
	}
	return out
}

// Resume puts a reloaded draft back on a step it can be shown at.
func (d *Draft) Resume() {
	if d.Step < StepServices || d.Step > StepReview || !d.Applies(d.Step) {
		d.Step, _ = d.Validate()
	}
}

// Advance applies the current step's form and moves forward when it is
// valid.
func (d *Draft) Advance(form url.Values) leads.FieldErrors {
	errs := d.Apply(d.Step, form)
	if len(errs) == 0 {
		d.Step = d.Next()
	}
	return errs
}

// Back moves to the previous applicable step without validating.
func (d *Draft) Back() {
	d.Step = d.Prev()
}

// Apply validates one step's form values and stores them on the draft.
func (d *Draft) Apply(step Step, form url.Values) leads.FieldErrors {
	switch step {
	case StepServices:
		return d.applyServices(form)
	case StepProperty:
		return d.applyProperty(form)
	case StepFrequency:
		return d.applyFrequency(form)
	case StepContact:
		return d.applyContact(form)
	}
	return leads.FieldErrors{}
}

func (d *Draft) applyServices(form url.Values) leads.FieldErrors {
	errs := leads.FieldErrors{}

	var selected []pricing.Service
	seen := map[pricing.Service]bool{}
	for _, raw := range form["services"] {
		s, ok := pricing.ParseService(raw)
		if !ok {
			errs["services"] = "Please choose from the listed services."
			continue
		}
		if !seen[s] {
			seen[s] = true
			selected = append(selected, s)
		}
	}
	if len(selected) == 0 && !errs.Has("services") {
		errs["services"] = "Please choose at least one service."
	}
	if len(errs) > 0 {
		return errs
	}

	d.Services = selected
	if !d.NeedsProperty() {
		d.Property, d.Bedrooms, d.Extensions = "", 0, 0
	}
	if !d.NeedsFrequency() {
		d.Frequency = ""
	}
	return errs
}

func (d *Draft) applyProperty(form url.Values) leads.FieldErrors {
	errs := leads.FieldErrors{}

	property, ok := pricing.ParsePropertyType(form.Get("property"))
	if !ok {
		errs["property"] = "Please choose a property type."
	}

	bedrooms, err := strconv.Atoi(strings.TrimSpace(form.Get("bedrooms")))
	if err != nil || bedrooms < 1 || bedrooms > pricing.MaxBedrooms {
		errs["bedrooms"] = "Please choose the number of bedrooms."
	}

	extensions := 0
	if raw := strings.TrimSpace(form.Get("extensions")); raw != "" {
		extensions, err = strconv.Atoi(raw)
		if err != nil || extensions < 0 || extensions > maxExtensions {
			errs["extensions"] = "Please enter between 0 and 5 extensions."
		}
	}

	if len(errs) > 0 {
		return errs
	}
	d.Property, d.Bedrooms, d.Extensions = property, bedrooms, extensions
	return errs
}

func (d *Draft) applyFrequency(form url.Values) leads.FieldErrors {
	errs := leads.FieldErrors{}
	frequency, ok := pricing.ParseFrequency(form.Get("frequency"))
	if !ok {
		errs["frequency"] = "Please choose how often you'd like a clean."
		return errs
	}
	d.Frequency = frequency
	return errs
}

func (d *Draft) applyContact(form url.Values) leads.FieldErrors {
	contact := leads.ContactDetails{
		Name:             form.Get("name"),
		Email:            form.Get("email"),
		Phone:            form.Get("phone"),
		Address:          form.Get("address"),
		Postcode:         form.Get("postcode"),
		PreferredContact: form.Get("preferred_contact"),
	}
	errs := contact.Normalize(true)

	notes := strings.TrimSpace(form.Get("notes"))
	if len(notes) > maxNotesLen {
		errs["notes"] = "Please keep your notes under 2000 characters."
	}

	// Keep what was typed so the form can be redrawn with it.
	d.Contact = contact
	if !errs.Has("notes") {
		d.Notes = notes
	}
	d.Source = strings.TrimSpace(form.Get("source"))
	return errs
}

// Validate re-checks every applicable step before submission. It returns
// the first step with a problem, or StepReview when the draft is complete.
func (d *Draft) Validate() (Step, leads.FieldErrors) {
	errs := leads.FieldErrors{}
	if len(d.Services) == 0 {
		errs["services"] = "Please choose at least one service."
		return StepServices, errs
	}
	if d.NeedsProperty() {
		if _, ok := pricing.ParsePropertyType(string(d.Property)); !ok || d.Bedrooms < 1 || d.Bedrooms > pricing.MaxBedrooms {
			errs["property"] = "Please tell us about the property."
			return StepProperty, errs
		}
	}
	if d.NeedsFrequency() {
		if _, ok := pricing.ParseFrequency(string(d.Frequency)); !ok {
			errs["frequency"] = "Please choose how often you'd like a clean."
			return StepFrequency, errs
		}
	}
	contact := d.Contact
	if errs := contact.Normalize(true); len(errs) > 0 {
		return StepContact, errs
	}
	return StepReview, errs
}

// Input maps the draft onto the calculator's input.
func (d *Draft) Input() pricing.Input {
	return pricing.Input{
		Services:   d.Services,
		Bedrooms:   d.Bedrooms,
		Property:   d.Property,
		Extensions: d.Extensions,
		Frequency:  d.Frequency,
	}
}

// Estimate prices the draft as it stands.
func (d *Draft) Estimate() pricing.Quote {
	return pricing.Calculate(d.Input())
}

// Lead converts a validated draft into a quote lead.
func (d *Draft) Lead() leads.Lead {
	return leads.Lead{
		Kind:             leads.KindQuote,
		Name:             d.Contact.Name,
		Email:            d.Contact.Email,
		Phone:            d.Contact.Phone,
		Address:          d.Contact.Address,
		Postcode:         d.Contact.Postcode,
		PreferredContact: d.Contact.PreferredContact,
		Message:          d.Notes,
		Services:         d.Services,
		Property:         d.Property,
		Bedrooms:         d.Bedrooms,
		Extensions:       d.Extensions,
		Frequency:        d.Frequency,
		Estimate:         d.Estimate(),
		Source:           d.Source,
	}
}
