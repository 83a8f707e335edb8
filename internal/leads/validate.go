package leads

import (
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	maxNameLen    = 100
	maxMessageLen = 2000
	minMessageLen = 10
)

// FieldErrors maps form field names to a message for the user.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}

// Has reports whether the field has an error.
func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

// Err returns nil when there are no field errors.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

var postcodePattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]? ?[0-9][A-Z]{2}$`)

// NormalizePostcode upper-cases a UK postcode and puts the single space
// before the inward code. It reports false for anything that is not a
// postcode.
func NormalizePostcode(raw string) (string, bool) {
	compact := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if len(compact) < 5 || len(compact) > 7 {
		return "", false
	}
	formatted := compact[:len(compact)-3] + " " + compact[len(compact)-3:]
	if !postcodePattern.MatchString(formatted) {
		return "", false
	}
	return formatted, true
}

// OutwardCode returns the part of a normalised postcode before the space.
func OutwardCode(postcode string) string {
	outward, _, _ := strings.Cut(postcode, " ")
	return outward
}

// NormalizePhone strips formatting from a UK phone number. +44 numbers are
// rewritten to the national 0 prefix.
func NormalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' && i == 0:
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	phone := digits.String()
	if strings.HasPrefix(phone, "+44") {
		phone = "0" + strings.TrimPrefix(phone, "+44")
	}
	if !strings.HasPrefix(phone, "0") || len(phone) < 10 || len(phone) > 11 {
		return "", false
	}
	return phone, true
}

// ValidEmail reports whether raw is a single bare address.
func ValidEmail(raw string) bool {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return false
	}
	return addr.Address == raw && strings.Contains(raw[strings.LastIndex(raw, "@"):], ".")
}

// PreferredContactOptions are the accepted "how should we reply" values.
var PreferredContactOptions = []string{"either", "email", "phone"}

func normalizePreferred(raw string) (string, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "either", true
	}
	for _, opt := range PreferredContactOptions {
		if opt == raw {
			return raw, true
		}
	}
	return "", false
}

// ContactDetails are the shared "about you" fields of both forms.
type ContactDetails struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	Postcode         string `json:"postcode"`
	PreferredContact string `json:"preferred_contact"`
}

// Normalize validates the details in place. requireAddress is set by the
// quote form, which needs to know where the property is.
func (c *ContactDetails) Normalize(requireAddress bool) FieldErrors {
	errs := FieldErrors{}

	c.Name = strings.TrimSpace(c.Name)
	switch {
	case c.Name == "":
		errs["name"] = "Please tell us your name."
	case len(c.Name) > maxNameLen:
		errs["name"] = "That name is too long."
	}

	c.Email = strings.TrimSpace(c.Email)
	if c.Email != "" && !ValidEmail(c.Email) {
		errs["email"] = "Please enter a valid email address."
	}

	c.Phone = strings.TrimSpace(c.Phone)
	if c.Phone != "" {
		if phone, ok := NormalizePhone(c.Phone); ok {
			c.Phone = phone
		} else {
			errs["phone"] = "Please enter a UK phone number."
		}
	}

	if c.Email == "" && c.Phone == "" {
		errs["email"] = "Please give us an email address or phone number."
	}

	c.Address = strings.TrimSpace(c.Address)
	if requireAddress && c.Address == "" {
		errs["address"] = "Please enter the first line of the address."
	}

	c.Postcode = strings.TrimSpace(c.Postcode)
	if c.Postcode != "" || requireAddress {
		if pc, ok := NormalizePostcode(c.Postcode); ok {
			c.Postcode = pc
		} else {
			errs["postcode"] = "Please enter a valid UK postcode."
		}
	}

	if pref, ok := normalizePreferred(c.PreferredContact); ok {
		c.PreferredContact = pref
	} else {
		errs["preferred_contact"] = "Please choose how we should reply."
	}

	if pref := c.PreferredContact; pref == "phone" && c.Phone == "" && !errs.Has("phone") {
		errs["phone"] = "Please give us a number to call."
	} else if pref == "email" && c.Email == "" && !errs.Has("email") {
		errs["email"] = "Please give us an email address."
	}

	return errs
}

// ContactRequest is the contact page form.
type ContactRequest struct {
	ContactDetails
	Message string
	Source  string
}

// Validate normalises the request and reports per-field problems.
func (c *ContactRequest) Validate() FieldErrors {
	errs := c.ContactDetails.Normalize(false)

	c.Message = strings.TrimSpace(c.Message)
	switch {
	case len(c.Message) < minMessageLen:
		errs["message"] = "Please tell us a little more."
	case len(c.Message) > maxMessageLen:
		errs["message"] = "Please keep your message under 2000 characters."
	}
	return errs
}

// Lead converts a validated request into a contact lead.
func (c ContactRequest) Lead() Lead {
	return Lead{
		Kind:             KindContact,
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		Address:          c.Address,
		Postcode:         c.Postcode,
		PreferredContact: c.PreferredContact,
		Message:          c.Message,
		Source:           c.Source,
	}
}
