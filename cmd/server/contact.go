package main

import (
	"net/http"

	"github.com/somersetwc/website/internal/analytics"
	"github.com/somersetwc/website/internal/leads"
)

type contactViewData struct {
	page
	Form             leads.ContactRequest
	Errors           leads.FieldErrors
	PreferredContact []string
}

func (s *server) newContactView(r *http.Request, form leads.ContactRequest, errs leads.FieldErrors) contactViewData {
	return contactViewData{
		page:             s.page(r),
		Form:             form,
		Errors:           errs,
		PreferredContact: leads.PreferredContactOptions,
	}
}

func (s *server) handleContactForm(w http.ResponseWriter, r *http.Request) {
	form := leads.ContactRequest{Source: r.URL.Query().Get("utm_source")}
	form.PreferredContact = "either"
	s.renderTemplate(w, r, "contact.html", s.newContactView(r, form, nil))
}

func parseContactForm(r *http.Request) leads.ContactRequest {
	return leads.ContactRequest{
		ContactDetails: leads.ContactDetails{
			Name:             r.FormValue("name"),
			Email:            r.FormValue("email"),
			Phone:            r.FormValue("phone"),
			Address:          r.FormValue("address"),
			Postcode:         r.FormValue("postcode"),
			PreferredContact: r.FormValue("preferred_contact"),
		},
		Message: r.FormValue("message"),
		Source:  r.FormValue("source"),
	}
}

func (s *server) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	form := parseContactForm(r)
	if errs := form.Validate(); len(errs) > 0 {
		s.renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "contact.html", s.newContactView(r, form, errs))
		return
	}
	if msg := s.checkCaptcha(r, "contact"); msg != "" {
		s.renderTemplateStatus(w, r, http.StatusBadRequest, "contact.html", s.newContactView(r, form, leads.FieldErrors{"form": msg}))
		return
	}

	lead := form.Lead()
	lead.AnalyticsClientID = analytics.ClientIDFromRequest(r)
	if err := s.leads.Submit(r.Context(), &lead); err != nil {
		s.serverError(w, r, "failed to save message", err)
		return
	}
	http.Redirect(w, r, "/contact?success=Thanks+for+your+message.+We%27ll+be+in+touch+soon.", http.StatusSeeOther)
}
