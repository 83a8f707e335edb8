package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/somersetwc/website/internal/analytics"
	"github.com/somersetwc/website/internal/booking"
	"github.com/somersetwc/website/internal/export"
	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/pricing"
	"github.com/somersetwc/website/internal/ratelimit"
	"github.com/somersetwc/website/internal/recaptcha"
)

const draftCookieName = "swc_quote"

type quoteViewData struct {
	page
	Draft            *booking.Draft
	Step             booking.Step
	Steps            []booking.Step
	Errors           leads.FieldErrors
	Estimate         pricing.Quote
	Services         []pricing.ServiceInfo
	PropertyTypes    []pricing.PropertyType
	Frequencies      []pricing.Frequency
	BedroomOptions   []int
	ExtensionOptions []int
	PreferredContact []string
}

type quoteThanksViewData struct {
	page
	Lead      leads.Lead
	Reference string
}

func (s *server) newQuoteView(r *http.Request, d *booking.Draft, errs leads.FieldErrors) quoteViewData {
	return quoteViewData{
		page:             s.page(r),
		Draft:            d,
		Step:             d.Step,
		Steps:            d.Steps(),
		Errors:           errs,
		Estimate:         d.Estimate(),
		Services:         pricing.Services(),
		PropertyTypes:    pricing.PropertyTypes(),
		Frequencies:      pricing.Frequencies(),
		BedroomOptions:   []int{1, 2, 3, 4, 5, pricing.MaxBedrooms},
		ExtensionOptions: []int{0, 1, 2, 3, 4, 5},
		PreferredContact: leads.PreferredContactOptions,
	}
}

// loadDraft returns the visitor's draft, or a fresh one when the cookie is
// missing or points at a purged draft.
func (s *server) loadDraft(r *http.Request) (*booking.Draft, error) {
	cookie, err := r.Cookie(draftCookieName)
	if err != nil {
		return booking.NewDraft(), nil
	}
	d, err := s.drafts.Get(r.Context(), cookie.Value)
	if errors.Is(err, booking.ErrNotFound) {
		return booking.NewDraft(), nil
	}
	if err != nil {
		return nil, err
	}
	d.Resume()
	return d, nil
}

func (s *server) saveDraft(w http.ResponseWriter, r *http.Request, d *booking.Draft) error {
	if err := s.drafts.Save(r.Context(), d); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     draftCookieName,
		Value:    d.ID,
		Path:     "/",
		MaxAge:   int(s.cfg.DraftLifetime.Seconds()),
		HttpOnly: true,
		Secure:   !s.cfg.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearDraftCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: draftCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

func (s *server) handleQuoteForm(w http.ResponseWriter, r *http.Request) {
	d, err := s.loadDraft(r)
	if err != nil {
		s.serverError(w, r, "failed to load quote", err)
		return
	}

	// Links from the services pages preselect a service on a new draft.
	if d.ID == "" {
		q := r.URL.Query()
		if preset := q["service"]; len(preset) > 0 {
			_ = d.Apply(booking.StepServices, url.Values{"services": preset})
		}
		d.Source = firstNonEmpty(q.Get("utm_source"), q.Get("source"))
	}

	s.renderTemplate(w, r, "quote.html", s.newQuoteView(r, d, nil))
}

func (s *server) handleQuoteSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	d, err := s.loadDraft(r)
	if err != nil {
		s.serverError(w, r, "failed to load quote", err)
		return
	}

	switch r.FormValue("action") {
	case "back":
		d.Back()
		if err := s.saveDraft(w, r, d); err != nil {
			s.serverError(w, r, "failed to save quote", err)
			return
		}
		http.Redirect(w, r, "/quote", http.StatusSeeOther)

	case "submit":
		s.submitQuote(w, r, d)

	default:
		if d.Source == "" {
			d.Source = strings.TrimSpace(r.FormValue("source"))
		}
		if errs := d.Advance(r.Form); len(errs) > 0 {
			s.renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "quote.html", s.newQuoteView(r, d, errs))
			return
		}
		if err := s.saveDraft(w, r, d); err != nil {
			s.serverError(w, r, "failed to save quote", err)
			return
		}
		http.Redirect(w, r, "/quote", http.StatusSeeOther)
	}
}

func (s *server) submitQuote(w http.ResponseWriter, r *http.Request, d *booking.Draft) {
	if step, errs := d.Validate(); len(errs) > 0 {
		d.Step = step
		s.renderTemplateStatus(w, r, http.StatusUnprocessableEntity, "quote.html", s.newQuoteView(r, d, errs))
		return
	}

	if !s.limiter.Allow(ratelimit.ClientIP(r)) {
		w.Header().Set("Retry-After", "60")
		http.Error(w, "Too many requests. Please wait a moment and try again.", http.StatusTooManyRequests)
		return
	}
	if msg := s.checkCaptcha(r, "quote"); msg != "" {
		s.renderTemplateStatus(w, r, http.StatusBadRequest, "quote.html", s.newQuoteView(r, d, leads.FieldErrors{"form": msg}))
		return
	}

	lead := d.Lead()
	lead.AnalyticsClientID = analytics.ClientIDFromRequest(r)
	if err := s.leads.Submit(r.Context(), &lead); err != nil {
		s.serverError(w, r, "failed to save quote request", err)
		return
	}

	if d.ID != "" {
		if err := s.drafts.Delete(r.Context(), d.ID); err != nil && !errors.Is(err, booking.ErrNotFound) {
			s.logger.Warn("delete submitted draft", zap.String("draft_id", d.ID), zap.Error(err))
		}
	}
	clearDraftCookie(w)
	http.Redirect(w, r, "/quote/thanks/"+lead.ID, http.StatusSeeOther)
}

// checkCaptcha returns a message for the visitor when the token is
// rejected. An unreachable siteverify is logged and let through so real
// customers are not turned away.
func (s *server) checkCaptcha(r *http.Request, action string) string {
	_, err := s.captcha.Verify(r.Context(), r.FormValue("recaptcha_token"), ratelimit.ClientIP(r), action)
	switch {
	case err == nil:
		return ""
	case recaptcha.Rejected(err):
		s.logger.Warn("recaptcha rejected submission", zap.String("action", action), zap.Error(err))
		return "We couldn't verify that you're not a robot. Please try again, or give us a call."
	default:
		s.logger.Error("recaptcha verification unavailable", zap.Error(err))
		s.report(err)
		return ""
	}
}

func (s *server) quoteLead(w http.ResponseWriter, r *http.Request) (leads.Lead, bool) {
	lead, err := s.leads.Store().Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, leads.ErrNotFound) || (err == nil && lead.Kind != leads.KindQuote) {
		s.handleNotFound(w, r)
		return leads.Lead{}, false
	}
	if err != nil {
		s.serverError(w, r, "failed to load quote", err)
		return leads.Lead{}, false
	}
	return lead, true
}

func (s *server) handleQuoteThanks(w http.ResponseWriter, r *http.Request) {
	lead, ok := s.quoteLead(w, r)
	if !ok {
		return
	}
	s.renderTemplate(w, r, "quote_thanks.html", quoteThanksViewData{
		page:      s.page(r),
		Lead:      lead,
		Reference: export.Reference(lead.ID),
	})
}

func (s *server) handleEstimatePDF(w http.ResponseWriter, r *http.Request) {
	lead, ok := s.quoteLead(w, r)
	if !ok {
		return
	}

	pdf, err := export.EstimatePDF(lead, s.letterhead())
	if err != nil {
		s.serverError(w, r, "failed to build estimate", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="estimate-%s.pdf"`, export.Reference(lead.ID)))
	_, _ = w.Write(pdf)
}

func (s *server) letterhead() export.Business {
	b := s.site.Business
	return export.Business{Name: b.Name, Phone: b.Phone, Email: b.Email, Website: b.Website}
}

type estimateRow struct {
	Service string `json:"service"`
	Label   string `json:"label"`
	Status  string `json:"status"`
	Amount  int    `json:"amount"`
	Display string `json:"display"`
	Note    string `json:"note,omitempty"`
}

type estimateResponse struct {
	Rows         []estimateRow `json:"rows"`
	Total        int           `json:"total"`
	TotalDisplay string        `json:"total_display"`
	HasPOA       bool          `json:"has_poa"`
}

func newEstimateResponse(q pricing.Quote) estimateResponse {
	resp := estimateResponse{
		Rows:         make([]estimateRow, 0, len(q.Rows)),
		Total:        q.Total,
		TotalDisplay: pricing.FormatGBP(q.Total),
		HasPOA:       q.HasPOA,
	}
	if q.HasPOA {
		resp.TotalDisplay += " + POA items"
	}
	for _, row := range q.Rows {
		resp.Rows = append(resp.Rows, estimateRow{
			Service: string(row.Service),
			Label:   row.Label,
			Status:  row.Status.String(),
			Amount:  row.Amount,
			Display: row.Display(),
			Note:    row.Note,
		})
	}
	return resp
}

// handleEstimate prices the posted fields on top of the visitor's draft, so
// each wizard step only needs to send its own inputs.
func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}

	d, err := s.loadDraft(r)
	if err != nil {
		s.serverError(w, r, "failed to load quote", err)
		return
	}

	in, err := parseEstimateForm(r.PostForm, d.Input())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newEstimateResponse(pricing.Calculate(in)))
}

// parseEstimateForm overrides base with the fields present in form.
func parseEstimateForm(form url.Values, base pricing.Input) (pricing.Input, error) {
	in := base

	if raw, ok := form["services"]; ok {
		in.Services = nil
		for _, v := range raw {
			svc, ok := pricing.ParseService(v)
			if !ok {
				return pricing.Input{}, fmt.Errorf("unknown service %q", v)
			}
			in.Services = append(in.Services, svc)
		}
	}
	if raw := strings.TrimSpace(form.Get("property")); raw != "" {
		p, ok := pricing.ParsePropertyType(raw)
		if !ok {
			return pricing.Input{}, fmt.Errorf("unknown property type %q", raw)
		}
		in.Property = p
	}
	if raw := strings.TrimSpace(form.Get("bedrooms")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return pricing.Input{}, fmt.Errorf("bedrooms must be a positive number")
		}
		in.Bedrooms = n
	}
	if raw := strings.TrimSpace(form.Get("extensions")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return pricing.Input{}, fmt.Errorf("extensions must be zero or more")
		}
		in.Extensions = n
	}
	if raw := strings.TrimSpace(form.Get("frequency")); raw != "" {
		f, ok := pricing.ParseFrequency(raw)
		if !ok {
			return pricing.Input{}, fmt.Errorf("unknown frequency %q", raw)
		}
		in.Frequency = f
	}
	return in, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
