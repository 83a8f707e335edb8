package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/somersetwc/website/internal/ads"
	"github.com/somersetwc/website/internal/export"
	"github.com/somersetwc/website/internal/leads"
)

const (
	adsReportDays = 30
	exportLimit   = 10000
)

type leadsViewData struct {
	page
	Query    string
	Kind     string
	Status   leads.Status
	Statuses []leads.Status
	Leads    []leads.Lead
	Counts   leads.Counts
}

type leadViewData struct {
	page
	Lead     leads.Lead
	Statuses []leads.Status
}

type adsViewData struct {
	page
	Days       int
	APIEnabled bool
	LastSynced time.Time
	Summaries  []ads.Summary
	Rule       ads.Rule
	RuleLimit  float64
	Flagged    []ads.Decision
	Actions    []ads.Action
}

// parseLeadFilters reads the list/export filters shared by both views.
func parseLeadFilters(r *http.Request) (leads.ListQuery, error) {
	q := leads.ListQuery{Search: strings.TrimSpace(r.URL.Query().Get("q"))}

	switch kind := leads.Kind(r.URL.Query().Get("kind")); kind {
	case "", leads.KindQuote, leads.KindContact:
		q.Kind = kind
	default:
		return leads.ListQuery{}, fmt.Errorf("unknown lead kind %q", kind)
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := leads.ParseStatus(raw)
		if !ok {
			return leads.ListQuery{}, fmt.Errorf("unknown status %q", raw)
		}
		q.Status = status
	}
	return q, nil
}

func (s *server) handleAdminLeads(w http.ResponseWriter, r *http.Request) {
	q, err := parseLeadFilters(r)
	if err != nil {
		http.Redirect(w, r, "/admin/leads?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}

	list, err := s.leads.Store().List(r.Context(), q)
	if err != nil {
		s.serverError(w, r, "failed to load leads", err)
		return
	}
	counts, err := s.leads.Store().Count(r.Context(), s.now().AddDate(0, 0, -7))
	if err != nil {
		s.serverError(w, r, "failed to count leads", err)
		return
	}

	s.renderTemplate(w, r, "admin_leads.html", leadsViewData{
		page:     s.page(r),
		Query:    q.Search,
		Kind:     string(q.Kind),
		Status:   q.Status,
		Statuses: leads.Statuses(),
		Leads:    list,
		Counts:   counts,
	})
}

func (s *server) adminLead(w http.ResponseWriter, r *http.Request) (leads.Lead, bool) {
	lead, err := s.leads.Store().Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, leads.ErrNotFound) {
		s.handleNotFound(w, r)
		return leads.Lead{}, false
	}
	if err != nil {
		s.serverError(w, r, "failed to load lead", err)
		return leads.Lead{}, false
	}
	return lead, true
}

func (s *server) handleAdminLead(w http.ResponseWriter, r *http.Request) {
	lead, ok := s.adminLead(w, r)
	if !ok {
		return
	}
	s.renderTemplate(w, r, "admin_lead.html", leadViewData{page: s.page(r), Lead: lead, Statuses: leads.Statuses()})
}

func (s *server) handleAdminLeadText(w http.ResponseWriter, r *http.Request) {
	lead, ok := s.adminLead(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(lead.Summary()))
}

func (s *server) handleAdminLeadStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	target := "/admin/leads/" + url.PathEscape(id)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	status, ok := leads.ParseStatus(r.FormValue("status"))
	if !ok {
		http.Redirect(w, r, target+"?error=Unknown+status", http.StatusSeeOther)
		return
	}

	err := s.leads.SetStatus(r.Context(), id, status)
	switch {
	case errors.Is(err, leads.ErrNotFound):
		s.handleNotFound(w, r)
	case err != nil:
		// The local status is saved even when the CRM push fails.
		http.Redirect(w, r, target+"?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
	default:
		http.Redirect(w, r, target+"?success="+url.QueryEscape("Status set to "+string(status)), http.StatusSeeOther)
	}
}

func (s *server) handleAdminRetry(w http.ResponseWriter, r *http.Request) {
	n, err := s.leads.RetryPending(r.Context())
	if err != nil {
		s.report(err)
		http.Redirect(w, r, "/admin/leads?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin/leads?success="+url.QueryEscape(fmt.Sprintf("Retried %d lead(s)", n)), http.StatusSeeOther)
}

func (s *server) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseLeadFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q.Limit = exportLimit

	list, err := s.leads.Store().List(r.Context(), q)
	if err != nil {
		s.serverError(w, r, "failed to load leads", err)
		return
	}
	book, err := export.LeadsWorkbook(list)
	if err != nil {
		s.serverError(w, r, "failed to build workbook", err)
		return
	}

	filename := "leads-" + s.now().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(book)
}

func (s *server) handleAdminAds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now().UTC()

	summaries, err := s.ads.Summaries(ctx, now.AddDate(0, 0, -(adsReportDays-1)), now)
	if err != nil {
		s.serverError(w, r, "failed to load ads report", err)
		return
	}
	window, err := s.ads.Summaries(ctx, now.AddDate(0, 0, -(s.adsRule.Window-1)), now)
	if err != nil {
		s.serverError(w, r, "failed to load ads report", err)
		return
	}
	lastSynced, err := s.ads.LastSynced(ctx)
	if err != nil {
		s.serverError(w, r, "failed to load ads report", err)
		return
	}
	actions, err := s.ads.RecentActions(ctx, 20)
	if err != nil {
		s.serverError(w, r, "failed to load ads actions", err)
		return
	}

	s.renderTemplate(w, r, "admin_ads.html", adsViewData{
		page:       s.page(r),
		Days:       adsReportDays,
		APIEnabled: s.adsSource != nil,
		LastSynced: lastSynced,
		Summaries:  summaries,
		Rule:       s.adsRule,
		RuleLimit:  float64(s.adsRule.MaxCostMicros) / 1e6,
		Flagged:    ads.Evaluate(window, s.adsRule),
		Actions:    actions,
	})
}

func (s *server) handleAdminAdsSync(w http.ResponseWriter, r *http.Request) {
	if s.adsSource == nil {
		http.Redirect(w, r, "/admin/ads?error=Google+Ads+API+is+not+configured", http.StatusSeeOther)
		return
	}
	n, err := ads.Sync(r.Context(), s.adsSource, s.ads, adsReportDays, s.now())
	if err != nil {
		s.report(err)
		http.Redirect(w, r, "/admin/ads?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin/ads?success="+url.QueryEscape(fmt.Sprintf("Synced %d rows", n)), http.StatusSeeOther)
}
