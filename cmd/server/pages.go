package main

import (
	"encoding/json"
	"net/http"

	"github.com/somersetwc/website/internal/leads"
)

type areasViewData struct {
	page
	Areas []leads.Area
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, r, "home.html", s.page(r))
}

func (s *server) handleServices(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, r, "services.html", s.page(r))
}

func (s *server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, r, "about.html", s.page(r))
}

func (s *server) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, r, "privacy.html", s.page(r))
}

func (s *server) handleAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.leads.Store().ListServiceAreas(r.Context())
	if err != nil {
		s.serverError(w, r, "failed to load service areas", err)
		return
	}
	s.renderTemplate(w, r, "areas.html", areasViewData{page: s.page(r), Areas: areas})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "database unavailable", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
