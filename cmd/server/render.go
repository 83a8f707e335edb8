package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/somersetwc/website/internal/content"
	"github.com/somersetwc/website/internal/monitoring"
	"github.com/somersetwc/website/internal/pricing"
)

// page is embedded in every view model; layout.html reads it.
type page struct {
	Site             *content.Site
	Admin            bool
	GAMeasurementID  string
	RecaptchaSiteKey string
	ErrorMessage     string
	SuccessMessage   string
}

type loginViewData struct {
	page
	Email string
}

var templateFuncs = template.FuncMap{
	"gbp": pricing.FormatGBP,
	"money": func(v float64) string {
		return fmt.Sprintf("£%.2f", v)
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("02 Jan 2006 15:04")
	},
}

// parseTemplates builds one template set per page, each paired with the
// layout.
func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	out := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := path.Base(file)
		if name == "layout.html" {
			continue
		}
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

// page fills the shared layout fields, including ?error= and ?success=
// flash messages.
func (s *server) page(r *http.Request) page {
	q := r.URL.Query()
	return page{
		Site:             s.site,
		Admin:            isAuthenticated(r, s.auth),
		GAMeasurementID:  s.cfg.GAMeasurementID,
		RecaptchaSiteKey: s.cfg.RecaptchaSiteKey,
		ErrorMessage:     q.Get("error"),
		SuccessMessage:   q.Get("success"),
	}
}

func (s *server) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.renderTemplateStatus(w, r, http.StatusOK, name, data)
}

func (s *server) renderTemplateStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := s.templates[name]
	if !ok {
		s.serverError(w, r, "failed to render template", fmt.Errorf("template %s not found", name))
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.serverError(w, r, "failed to render template", fmt.Errorf("execute %s: %w", name, err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
	monitoring.ReportRequest(r, err)
	http.Error(w, msg, http.StatusInternalServerError)
}

func (s *server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderTemplateStatus(w, r, http.StatusNotFound, "not_found.html", s.page(r))
}
