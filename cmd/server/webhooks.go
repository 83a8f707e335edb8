package main

import (
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/notion"
	"github.com/somersetwc/website/internal/webhook"
)

const (
	maxWebhookBody   = 1 << 20
	webhookTolerance = 5 * time.Minute
)

// handleCRMWebhook applies status changes made in the Notion board.
func (s *server) handleCRMWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret == "" {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if err := webhook.Verify([]byte(s.cfg.WebhookSecret), body, r.Header.Get(webhook.Header), s.now(), webhookTolerance); err != nil {
		s.logger.Warn("crm webhook rejected", zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}

	if err := s.replays.Record(r.Header.Get(webhook.Header), body, s.now()); err != nil {
		s.logger.Warn("crm webhook replayed", zap.Error(err))
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	change, err := notion.ParseStatusChange(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	lead, err := s.leads.ApplyCRMStatus(r.Context(), change.PageID, change.Status)
	if errors.Is(err, leads.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no lead for page"})
		return
	}
	if err != nil {
		s.serverError(w, r, "failed to apply status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": lead.ID, "status": string(lead.Status)})
}
