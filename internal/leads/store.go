package leads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/somersetwc/website/internal/pricing"
)

const timeLayout = "2006-01-02 15:04:05.000000"

// Store persists leads and service areas in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open database that has been migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const leadColumns = `
	id, kind, name, email, phone, address, postcode, preferred_contact, message,
	services_json, property_type, bedrooms, extensions, frequency,
	estimate_json, estimate_total, estimate_poa,
	source, in_service_area, status,
	notion_page_id, email_sent, sync_error, sync_attempts, analytics_client_id,
	created_at, updated_at`

// Create inserts a new lead, assigning its id and timestamps.
func (s *Store) Create(ctx context.Context, lead *Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = StatusNew
	}
	now := s.now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	servicesJSON, err := json.Marshal(nonNilServices(lead.Services))
	if err != nil {
		return fmt.Errorf("encode services: %w", err)
	}
	estimateJSON, err := json.Marshal(nonNilRows(lead.Estimate.Rows))
	if err != nil {
		return fmt.Errorf("encode estimate: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lead.ID, lead.Kind, lead.Name, lead.Email, lead.Phone, lead.Address, lead.Postcode, lead.PreferredContact, lead.Message,
		string(servicesJSON), lead.Property, lead.Bedrooms, lead.Extensions, lead.Frequency,
		string(estimateJSON), lead.Estimate.Total, lead.Estimate.HasPOA,
		lead.Source, lead.InServiceArea, lead.Status,
		lead.NotionPageID, lead.EmailSent, lead.SyncError, lead.SyncAttempts, lead.AnalyticsClientID,
		now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// Get loads one lead by id.
func (s *Store) Get(ctx context.Context, id string) (Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("query lead %s: %w", id, err)
	}
	return lead, nil
}

// FindByNotionPage loads the lead that was synced to a CRM page.
func (s *Store) FindByNotionPage(ctx context.Context, pageID string) (Lead, error) {
	if pageID == "" {
		return Lead{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE notion_page_id = ?`, pageID)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("query lead by notion page: %w", err)
	}
	return lead, nil
}

// ListQuery filters the admin lead list.
type ListQuery struct {
	Search string
	Kind   Kind
	Status Status
	Since  time.Time
	Limit  int
}

// likeEscaper makes search text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns leads newest first. Search matches name, email, phone,
// postcode and message.
func (s *Store) List(ctx context.Context, q ListQuery) ([]Lead, error) {
	search := "%" + likeEscaper.Replace(q.Search) + "%"
	limit := q.Limit
	if limit <= 0 {
		limit = 500
	}
	since := ""
	if !q.Since.IsZero() {
		since = q.Since.UTC().Format(timeLayout)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE (? = ''
				OR name LIKE ? ESCAPE '\'
				OR email LIKE ? ESCAPE '\'
				OR phone LIKE ? ESCAPE '\'
				OR postcode LIKE ? ESCAPE '\'
				OR message LIKE ? ESCAPE '\')
			AND (? = '' OR kind = ?)
			AND (? = '' OR status = ?)
			AND (? = '' OR created_at >= ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`,
		q.Search, search, search, search, search, search,
		q.Kind, q.Kind,
		q.Status, q.Status,
		since, since,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	out := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return out, nil
}

// SyncResult records one delivery attempt.
type SyncResult struct {
	NotionPageID string
	EmailSent    bool
	Err          error
}

// MarkSynced stores the outcome of a delivery attempt. A page id or sent
// flag, once recorded, is never cleared by a later attempt.
func (s *Store) MarkSynced(ctx context.Context, id string, res SyncResult) error {
	syncErr := ""
	if res.Err != nil {
		syncErr = res.Err.Error()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE leads
		SET
			notion_page_id = CASE WHEN ? <> '' THEN ? ELSE notion_page_id END,
			email_sent = email_sent OR ?,
			sync_error = ?,
			sync_attempts = sync_attempts + 1,
			updated_at = ?
		WHERE id = ?
	`, res.NotionPageID, res.NotionPageID, res.EmailSent, syncErr, s.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update lead sync state: %w", err)
	}
	return requireAffected(result, id)
}

// UpdateStatus moves a lead to another pipeline column.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE leads SET status = ?, updated_at = ? WHERE id = ?
	`, status, s.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return requireAffected(result, id)
}

// PendingQuery selects leads that still need delivering.
type PendingQuery struct {
	NeedCRM     bool
	NeedEmail   bool
	MaxAttempts int
	Limit       int
	// StaleBefore admits never-attempted leads created before it. Leads
	// without a recorded attempt are otherwise still being delivered by
	// Submit.
	StaleBefore time.Time
}

// Pending returns undelivered leads oldest first.
func (s *Store) Pending(ctx context.Context, q PendingQuery) ([]Lead, error) {
	if !q.NeedCRM && !q.NeedEmail {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	staleBefore := ""
	if !q.StaleBefore.IsZero() {
		staleBefore = q.StaleBefore.UTC().Format(timeLayout)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ((? AND notion_page_id = '') OR (? AND email_sent = FALSE))
			AND sync_attempts < ?
			AND (sync_attempts > 0 OR (? <> '' AND created_at < ?))
		ORDER BY created_at ASC
		LIMIT ?
	`, q.NeedCRM, q.NeedEmail, q.MaxAttempts, staleBefore, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending leads: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending lead: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending leads: %w", err)
	}
	return out, nil
}

// Counts summarises the pipeline for the dashboard.
type Counts struct {
	Total    int
	Recent   int
	Unsynced int
	ByStatus map[Status]int
}

// Count tallies leads; Recent counts those created after since.
func (s *Store) Count(ctx context.Context, since time.Time) (Counts, error) {
	counts := Counts{ByStatus: map[Status]int{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sync_error <> '' THEN 1 ELSE 0 END), 0)
		FROM leads
	`, since.UTC().Format(timeLayout)).Scan(&counts.Total, &counts.Recent, &counts.Unsynced)
	if err != nil {
		return Counts{}, fmt.Errorf("count leads: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return Counts{}, fmt.Errorf("count leads by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, fmt.Errorf("scan status count: %w", err)
		}
		counts.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return Counts{}, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// Area is a postcode prefix the business covers.
type Area struct {
	ID             int64
	Name           string
	PostcodePrefix string
	Active         bool
}

// ListServiceAreas returns the active areas in name order.
func (s *Store) ListServiceAreas(ctx context.Context) ([]Area, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, postcode_prefix, active
		FROM service_areas
		WHERE active = TRUE
		ORDER BY name, postcode_prefix
	`)
	if err != nil {
		return nil, fmt.Errorf("query service areas: %w", err)
	}
	defer rows.Close()

	areas := make([]Area, 0)
	for rows.Next() {
		var a Area
		if err := rows.Scan(&a.ID, &a.Name, &a.PostcodePrefix, &a.Active); err != nil {
			return nil, fmt.Errorf("scan service area: %w", err)
		}
		areas = append(areas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service areas: %w", err)
	}
	return areas, nil
}

// InServiceArea reports whether a normalised postcode falls inside any
// active area. A prefix of letters only ("BA") covers the whole postcode
// area; otherwise the outward code must match exactly ("TA1" does not
// cover "TA10").
func (s *Store) InServiceArea(ctx context.Context, postcode string) (bool, error) {
	if postcode == "" {
		return false, nil
	}
	areas, err := s.ListServiceAreas(ctx)
	if err != nil {
		return false, err
	}
	return matchArea(areas, OutwardCode(postcode)), nil
}

func matchArea(areas []Area, outward string) bool {
	outward = strings.ToUpper(outward)
	letters := outward
	if i := strings.IndexFunc(outward, unicode.IsDigit); i >= 0 {
		letters = outward[:i]
	}
	for _, a := range areas {
		prefix := strings.ToUpper(a.PostcodePrefix)
		if prefix == outward {
			return true
		}
		if prefix == letters && strings.IndexFunc(prefix, unicode.IsDigit) < 0 {
			return true
		}
	}
	return false
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(sc scanner) (Lead, error) {
	var (
		lead         Lead
		servicesJSON string
		estimateJSON string
		createdAt    string
		updatedAt    string
	)
	err := sc.Scan(
		&lead.ID, &lead.Kind, &lead.Name, &lead.Email, &lead.Phone, &lead.Address, &lead.Postcode, &lead.PreferredContact, &lead.Message,
		&servicesJSON, &lead.Property, &lead.Bedrooms, &lead.Extensions, &lead.Frequency,
		&estimateJSON, &lead.Estimate.Total, &lead.Estimate.HasPOA,
		&lead.Source, &lead.InServiceArea, &lead.Status,
		&lead.NotionPageID, &lead.EmailSent, &lead.SyncError, &lead.SyncAttempts, &lead.AnalyticsClientID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return Lead{}, err
	}

	if err := json.Unmarshal([]byte(servicesJSON), &lead.Services); err != nil {
		return Lead{}, fmt.Errorf("decode services: %w", err)
	}
	if err := json.Unmarshal([]byte(estimateJSON), &lead.Estimate.Rows); err != nil {
		return Lead{}, fmt.Errorf("decode estimate: %w", err)
	}
	if lead.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Lead{}, fmt.Errorf("parse created_at: %w", err)
	}
	if lead.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return Lead{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return lead, nil
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return nil
}

func nonNilServices(s []pricing.Service) []pricing.Service {
	if s == nil {
		return []pricing.Service{}
	}
	return s
}

func nonNilRows(r []pricing.Row) []pricing.Row {
	if r == nil {
		return []pricing.Row{}
	}
	return r
}
