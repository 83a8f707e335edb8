package ads

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const timeLayout = "2006-01-02 15:04:05.000000"

// DailyMetric is one campaign's performance on one day.
type DailyMetric struct {
	CampaignID     string
	CampaignName   string
	CampaignStatus string
	ResourceName   string
	Day            time.Time
	Impressions    int64
	Clicks         int64
	CostMicros     int64
	Conversions    float64
}

// Summary aggregates a campaign over a date range.
type Summary struct {
	CampaignID     string
	CampaignName   string
	CampaignStatus string
	ResourceName   string
	Impressions    int64
	Clicks         int64
	CostMicros     int64
	Conversions    float64
}

// Cost is the spend in pounds.
func (s Summary) Cost() float64 { return float64(s.CostMicros) / 1e6 }

// CTR is clicks per impression as a percentage.
func (s Summary) CTR() float64 {
	if s.Impressions == 0 {
		return 0
	}
	return float64(s.Clicks) / float64(s.Impressions) * 100
}

// CPC is the average cost per click in pounds.
func (s Summary) CPC() float64 {
	if s.Clicks == 0 {
		return 0
	}
	return s.Cost() / float64(s.Clicks)
}

// CPA is the cost per conversion in pounds; zero without conversions.
func (s Summary) CPA() float64 {
	if s.Conversions == 0 {
		return 0
	}
	return s.Cost() / s.Conversions
}

// Action is an automated change the guard made or would have made.
type Action struct {
	ID           int64
	CampaignID   string
	CampaignName string
	Action       string
	Reason       string
	DryRun       bool
	Error        string
	CreatedAt    time.Time
}

// Store keeps synced metrics and the guard's audit trail.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// UpsertDaily writes metrics, replacing rows for the same campaign and day.
func (s *Store) UpsertDaily(ctx context.Context, metrics []DailyMetric) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ads sync: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ads_daily_metrics (
			campaign_id, day, campaign_name, campaign_status, resource_name,
			impressions, clicks, cost_micros, conversions, synced_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (campaign_id, day) DO UPDATE SET
			campaign_name = excluded.campaign_name,
			campaign_status = excluded.campaign_status,
			resource_name = excluded.resource_name,
			impressions = excluded.impressions,
			clicks = excluded.clicks,
			cost_micros = excluded.cost_micros,
			conversions = excluded.conversions,
			synced_at = excluded.synced_at
	`)
	if err != nil {
		return fmt.Errorf("prepare ads upsert: %w", err)
	}
	defer stmt.Close()

	syncedAt := s.now().UTC().Format(timeLayout)
	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx,
			m.CampaignID, m.Day.Format(dateLayout), m.CampaignName, m.CampaignStatus, m.ResourceName,
			m.Impressions, m.Clicks, m.CostMicros, m.Conversions, syncedAt,
		); err != nil {
			return fmt.Errorf("upsert metrics for campaign %s: %w", m.CampaignID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ads sync: %w", err)
	}
	return nil
}

// Summaries totals each campaign over [from, to], biggest spend first.
// Name and status come from the campaign's most recent day.
func (s *Store) Summaries(ctx context.Context, from, to time.Time) ([]Summary, error) {
	// SQLite fills bare columns from the row that produced MAX(day).
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			campaign_id,
			campaign_name,
			campaign_status,
			resource_name,
			MAX(day),
			SUM(impressions),
			SUM(clicks),
			SUM(cost_micros),
			SUM(conversions)
		FROM ads_daily_metrics
		WHERE day BETWEEN ? AND ?
		GROUP BY campaign_id
		ORDER BY SUM(cost_micros) DESC, campaign_id
	`, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query ads summaries: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0)
	for rows.Next() {
		var (
			sum     Summary
			lastDay string
		)
		if err := rows.Scan(
			&sum.CampaignID, &sum.CampaignName, &sum.CampaignStatus, &sum.ResourceName, &lastDay,
			&sum.Impressions, &sum.Clicks, &sum.CostMicros, &sum.Conversions,
		); err != nil {
			return nil, fmt.Errorf("scan ads summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ads summaries: %w", err)
	}
	return out, nil
}

// LastSynced returns when metrics were last written, or the zero time.
func (s *Store) LastSynced(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(synced_at) FROM ads_daily_metrics`).Scan(&raw); err != nil {
		return time.Time{}, fmt.Errorf("query last ads sync: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, raw.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse synced_at: %w", err)
	}
	return t, nil
}

// RecordAction appends to the audit trail.
func (s *Store) RecordAction(ctx context.Context, a *Action) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO ads_actions (campaign_id, campaign_name, action, reason, dry_run, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.CampaignID, a.CampaignName, a.Action, a.Reason, a.DryRun, a.Error, a.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert ads action: %w", err)
	}
	if a.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("ads action id: %w", err)
	}
	return nil
}

// RecentActions returns the newest actions first.
func (s *Store) RecentActions(ctx context.Context, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, campaign_name, action, reason, dry_run, error, created_at
		FROM ads_actions
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ads actions: %w", err)
	}
	defer rows.Close()

	out := make([]Action, 0)
	for rows.Next() {
		var (
			a         Action
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.CampaignName, &a.Action, &a.Reason, &a.DryRun, &a.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ads action: %w", err)
		}
		if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse ads action time: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ads actions: %w", err)
	}
	return out, nil
}
