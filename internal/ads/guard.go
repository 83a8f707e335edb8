package ads

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ActionPause is recorded when the guard pauses a campaign.
const ActionPause = "pause"

const statusEnabled = "ENABLED"

// Rule is the spend guard: a campaign that spends at least MaxCostMicros
// over the last Window days without a single conversion gets paused.
type Rule struct {
	MaxCostMicros int64
	Window        int
}

// DefaultRule pauses after £50 with nothing to show for it over a week.
var DefaultRule = Rule{MaxCostMicros: 50_000_000, Window: 7}

// Decision is a campaign the rule wants to pause.
type Decision struct {
	Summary Summary
	Reason  string
}

// Evaluate applies the rule to campaign summaries. It has no side effects.
// A rule without a positive spend limit flags nothing.
func Evaluate(summaries []Summary, rule Rule) []Decision {
	if rule.MaxCostMicros <= 0 {
		return nil
	}
	var out []Decision
	for _, s := range summaries {
		if s.CampaignStatus != statusEnabled {
			continue
		}
		if s.Conversions > 0 || s.CostMicros < rule.MaxCostMicros {
			continue
		}
		out = append(out, Decision{
			Summary: s,
			Reason: fmt.Sprintf("spent £%.2f over %d days with no conversions (limit £%.2f)",
				s.Cost(), rule.Window, float64(rule.MaxCostMicros)/1e6),
		})
	}
	return out
}

// Pauser stops a campaign.
type Pauser interface {
	PauseCampaign(ctx context.Context, resourceName string) error
}

// Guard evaluates the rule against stored metrics and acts on it.
type Guard struct {
	store  *Store
	pauser Pauser
	rule   Rule
	dryRun bool
	logger *zap.Logger
	now    func() time.Time
}

// NewGuard builds a Guard. In dry-run mode decisions are only recorded.
func NewGuard(store *Store, pauser Pauser, rule Rule, dryRun bool, logger *zap.Logger) *Guard {
	return &Guard{store: store, pauser: pauser, rule: rule, dryRun: dryRun, logger: logger, now: time.Now}
}

// Apply pauses every campaign the rule flags and records what it did. A
// failed pause is recorded on the action and does not stop the others.
func (g *Guard) Apply(ctx context.Context) ([]Action, error) {
	to := g.now().UTC()
	from := to.AddDate(0, 0, -(g.rule.Window - 1))
	summaries, err := g.store.Summaries(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var actions []Action
	for _, d := range Evaluate(summaries, g.rule) {
		a := Action{
			CampaignID:   d.Summary.CampaignID,
			CampaignName: d.Summary.CampaignName,
			Action:       ActionPause,
			Reason:       d.Reason,
			DryRun:       g.dryRun,
		}
		if !g.dryRun {
			if err := g.pauser.PauseCampaign(ctx, d.Summary.ResourceName); err != nil {
				a.Error = err.Error()
				g.logger.Error("pause campaign failed", zap.String("campaign_id", a.CampaignID), zap.Error(err))
			}
		}
		if err := g.store.RecordAction(ctx, &a); err != nil {
			return actions, err
		}
		g.logger.Info("ads guard action",
			zap.String("campaign", a.CampaignName),
			zap.Bool("dry_run", a.DryRun),
			zap.String("reason", a.Reason),
		)
		actions = append(actions, a)
	}
	return actions, nil
}

// Source reports campaign performance.
type Source interface {
	CampaignPerformance(ctx context.Context, from, to time.Time) ([]DailyMetric, error)
}

// Sync copies the last days of performance into the store and returns the
// number of rows written.
func Sync(ctx context.Context, src Source, store *Store, days int, now time.Time) (int, error) {
	to := now.UTC()
	from := to.AddDate(0, 0, -(days - 1))
	metrics, err := src.CampaignPerformance(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if err := store.UpsertDaily(ctx, metrics); err != nil {
		return 0, err
	}
	return len(metrics), nil
}
