package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/somersetwc/website/internal/ads"
)

var (
	reportDays int
	syncDays   int

	guardDryRun   bool
	guardMaxSpend float64
	guardWindow   int
	guardSync     bool
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1F4E79"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	flagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#B3261E"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print campaign performance from the local database",
	RunE:  runReport,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch daily campaign metrics from the Google Ads API",
	RunE:  runSync,
}

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Pause campaigns that spend without converting",
	Long: `guard evaluates the spend rule over the last --window days and pauses
every enabled campaign that spent at least --max-spend pounds with no
conversions. Every decision is recorded, including dry runs.`,
	RunE: runGuard,
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	store, database, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -(reportDays - 1))
	summaries, err := store.Summaries(ctx, from, to)
	if err != nil {
		return err
	}
	lastSynced, err := store.LastSynced(ctx)
	if err != nil {
		return err
	}

	writeReport(cmd.OutOrStdout(), summaries, from, to, lastSynced)
	return nil
}

// writeReport prints the summary table. Campaigns the default rule would
// pause are highlighted.
func writeReport(w io.Writer, summaries []ads.Summary, from, to, lastSynced time.Time) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Campaigns %s to %s", from.Format("2 Jan"), to.Format("2 Jan 2006"))))
	if lastSynced.IsZero() {
		fmt.Fprintln(w, mutedStyle.Render("Never synced. Run `adsctl sync` first."))
	} else {
		fmt.Fprintln(w, mutedStyle.Render("Last synced "+lastSynced.Local().Format("02 Jan 2006 15:04")))
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No campaign data.")
		return
	}

	flagged := map[string]bool{}
	for _, d := range ads.Evaluate(summaries, ads.DefaultRule) {
		flagged[d.Summary.CampaignID] = true
	}

	var total ads.Summary
	rows := make([][]string, 0, len(summaries)+1)
	for _, s := range summaries {
		rows = append(rows, summaryRow(s.CampaignName, s.CampaignStatus, s))
		total.Impressions += s.Impressions
		total.Clicks += s.Clicks
		total.CostMicros += s.CostMicros
		total.Conversions += s.Conversions
	}
	rows = append(rows, summaryRow("Total", "", total))

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("CAMPAIGN", "STATUS", "IMPR", "CLICKS", "CTR", "SPEND", "CPC", "CONV", "CPA").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row < len(summaries) && flagged[summaries[row].CampaignID]:
				return flagStyle.Padding(0, 1)
			case col >= 2:
				return numberStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

func summaryRow(name, status string, s ads.Summary) []string {
	cpa := "-"
	if s.Conversions > 0 {
		cpa = fmt.Sprintf("£%.2f", s.CPA())
	}
	return []string{
		name,
		status,
		strconv.FormatInt(s.Impressions, 10),
		strconv.FormatInt(s.Clicks, 10),
		fmt.Sprintf("%.1f%%", s.CTR()),
		fmt.Sprintf("£%.2f", s.Cost()),
		fmt.Sprintf("£%.2f", s.CPC()),
		fmt.Sprintf("%.1f", s.Conversions),
		cpa,
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := newAdsClient(ctx)
	if err != nil {
		return err
	}
	store, database, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := ads.Sync(ctx, client, store, syncDays, time.Now())
	if err != nil {
		return err
	}
	logger.Info("ads metrics synced", zap.Int("rows", n), zap.Int("days", syncDays))
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d rows.\n", n)
	return nil
}

func runGuard(cmd *cobra.Command, args []string) error {
	if guardWindow < 1 {
		return fmt.Errorf("--window must be at least 1")
	}
	if guardMaxSpend <= 0 {
		return fmt.Errorf("--max-spend must be greater than 0")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	rule := ads.Rule{MaxCostMicros: int64(guardMaxSpend * 1e6), Window: guardWindow}

	store, database, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	var pauser ads.Pauser
	client, err := newAdsClient(ctx)
	switch {
	case err == nil:
		pauser = client
		if guardSync {
			if _, err := ads.Sync(ctx, client, store, guardWindow, time.Now()); err != nil {
				return fmt.Errorf("sync before guard: %w", err)
			}
		}
	case guardDryRun:
		logger.Warn("google ads not configured, evaluating stored metrics only")
	default:
		return err
	}

	actions, err := ads.NewGuard(store, pauser, rule, guardDryRun, logger).Apply(ctx)
	if err != nil {
		return err
	}
	writeActions(cmd.OutOrStdout(), actions)
	return nil
}

func writeActions(w io.Writer, actions []ads.Action) {
	if len(actions) == 0 {
		fmt.Fprintln(w, "Nothing to pause.")
		return
	}
	for _, a := range actions {
		verb := "Paused"
		switch {
		case a.DryRun:
			verb = "Would pause"
		case a.Error != "":
			verb = "Failed to pause"
		}
		line := fmt.Sprintf("%s %s: %s", verb, a.CampaignName, a.Reason)
		if a.Error != "" {
			line = flagStyle.Render(line + " (" + a.Error + ")")
		}
		fmt.Fprintln(w, line)
	}
}
