// Command adsctl syncs Google Ads performance into the website database,
// prints campaign reports and runs the spend guard. It is meant for cron.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/somersetwc/website/internal/ads"
	"github.com/somersetwc/website/internal/config"
	"github.com/somersetwc/website/internal/db"
	"github.com/somersetwc/website/internal/logging"
	"github.com/somersetwc/website/internal/migrations"
)

var (
	cfg    config.Config
	logger *zap.Logger

	dbPath  string
	verbose bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "adsctl",
	Short: "Google Ads reporting and spend guard",
	Long: `adsctl keeps a local copy of Google Ads campaign performance in the
website database and pauses campaigns that spend without converting.

Credentials come from the same environment variables as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		if logger, err = logging.New(level, true); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	reportCmd.Flags().IntVar(&reportDays, "days", 30, "Number of days to report on")

	syncCmd.Flags().IntVar(&syncDays, "days", 30, "Number of days to fetch")

	guardCmd.Flags().BoolVar(&guardDryRun, "dry-run", false, "Record decisions without pausing anything")
	guardCmd.Flags().Float64Var(&guardMaxSpend, "max-spend", float64(ads.DefaultRule.MaxCostMicros)/1e6, "Pause after this many pounds without a conversion")
	guardCmd.Flags().IntVar(&guardWindow, "window", ads.DefaultRule.Window, "Days of spend the rule looks at")
	guardCmd.Flags().BoolVar(&guardSync, "sync", true, "Sync the window from the API before evaluating")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(guardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore opens and migrates the website database.
func openStore(ctx context.Context) (*ads.Store, *sql.DB, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Up(ctx, database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return ads.NewStore(database), database, nil
}

func newAdsClient(ctx context.Context) (*ads.Client, error) {
	g := cfg.GoogleAds
	if !g.Enabled() {
		return nil, ads.ErrNotConfigured
	}
	return ads.NewClient(ctx, ads.Config{
		DeveloperToken:  g.DeveloperToken,
		ClientID:        g.ClientID,
		ClientSecret:    g.ClientSecret,
		RefreshToken:    g.RefreshToken,
		CustomerID:      g.CustomerID,
		LoginCustomerID: g.LoginCustomerID,
	}), nil
}
