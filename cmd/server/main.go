package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/somersetwc/website/internal/ads"
	"github.com/somersetwc/website/internal/analytics"
	"github.com/somersetwc/website/internal/booking"
	"github.com/somersetwc/website/internal/config"
	"github.com/somersetwc/website/internal/content"
	"github.com/somersetwc/website/internal/db"
	"github.com/somersetwc/website/internal/emailjs"
	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/logging"
	"github.com/somersetwc/website/internal/migrations"
	"github.com/somersetwc/website/internal/monitoring"
	"github.com/somersetwc/website/internal/notion"
	"github.com/somersetwc/website/internal/ratelimit"
	"github.com/somersetwc/website/internal/recaptcha"
	"github.com/somersetwc/website/internal/seed"
	"github.com/somersetwc/website/internal/webhook"
	"github.com/somersetwc/website/web"
)

const (
	shutdownTimeout = 15 * time.Second
	purgeInterval   = time.Hour
)

type server struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *sql.DB
	site      *content.Site
	templates map[string]*template.Template
	static    fs.FS
	auth      *authService
	leads     *leads.Service
	drafts    *booking.Store
	captcha   *recaptcha.Verifier
	limiter   *ratelimit.Limiter
	replays   *webhook.Replays
	ads       *ads.Store
	adsSource ads.Source
	adsRule   ads.Rule
	report    func(error)
	now       func() time.Time
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	sentryEnabled, err := monitoring.Init(monitoring.Options{DSN: cfg.SentryDSN, Environment: cfg.Env})
	if err != nil {
		return err
	}
	if sentryEnabled {
		defer monitoring.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := migrations.Up(ctx, database); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	stats, err := seed.Run(database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
	if err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	logger.Info("seed complete", zap.Int("inserts", stats.Inserts), zap.Int("updates", stats.Updates))

	site, err := content.Load(web.FS, web.ContentPath)
	if err != nil {
		return err
	}

	srv, err := newServer(ctx, cfg, logger, database, site)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		srv.leads.Run(gctx, cfg.OutboxInterval)
		return nil
	})
	g.Go(func() error {
		srv.limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		srv.purgeDrafts(gctx, purgeInterval)
		return nil
	})
	return g.Wait()
}

// newServer wires the optional integrations that cfg has credentials for.
func newServer(ctx context.Context, cfg config.Config, logger *zap.Logger, database *sql.DB, site *content.Site) (*server, error) {
	templates, err := parseTemplates(web.FS)
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	opts := []leads.Option{leads.WithErrorReporter(monitoring.Report)}
	if cfg.NotionToken != "" && cfg.NotionDatabaseID != "" {
		opts = append(opts, leads.WithCRM(notion.New(nil, notion.Config{
			Token:      cfg.NotionToken,
			DatabaseID: cfg.NotionDatabaseID,
		})))
	}
	if cfg.EmailJS.Enabled() {
		client := emailjs.New(nil, emailjs.Config{
			ServiceID:  cfg.EmailJS.ServiceID,
			PublicKey:  cfg.EmailJS.PublicKey,
			PrivateKey: cfg.EmailJS.PrivateKey,
		})
		opts = append(opts, leads.WithMailer(emailjs.NewLeadMailer(client, emailjs.MailerConfig{
			NotifyTemplate:    cfg.EmailJS.TemplateID,
			AutoReplyTemplate: cfg.EmailJS.AutoReplyTemplate,
			OwnerEmail:        cfg.EmailJS.OwnerEmail,
			BaseURL:           cfg.BaseURL,
		}, logger)))
	}
	if cfg.GAMeasurementID != "" && cfg.GAAPISecret != "" {
		opts = append(opts, leads.WithTracker(analytics.New(nil, analytics.Config{
			MeasurementID: cfg.GAMeasurementID,
			APISecret:     cfg.GAAPISecret,
		})))
	}

	s := &server{
		cfg:       cfg,
		logger:    logger,
		db:        database,
		site:      site,
		templates: templates,
		static:    static,
		auth:      newAuthService(database, cfg.SessionSecret, !cfg.IsDev()),
		leads:     leads.NewService(leads.NewStore(database), logger, opts...),
		drafts:    booking.NewStore(database),
		captcha: recaptcha.New(nil, recaptcha.Config{
			Secret:   cfg.RecaptchaSecretKey,
			MinScore: cfg.RecaptchaMinScore,
		}, logger),
		limiter: ratelimit.PerMinute(cfg.FormsPerMinute),
		replays: webhook.NewReplays(2 * webhookTolerance),
		ads:     ads.NewStore(database),
		adsRule: ads.DefaultRule,
		report:  monitoring.Report,
		now:     time.Now,
	}
	if cfg.GoogleAds.Enabled() {
		s.adsSource = ads.NewClient(ctx, adsConfig(cfg.GoogleAds))
	}
	return s, nil
}

func adsConfig(g config.GoogleAds) ads.Config {
	return ads.Config{
		DeveloperToken:  g.DeveloperToken,
		ClientID:        g.ClientID,
		ClientSecret:    g.ClientSecret,
		RefreshToken:    g.RefreshToken,
		CustomerID:      g.CustomerID,
		LoginCustomerID: g.LoginCustomerID,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(monitoring.Middleware())
	r.NotFound(s.handleNotFound)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.static))))
	r.Get("/healthz", s.handleHealth)

	r.Get("/", s.handleHome)
	r.Get("/services", s.handleServices)
	r.Get("/about", s.handleAbout)
	r.Get("/areas", s.handleAreas)
	r.Get("/privacy", s.handlePrivacy)

	r.Get("/quote", s.handleQuoteForm)
	r.Post("/quote", s.handleQuoteSubmit)
	r.Get("/quote/thanks/{id}", s.handleQuoteThanks)
	r.Get("/quote/{id}/estimate.pdf", s.handleEstimatePDF)
	r.Post("/api/quote/estimate", s.handleEstimate)

	r.Get("/contact", s.handleContactForm)
	r.With(s.limiter.Middleware(ratelimit.ClientIP)).Post("/contact", s.handleContactSubmit)

	r.Post("/api/webhooks/crm", s.handleCRMWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin/leads", http.StatusSeeOther)
		})
		r.Get("/login", s.handleLoginForm)
		r.With(s.limiter.Middleware(ratelimit.ClientIP)).Post("/login", s.handleLoginSubmit)
		r.Post("/logout", s.handleLogout)
		r.Get("/leads", s.handleAdminLeads)
		r.Get("/leads/export.xlsx", s.handleAdminExport)
		r.Post("/leads/retry", s.handleAdminRetry)
		r.Get("/leads/{id}", s.handleAdminLead)
		r.Get("/leads/{id}/text", s.handleAdminLeadText)
		r.Post("/leads/{id}/status", s.handleAdminLeadStatus)
		r.Get("/ads", s.handleAdminAds)
		r.Post("/ads/sync", s.handleAdminAdsSync)
	})

	return r
}

// purgeDrafts deletes abandoned quote drafts on every tick.
func (s *server) purgeDrafts(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.drafts.PurgeBefore(ctx, s.now().Add(-s.cfg.DraftLifetime))
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Error("purge quote drafts", zap.Error(err))
					s.report(err)
				}
				continue
			}
			if n > 0 {
				s.logger.Info("purged quote drafts", zap.Int64("count", n))
			}
		}
	}
}
