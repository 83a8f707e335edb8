package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDBPath        = "./dev.db"
	defaultPort          = "8080"
	defaultEnv           = "development"
	defaultLogLevel      = "info"
	defaultBaseURL       = "http://localhost:8080"
	defaultMinScore      = 0.5
	defaultFormsPerMin   = 6
	defaultOutboxEvery   = 10 * time.Minute
	defaultDraftLifetime = 72 * time.Hour
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env           string
	Port          string
	BaseURL       string
	DBPath        string
	LogLevel      string
	AdminEmail    string
	AdminPassword string
	SessionSecret string

	NotionToken      string
	NotionDatabaseID string

	EmailJS EmailJS

	RecaptchaSiteKey   string
	RecaptchaSecretKey string
	RecaptchaMinScore  float64

	SentryDSN       string
	GAMeasurementID string
	GAAPISecret     string

	WebhookSecret string

	GoogleAds GoogleAds

	FormsPerMinute int
	OutboxInterval time.Duration
	DraftLifetime  time.Duration
}

// EmailJS groups the EmailJS REST credentials and template ids.
type EmailJS struct {
	ServiceID         string
	TemplateID        string
	AutoReplyTemplate string
	PublicKey         string
	PrivateKey        string
	OwnerEmail        string
}

// Enabled reports whether enough is configured to send mail.
func (e EmailJS) Enabled() bool {
	return e.ServiceID != "" && e.TemplateID != "" && e.PublicKey != ""
}

// GoogleAds groups the Google Ads API credentials.
type GoogleAds struct {
	DeveloperToken  string
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	CustomerID      string
	LoginCustomerID string
}

// Enabled reports whether the Ads API can be called.
func (g GoogleAds) Enabled() bool {
	return g.DeveloperToken != "" && g.ClientID != "" && g.ClientSecret != "" &&
		g.RefreshToken != "" && g.CustomerID != ""
}

// Load reads environment variables (after a best-effort .env load) and
// returns a populated Config.
func Load() (Config, error) {
	// Missing files are fine; production injects real env vars.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := Config{
		Env:           getEnv("APP_ENV", defaultEnv),
		Port:          getEnv("PORT", defaultPort),
		BaseURL:       strings.TrimRight(getEnv("BASE_URL", defaultBaseURL), "/"),
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),

		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),

		EmailJS: EmailJS{
			ServiceID:         getEnv("EMAILJS_SERVICE_ID", ""),
			TemplateID:        getEnv("EMAILJS_TEMPLATE_ID", ""),
			AutoReplyTemplate: getEnv("EMAILJS_AUTOREPLY_TEMPLATE_ID", ""),
			PublicKey:         getEnv("EMAILJS_PUBLIC_KEY", ""),
			PrivateKey:        getEnv("EMAILJS_PRIVATE_KEY", ""),
			OwnerEmail:        getEnv("OWNER_EMAIL", ""),
		},

		RecaptchaSiteKey:   getEnv("RECAPTCHA_SITE_KEY", ""),
		RecaptchaSecretKey: getEnv("RECAPTCHA_SECRET_KEY", ""),

		SentryDSN:       getEnv("SENTRY_DSN", ""),
		GAMeasurementID: getEnv("GA_MEASUREMENT_ID", ""),
		GAAPISecret:     getEnv("GA_API_SECRET", ""),

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		GoogleAds: GoogleAds{
			DeveloperToken:  getEnv("GOOGLE_ADS_DEVELOPER_TOKEN", ""),
			ClientID:        getEnv("GOOGLE_ADS_CLIENT_ID", ""),
			ClientSecret:    getEnv("GOOGLE_ADS_CLIENT_SECRET", ""),
			RefreshToken:    getEnv("GOOGLE_ADS_REFRESH_TOKEN", ""),
			CustomerID:      strings.ReplaceAll(getEnv("GOOGLE_ADS_CUSTOMER_ID", ""), "-", ""),
			LoginCustomerID: strings.ReplaceAll(getEnv("GOOGLE_ADS_LOGIN_CUSTOMER_ID", ""), "-", ""),
		},
	}

	var err error
	if cfg.RecaptchaMinScore, err = parseFloatEnv("RECAPTCHA_MIN_SCORE", defaultMinScore); err != nil {
		return Config{}, fmt.Errorf("parse RECAPTCHA_MIN_SCORE: %w", err)
	}
	if cfg.FormsPerMinute, err = parseIntEnv("RATE_LIMIT_PER_MINUTE", defaultFormsPerMin); err != nil {
		return Config{}, fmt.Errorf("parse RATE_LIMIT_PER_MINUTE: %w", err)
	}
	if cfg.OutboxInterval, err = parseDurationEnv("OUTBOX_INTERVAL", defaultOutboxEvery); err != nil {
		return Config{}, fmt.Errorf("parse OUTBOX_INTERVAL: %w", err)
	}
	if cfg.DraftLifetime, err = parseDurationEnv("DRAFT_LIFETIME", defaultDraftLifetime); err != nil {
		return Config{}, fmt.Errorf("parse DRAFT_LIFETIME: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// Validate checks the values that must be present outside development.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.RecaptchaMinScore < 0 || c.RecaptchaMinScore > 1 {
		return errors.New("RECAPTCHA_MIN_SCORE must be between 0 and 1")
	}
	if c.FormsPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if c.OutboxInterval <= 0 {
		return errors.New("OUTBOX_INTERVAL must be greater than 0")
	}
	if c.DraftLifetime <= 0 {
		return errors.New("DRAFT_LIFETIME must be greater than 0")
	}
	if c.IsDev() {
		return nil
	}
	if len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters in production")
	}
	if c.RecaptchaSecretKey == "" {
		return errors.New("RECAPTCHA_SECRET_KEY is required in production")
	}
	return nil
}

// Warnings lists optional integrations that are switched off.
func (c Config) Warnings() []string {
	var out []string
	if c.AdminEmail == "" || c.AdminPassword == "" {
		out = append(out, "ADMIN_EMAIL/ADMIN_PASSWORD not set: no admin user will be seeded")
	}
	if c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET is not set")
	}
	if c.NotionToken == "" || c.NotionDatabaseID == "" {
		out = append(out, "Notion is not configured: leads are stored locally only")
	}
	if !c.EmailJS.Enabled() {
		out = append(out, "EmailJS is not configured: no lead notification emails")
	}
	if c.RecaptchaSecretKey == "" {
		out = append(out, "reCAPTCHA is disabled")
	}
	if c.WebhookSecret == "" {
		out = append(out, "WEBHOOK_SECRET is not set: CRM webhook is disabled")
	}
	if !c.GoogleAds.Enabled() {
		out = append(out, "Google Ads API is not configured: ads dashboard shows stored data only")
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func parseFloatEnv(key string, defaultVal float64) (float64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(val, 64)
}

func parseIntEnv(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(val)
}
