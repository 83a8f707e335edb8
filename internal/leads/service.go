package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxAttempts = 8
	deliveryTimeout    = 20 * time.Second
)

// CRM is the external pipeline the business works leads from.
type CRM interface {
	CreateLead(ctx context.Context, lead Lead) (pageID string, err error)
	UpdateStatus(ctx context.Context, pageID string, status Status) error
}

// Mailer sends the "new lead" notification emails.
type Mailer interface {
	NotifyLead(ctx context.Context, lead Lead) error
}

// Tracker records a conversion event for analytics.
type Tracker interface {
	TrackLead(ctx context.Context, lead Lead) error
}

// Service accepts leads and keeps the CRM and mailbox in step with the
// local store.
type Service struct {
	store       *Store
	crm         CRM
	mailer      Mailer
	tracker     Tracker
	logger      *zap.Logger
	report      func(error)
	maxAttempts int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCRM enables CRM delivery.
func WithCRM(crm CRM) Option { return func(s *Service) { s.crm = crm } }

// WithMailer enables notification emails.
func WithMailer(m Mailer) Option { return func(s *Service) { s.mailer = m } }

// WithTracker enables analytics events.
func WithTracker(t Tracker) Option { return func(s *Service) { s.tracker = t } }

// WithErrorReporter forwards delivery failures, e.g. to Sentry.
func WithErrorReporter(report func(error)) Option { return func(s *Service) { s.report = report } }

// WithMaxAttempts caps outbox retries per lead.
func WithMaxAttempts(n int) Option { return func(s *Service) { s.maxAttempts = n } }

// NewService builds a Service. Sinks left unset are skipped.
func NewService(store *Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      logger,
		report:      func(error) {},
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store to read-only callers.
func (s *Service) Store() *Store { return s.store }

// Submit saves the lead and then delivers it. Delivery failures are
// recorded on the lead for the outbox to retry; only a failure to save
// is returned.
func (s *Service) Submit(ctx context.Context, lead *Lead) error {
	if lead.Name == "" {
		return errors.New("lead name is required")
	}
	if lead.Kind != KindQuote && lead.Kind != KindContact {
		return fmt.Errorf("unknown lead kind %q", lead.Kind)
	}

	if lead.Postcode != "" {
		inArea, err := s.store.InServiceArea(ctx, lead.Postcode)
		if err != nil {
			s.logger.Warn("service area lookup failed", zap.Error(err))
		}
		lead.InServiceArea = inArea
	}

	if err := s.store.Create(ctx, lead); err != nil {
		return fmt.Errorf("save lead: %w", err)
	}
	s.logger.Info("lead received",
		zap.String("lead_id", lead.ID),
		zap.String("kind", string(lead.Kind)),
		zap.Bool("in_area", lead.InServiceArea),
		zap.Int("estimate_total", lead.Estimate.Total),
	)

	// The customer's request finishing must not abort delivery.
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	res := s.deliver(deliverCtx, *lead, true)
	if err := s.store.MarkSynced(deliverCtx, lead.ID, res); err != nil {
		s.logger.Error("record lead sync", zap.String("lead_id", lead.ID), zap.Error(err))
		s.report(err)
	}
	if res.NotionPageID != "" {
		lead.NotionPageID = res.NotionPageID
	}
	lead.EmailSent = lead.EmailSent || res.EmailSent
	return nil
}

// deliver pushes the lead to every sink that does not have it yet. The
// sinks run concurrently and never cancel each other.
func (s *Service) deliver(ctx context.Context, lead Lead, track bool) SyncResult {
	var (
		g        errgroup.Group
		pageID   string
		crmErr   error
		mailErr  error
		mailSent bool
	)

	if s.crm != nil && lead.NotionPageID == "" {
		g.Go(func() error {
			pageID, crmErr = s.crm.CreateLead(ctx, lead)
			return nil
		})
	}
	if s.mailer != nil && !lead.EmailSent {
		g.Go(func() error {
			mailErr = s.mailer.NotifyLead(ctx, lead)
			mailSent = mailErr == nil
			return nil
		})
	}
	if s.tracker != nil && track {
		g.Go(func() error {
			if err := s.tracker.TrackLead(ctx, lead); err != nil {
				s.logger.Warn("analytics event failed", zap.String("lead_id", lead.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	if crmErr != nil {
		errs = append(errs, fmt.Errorf("crm: %w", crmErr))
	}
	if mailErr != nil {
		errs = append(errs, fmt.Errorf("email: %w", mailErr))
	}
	res := SyncResult{NotionPageID: pageID, EmailSent: mailSent, Err: errors.Join(errs...)}
	if res.Err != nil {
		s.logger.Warn("lead delivery incomplete", zap.String("lead_id", lead.ID), zap.Error(res.Err))
		s.report(fmt.Errorf("deliver lead %s: %w", lead.ID, res.Err))
	}
	return res
}

// RetryPending re-delivers leads the sinks have not acknowledged. Leads
// whose first delivery may still be running in Submit are left alone. It
// returns how many leads were attempted.
func (s *Service) RetryPending(ctx context.Context) (int, error) {
	pending, err := s.store.Pending(ctx, PendingQuery{
		NeedCRM:     s.crm != nil,
		NeedEmail:   s.mailer != nil,
		MaxAttempts: s.maxAttempts,
		StaleBefore: s.now().Add(-deliveryTimeout),
	})
	if err != nil {
		return 0, err
	}

	for _, lead := range pending {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		res := s.deliver(ctx, lead, false)
		if err := s.store.MarkSynced(ctx, lead.ID, res); err != nil {
			return 0, err
		}
	}
	if len(pending) > 0 {
		s.logger.Info("lead outbox retried", zap.Int("count", len(pending)))
	}
	return len(pending), nil
}

// Run retries the outbox on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RetryPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("lead outbox retry failed", zap.Error(err))
				s.report(err)
			}
		}
	}
}

// SetStatus updates the pipeline status locally and in the CRM.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) error {
	lead, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if s.crm == nil || lead.NotionPageID == "" {
		return nil
	}
	if err := s.crm.UpdateStatus(ctx, lead.NotionPageID, status); err != nil {
		s.report(err)
		return fmt.Errorf("push status to crm: %w", err)
	}
	return nil
}

// ApplyCRMStatus records a status change that originated in the CRM.
func (s *Service) ApplyCRMStatus(ctx context.Context, pageID string, status Status) (Lead, error) {
	lead, err := s.store.FindByNotionPage(ctx, pageID)
	if err != nil {
		return Lead{}, err
	}
	if lead.Status == status {
		return lead, nil
	}
	if err := s.store.UpdateStatus(ctx, lead.ID, status); err != nil {
		return Lead{}, err
	}
	s.logger.Info("lead status changed in crm",
		zap.String("lead_id", lead.ID),
		zap.String("from", string(lead.Status)),
		zap.String("to", string(status)),
	)
	lead.Status = status
	return lead, nil
}
