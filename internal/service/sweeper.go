package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/metrics"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

// Deliverer dispatches the prompt of one active reminder.
type Deliverer interface {
	Deliver(ctx context.Context, reminderID string) error
}

// SweeperOptions tune one sweep.
type SweeperOptions struct {
	BatchSize  int
	StaleAfter time.Duration // 0 disables the stale re-send pass
}

// SweepReport counts the outcome of one pass.
type SweepReport struct {
	Due       int
	Stale     int
	Delivered int
	Skipped   int
	Failed    int
}

// Sweeper delivers scheduled reminders that came due and
// re-sends sent reminders nobody answered within StaleAfter.
type Sweeper struct {
	reminders repository.RemindersRepository
	deliverer Deliverer
	clock     clock.Clock
	opts      SweeperOptions
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewSweeper(reminders repository.RemindersRepository, deliverer Deliverer, clk clock.Clock, opts SweeperOptions, logger *zap.Logger, m *metrics.Metrics) *Sweeper {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Sweeper{
		reminders: reminders,
		deliverer: deliverer,
		clock:     clk,
		opts:      opts,
		logger:    logger,
		metrics:   m,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting reminder sweeper",
		zap.Duration("interval", interval),
		zap.Int("batch_size", s.opts.BatchSize),
		zap.Duration("stale_after", s.opts.StaleAfter),
	)

	if _, err := s.SweepOnce(ctx); err != nil {
		s.logger.Error("Reminder sweep failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("Reminder sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce runs the due pass then the stale pass. A listing failure aborts
// the pass; a single delivery failure does not.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.clock.Now()

	due, err := s.reminders.ListDue(ctx, now, s.opts.BatchSize)
	if err != nil {
		return report, err
	}
	report.Due = len(due)
	s.deliverAll(ctx, due, &report)

	if s.opts.StaleAfter > 0 {
		stale, err := s.reminders.ListStaleSent(ctx, now.Add(-s.opts.StaleAfter), s.opts.BatchSize)
		if err != nil {
			return report, err
		}
		report.Stale = len(stale)
		s.deliverAll(ctx, stale, &report)
	}

	s.metrics.RecordSweep("due", report.Due)
	s.metrics.RecordSweep("stale", report.Stale)
	if report.Due+report.Stale > 0 {
		s.logger.Info("Reminder sweep finished",
			zap.Int("due", report.Due),
			zap.Int("stale", report.Stale),
			zap.Int("delivered", report.Delivered),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

func (s *Sweeper) deliverAll(ctx context.Context, batch []*domain.CheckoutReminder, report *SweepReport) {
	for _, rem := range batch {
		if ctx.Err() != nil {
			return
		}
		err := s.deliverer.Deliver(ctx, rem.ReminderID)
		switch {
		case err == nil:
			report.Delivered++
		case domain.IsConflict(err):
			// answered or checked out since listing
			report.Skipped++
			s.logger.Debug("Reminder no longer deliverable",
				zap.String("reminder_id", rem.ReminderID),
				zap.Error(err),
			)
		default:
			report.Failed++
			s.logger.Warn("Reminder delivery failed, will retry next sweep",
				zap.String("reminder_id", rem.ReminderID),
				zap.String("session_id", rem.SessionID),
				zap.Error(err),
			)
		}
	}
}
