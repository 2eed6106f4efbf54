package wellness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/metrics"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/adhocore/gronx"
)

// DefaultSchedulerCron checks for due reminders every minute.
const DefaultSchedulerCron = "* * * * *"

// Notifier is told about every reminder that became due.
type Notifier interface {
	ReminderDue(profileID string, reminder models.Reminder)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(profileID string, reminder models.Reminder)

// ReminderDue implements Notifier.
func (f NotifierFunc) ReminderDue(profileID string, reminder models.Reminder) { f(profileID, reminder) }

// Scheduler notifies about due reminders on a cron schedule. Each reminder is notified once.
type Scheduler struct {
	store    Store
	notifier Notifier
	cron     string
	now      func() time.Time

	logger *slog.Logger
}

// NewScheduler creates a scheduler. An empty cron uses DefaultSchedulerCron; an invalid one is an error.
func NewScheduler(store Store, notifier Notifier, cron string, now func() time.Time, logger *slog.Logger) (*Scheduler, error) {
	if cron == "" {
		cron = DefaultSchedulerCron
	}
	if !gronx.New().IsValid(cron) {
		return nil, fmt.Errorf("invalid scheduler cron %q", cron)
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		store:    store,
		notifier: notifier,
		cron:     cron,
		now:      now,
		logger:   logger.With(slog.String("module", "reminder-scheduler")),
	}, nil
}

// Run checks for due reminders on every tick until ctx is done. It always returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Reminder scheduler started", slog.String("cron", s.cron))
	for {
		next, err := gronx.NextTickAfter(s.cron, s.now(), false)
		if err != nil {
			s.logger.Error("Failed to compute next tick", slog.String(errLoggerKey, err.Error()))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		wait := max(time.Until(next), time.Second)
		select {
		case <-time.After(wait):
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("Failed to check reminders", slog.String(errLoggerKey, err.Error()))
			}
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return nil
		}
	}
}

// Tick notifies about every reminder that is due and not yet notified, and returns how many there were.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	profiles, err := s.store.Profiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list profiles: %w", err)
	}

	now := s.now()
	count := 0
	for _, profileID := range profiles {
		reminders, err := s.store.Reminders(ctx, profileID)
		if err != nil {
			return count, fmt.Errorf("failed to load reminders of %s: %w", profileID, err)
		}
		for _, rem := range reminders {
			if rem.Completed || rem.Notified || rem.Due.After(now) {
				continue
			}
			rem.Notified = true
			if err := s.store.UpdateReminder(ctx, profileID, rem); err != nil {
				return count, fmt.Errorf("failed to mark reminder notified: %w", err)
			}
			metrics.RemindersDue.Inc()
			s.notifier.ReminderDue(profileID, rem)
			count++
		}
	}
	return count, nil
}
