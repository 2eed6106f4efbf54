package wellness

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/adhocore/gronx"
)

// Reminders manages appointment, medication and wellness reminders.
type Reminders struct {
	store Store
	now   func() time.Time

	logger *slog.Logger
}

// ReminderList splits reminders for the two tabs of the reminders screen.
type ReminderList struct {
	Upcoming  []models.Reminder
	Completed []models.Reminder
}

// ReminderInput is a reminder submitted from the add form.
type ReminderInput struct {
	Kind        models.ReminderKind
	Title       string
	Description string
	Location    string
	Priority    models.Priority
	Due         time.Time
	Recurrence  string
}

// NewReminders creates the reminder service. A nil now uses time.Now.
func NewReminders(store Store, now func() time.Time, logger *slog.Logger) *Reminders {
	if now == nil {
		now = time.Now
	}
	return &Reminders{
		store:  store,
		now:    now,
		logger: logger.With(slog.String("module", "reminders")),
	}
}

// List returns upcoming reminders by due time and completed ones most recent first.
func (r *Reminders) List(ctx context.Context, profileID string) (ReminderList, error) {
	all, err := r.store.Reminders(ctx, profileID)
	if err != nil {
		return ReminderList{}, fmt.Errorf("failed to load reminders: %w", err)
	}

	var list ReminderList
	for _, rem := range all {
		if rem.Completed {
			list.Completed = append(list.Completed, rem)
			continue
		}
		list.Upcoming = append(list.Upcoming, rem)
	}
	slices.SortStableFunc(list.Upcoming, func(a, b models.Reminder) int {
		return a.Due.Compare(b.Due)
	})
	slices.SortStableFunc(list.Completed, func(a, b models.Reminder) int {
		return cmp.Or(b.CompletedAt.Compare(a.CompletedAt), b.Due.Compare(a.Due))
	})
	return list, nil
}

// Add validates and stores a new reminder. Recurrence, when set, must be a valid cron expression.
func (r *Reminders) Add(ctx context.Context, profileID string, in ReminderInput) (models.Reminder, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Reminder{}, fmt.Errorf("%w: title is required", ErrInvalidReminder)
	}
	if in.Due.IsZero() {
		return models.Reminder{}, fmt.Errorf("%w: due time is required", ErrInvalidReminder)
	}
	recurrence := strings.TrimSpace(in.Recurrence)
	if recurrence != "" && !gronx.New().IsValid(recurrence) {
		return models.Reminder{}, fmt.Errorf("%w: %q is not a valid cron expression", ErrInvalidReminder, recurrence)
	}

	rem := models.Reminder{
		Kind:        cmp.Or(in.Kind, models.ReminderWellness),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Priority:    cmp.Or(in.Priority, models.PriorityMedium),
		Due:         in.Due,
		Recurrence:  recurrence,
	}
	id, err := r.store.AddReminder(ctx, profileID, rem)
	if err != nil {
		return models.Reminder{}, fmt.Errorf("failed to add reminder: %w", err)
	}
	rem.ID = id
	return rem, nil
}

// Complete marks a reminder done. For a recurring reminder the next occurrence is added and returned.
func (r *Reminders) Complete(ctx context.Context, profileID, id string) (*models.Reminder, error) {
	all, err := r.store.Reminders(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminders: %w", err)
	}
	idx := slices.IndexFunc(all, func(rem models.Reminder) bool { return rem.ID == id })
	if idx < 0 {
		return nil, ErrReminderNotFound
	}
	rem := all[idx]
	if rem.Completed {
		return nil, nil
	}

	now := r.now()
	rem.Completed = true
	rem.CompletedAt = now
	if err := r.store.UpdateReminder(ctx, profileID, rem); err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}

	if rem.Recurrence == "" {
		return nil, nil
	}

	ref := rem.Due
	if now.After(ref) {
		ref = now
	}
	due, err := gronx.NextTickAfter(rem.Recurrence, ref, false)
	if err != nil {
		r.logger.Warn("Failed to schedule next occurrence",
			slog.String("reminder", rem.ID),
			slog.String("recurrence", rem.Recurrence),
			slog.String(errLoggerKey, err.Error()))
		return nil, nil
	}

	nextRem := rem
	nextRem.ID = ""
	nextRem.Due = due
	nextRem.Completed = false
	nextRem.CompletedAt = time.Time{}
	nextRem.Notified = false
	nextRem.ID, err = r.store.AddReminder(ctx, profileID, nextRem)
	if err != nil {
		return nil, fmt.Errorf("failed to add next occurrence: %w", err)
	}
	return &nextRem, nil
}

// UpcomingCount counts reminders that are not completed.
func (r *Reminders) UpcomingCount(ctx context.Context, profileID string) (int, error) {
	list, err := r.List(ctx, profileID)
	if err != nil {
		return 0, err
	}
	return len(list.Upcoming), nil
}

// Seed adds the starter reminders shown to a new profile, unless it already has reminders.
func (r *Reminders) Seed(ctx context.Context, profileID string) error {
	existing, err := r.store.Reminders(ctx, profileID)
	if err != nil {
		return fmt.Errorf("failed to load reminders: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	now := r.now()
	day := func(offset, hour, minute int) time.Time {
		y, m, d := now.Date()
		return time.Date(y, m, d+offset, hour, minute, 0, 0, now.Location())
	}
	starters := []models.Reminder{
		{
			Kind: models.ReminderMedication, Title: "Iron Tablets", TitleHindi: "आयरन की गोलियां",
			Description: "Take 2 tablets after breakfast", Priority: models.PriorityMedium,
			Due: day(1, 9, 0), Recurrence: "0 9 * * *",
		},
		{
			Kind: models.ReminderWellness, Title: "Mood Check-in", TitleHindi: "मानसिक स्थिति जांच",
			Description: "Daily wellness tracking", Priority: models.PriorityLow,
			Due: day(0, 20, 0), Recurrence: "0 20 * * *",
		},
		{
			Kind: models.ReminderAppointment, Title: "Doctor Visit", TitleHindi: "डॉक्टर की जांच",
			Description: "Monthly checkup", Location: "Primary Health Center", Priority: models.PriorityHigh,
			Due: day(2, 10, 0),
		},
		{
			Kind: models.ReminderAppointment, Title: "Ultrasound Scan", TitleHindi: "अल्ट्रासाउंड स्कैन",
			Description: "Growth monitoring scan", Location: "District Hospital", Priority: models.PriorityHigh,
			Due: day(7, 14, 30),
		},
	}
	for _, rem := range starters {
		if _, err := r.store.AddReminder(ctx, profileID, rem); err != nil {
			return fmt.Errorf("failed to seed reminder: %w", err)
		}
	}
	return nil
}

// DueLabel formats a due time relative to now: "Today", "Tomorrow" or a short date.
func DueLabel(due, now time.Time) string {
	due = due.In(now.Location())
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch {
	case sameDay(due, today):
		return "Today"
	case sameDay(due, today.AddDate(0, 0, 1)):
		return "Tomorrow"
	default:
		return due.Format("Mon, Jan 2")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
