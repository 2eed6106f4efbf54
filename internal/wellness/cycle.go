package wellness

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/models"
)

// Phase is a phase of the menstrual cycle.
type Phase string

const (
	PhaseMenstrual  Phase = "menstrual"
	PhaseFollicular Phase = "follicular"
	PhaseOvulation  Phase = "ovulation"
	PhaseLuteal     Phase = "luteal"
)

// Cycle bounds accepted by the tracker.
const (
	DefaultCycleLength  = 28
	DefaultPeriodLength = 5

	minCycleLength  = 21
	maxCycleLength  = 45
	minPeriodLength = 1
	maxPeriodLength = 10

	// The luteal phase is close to constant, so ovulation is counted back from the next period.
	lutealDays = 14
)

// Symptoms offered by the period tracker.
var Symptoms = []string{"Cramps", "Headache", "Bloating", "Mood swings", "Fatigue", "Tender breasts"}

// CycleSummary is what the period tracker shows for a given day.
type CycleSummary struct {
	Cycle models.Cycle

	Day          int
	Phase        Phase
	NextPeriod   time.Time
	DaysUntil    int
	Ovulation    time.Time
	FertileStart time.Time
	FertileEnd   time.Time
}

// Summarize derives the cycle day, phase, next period and fertile window of c on the day of now. A mood
// and symptoms logged on an earlier day are left out.
func Summarize(c models.Cycle, now time.Time) CycleSummary {
	loc := now.Location()
	today := midnight(now, loc)
	start := midnight(c.LastPeriod, loc)

	if c.LoggedOn.IsZero() || !midnight(c.LoggedOn, loc).Equal(today) {
		c.Mood = ""
		c.Symptoms = nil
	}

	length := c.CycleLength
	if length <= 0 {
		length = DefaultCycleLength
	}
	periodLength := c.PeriodLength
	if periodLength <= 0 {
		periodLength = DefaultPeriodLength
	}

	elapsed := daysBetween(start, today)
	if elapsed < 0 {
		elapsed = 0
	}
	cycles := elapsed / length
	currentStart := start.AddDate(0, 0, cycles*length)
	day := elapsed%length + 1
	next := currentStart.AddDate(0, 0, length)

	ovulationDay := length - lutealDays
	ovulation := currentStart.AddDate(0, 0, ovulationDay-1)

	var phase Phase
	switch {
	case day <= periodLength:
		phase = PhaseMenstrual
	case day >= ovulationDay-1 && day <= ovulationDay+1:
		phase = PhaseOvulation
	case day < ovulationDay-1:
		phase = PhaseFollicular
	default:
		phase = PhaseLuteal
	}

	return CycleSummary{
		Cycle:        c,
		Day:          day,
		Phase:        phase,
		NextPeriod:   next,
		DaysUntil:    daysBetween(today, next),
		Ovulation:    ovulation,
		FertileStart: ovulation.AddDate(0, 0, -5),
		FertileEnd:   ovulation.AddDate(0, 0, 1),
	}
}

// InFertileWindow reports whether t falls within the fertile window.
func (s CycleSummary) InFertileWindow(t time.Time) bool {
	d := midnight(t, s.FertileStart.Location())
	return !d.Before(s.FertileStart) && !d.After(s.FertileEnd)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days from a to b, both at midnight.
func daysBetween(a, b time.Time) int {
	// Rounding absorbs the hour lost or gained across a daylight saving change.
	return int(b.Sub(a).Round(24*time.Hour) / (24 * time.Hour))
}

// Tracker stores the period tracker settings and the daily mood and symptom log.
type Tracker struct {
	store Store
	now   func() time.Time
}

// CycleInput is submitted from the tracker settings form.
type CycleInput struct {
	LastPeriod   time.Time
	CycleLength  int
	PeriodLength int
}

// NewTracker creates a tracker. A nil now uses time.Now.
func NewTracker(store Store, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, now: now}
}

// Summary returns today's summary. The boolean is false until settings were saved.
func (t *Tracker) Summary(ctx context.Context, profileID string) (CycleSummary, bool, error) {
	c, found, err := t.store.Cycle(ctx, profileID)
	if err != nil {
		return CycleSummary{}, false, fmt.Errorf("failed to load cycle: %w", err)
	}
	if !found {
		return CycleSummary{}, false, nil
	}
	return Summarize(c, t.now()), true, nil
}

// Save validates and stores cycle settings, keeping the logged mood and symptoms.
func (t *Tracker) Save(ctx context.Context, profileID string, in CycleInput) (CycleSummary, error) {
	now := t.now()
	switch {
	case in.LastPeriod.IsZero():
		return CycleSummary{}, fmt.Errorf("%w: last period date is required", ErrInvalidCycle)
	case midnight(in.LastPeriod, now.Location()).After(midnight(now, now.Location())):
		return CycleSummary{}, fmt.Errorf("%w: last period is in the future", ErrInvalidCycle)
	case in.CycleLength < minCycleLength || in.CycleLength > maxCycleLength:
		return CycleSummary{}, fmt.Errorf("%w: cycle length must be between %d and %d days",
			ErrInvalidCycle, minCycleLength, maxCycleLength)
	case in.PeriodLength < minPeriodLength || in.PeriodLength > maxPeriodLength:
		return CycleSummary{}, fmt.Errorf("%w: period length must be between %d and %d days",
			ErrInvalidCycle, minPeriodLength, maxPeriodLength)
	}

	c, _, err := t.store.Cycle(ctx, profileID)
	if err != nil {
		return CycleSummary{}, fmt.Errorf("failed to load cycle: %w", err)
	}
	c.LastPeriod = in.LastPeriod
	c.CycleLength = in.CycleLength
	c.PeriodLength = in.PeriodLength
	c.UpdatedAt = now
	if err := t.store.SaveCycle(ctx, profileID, c); err != nil {
		return CycleSummary{}, fmt.Errorf("failed to save cycle: %w", err)
	}
	return Summarize(c, now), nil
}

// LogDay records today's mood and symptoms. Unknown symptoms are dropped.
func (t *Tracker) LogDay(ctx context.Context, profileID, mood string, symptoms []string) error {
	if mood != "" && !ValidMood(mood) {
		return fmt.Errorf("%w: %q", ErrInvalidMood, mood)
	}

	c, found, err := t.store.Cycle(ctx, profileID)
	if err != nil {
		return fmt.Errorf("failed to load cycle: %w", err)
	}
	if !found {
		c.CycleLength = DefaultCycleLength
		c.PeriodLength = DefaultPeriodLength
	}

	var kept []string
	for _, s := range symptoms {
		if slices.Contains(Symptoms, s) && !slices.Contains(kept, s) {
			kept = append(kept, s)
		}
	}
	now := t.now()
	c.Mood = mood
	c.Symptoms = kept
	c.LoggedOn = midnight(now, now.Location())
	c.UpdatedAt = now
	if err := t.store.SaveCycle(ctx, profileID, c); err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}
	return nil
}

// ConnectPartner records whether the profile shares its mood and cycle day with a partner.
func (t *Tracker) ConnectPartner(ctx context.Context, profileID string, connected bool) error {
	c, found, err := t.store.Cycle(ctx, profileID)
	if err != nil {
		return fmt.Errorf("failed to load cycle: %w", err)
	}
	if !found {
		c.CycleLength = DefaultCycleLength
		c.PeriodLength = DefaultPeriodLength
	}
	c.PartnerConnected = connected
	c.UpdatedAt = t.now()
	if err := t.store.SaveCycle(ctx, profileID, c); err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}
	return nil
}
