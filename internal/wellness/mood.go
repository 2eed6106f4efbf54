package wellness

import (
	"context"
	"fmt"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/models"
)

// Mood is a mood check-in option.
type Mood struct {
	Value string
	Emoji string
	Label string
}

// Moods offered by the check-in widgets.
var Moods = []Mood{
	{Value: "happy", Emoji: "😊", Label: "Happy"},
	{Value: "calm", Emoji: "😌", Label: "Calm"},
	{Value: "anxious", Emoji: "😰", Label: "Anxious"},
	{Value: "sad", Emoji: "😢", Label: "Sad"},
	{Value: "energetic", Emoji: "⚡", Label: "Energetic"},
}

// ValidMood reports whether value is one of Moods.
func ValidMood(value string) bool {
	_, ok := LookupMood(value)
	return ok
}

// LookupMood finds a mood option by value.
func LookupMood(value string) (Mood, bool) {
	for _, m := range Moods {
		if m.Value == value {
			return m, true
		}
	}
	return Mood{}, false
}

// MoodLog records mood check-ins.
type MoodLog struct {
	store Store
	now   func() time.Time
}

// NewMoodLog creates a mood log. A nil now uses time.Now.
func NewMoodLog(store Store, now func() time.Time) *MoodLog {
	if now == nil {
		now = time.Now
	}
	return &MoodLog{store: store, now: now}
}

// Record stores a check-in.
func (l *MoodLog) Record(ctx context.Context, profileID, mood string) (models.MoodEntry, error) {
	if !ValidMood(mood) {
		return models.MoodEntry{}, fmt.Errorf("%w: %q", ErrInvalidMood, mood)
	}
	entry := models.MoodEntry{Mood: mood, At: l.now()}
	if err := l.store.AddMood(ctx, profileID, entry); err != nil {
		return models.MoodEntry{}, fmt.Errorf("failed to record mood: %w", err)
	}
	return entry, nil
}

// Today returns the latest check-in made on the current day.
func (l *MoodLog) Today(ctx context.Context, profileID string) (models.MoodEntry, bool, error) {
	moods, err := l.store.Moods(ctx, profileID)
	if err != nil {
		return models.MoodEntry{}, false, fmt.Errorf("failed to load moods: %w", err)
	}
	now := l.now()
	for i := len(moods) - 1; i >= 0; i-- {
		if sameDay(moods[i].At.In(now.Location()), now) {
			return moods[i], true, nil
		}
	}
	return models.MoodEntry{}, false, nil
}
