// Package wellness implements the reminders, mood check-ins and period tracker behind the dashboard.
package wellness

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/google/uuid"
)

// Store persists wellness records per profile.
type Store interface {
	Profiles(ctx context.Context) ([]string, error)

	Reminders(ctx context.Context, profileID string) ([]models.Reminder, error)
	AddReminder(ctx context.Context, profileID string, reminder models.Reminder) (string, error)
	UpdateReminder(ctx context.Context, profileID string, reminder models.Reminder) error

	Moods(ctx context.Context, profileID string) ([]models.MoodEntry, error)
	AddMood(ctx context.Context, profileID string, mood models.MoodEntry) error

	Cycle(ctx context.Context, profileID string) (models.Cycle, bool, error)
	SaveCycle(ctx context.Context, profileID string, cycle models.Cycle) error
}

const errLoggerKey = "err"

var (
	// ErrReminderNotFound is returned when a reminder ID is unknown to the profile.
	ErrReminderNotFound = errors.New("reminder not found")
	// ErrInvalidReminder is returned for reminders without a title or with a bad recurrence.
	ErrInvalidReminder = errors.New("invalid reminder")
	// ErrInvalidCycle is returned for cycle settings outside the supported range.
	ErrInvalidCycle = errors.New("invalid cycle")
	// ErrInvalidMood is returned for moods that are not offered.
	ErrInvalidMood = errors.New("invalid mood")
)

// MemoryStore keeps records in process memory. It is the default store.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*memoryProfile
	order    []string
}

type memoryProfile struct {
	reminders []models.Reminder
	moods     []models.MoodEntry
	cycle     *models.Cycle
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*memoryProfile)}
}

func (s *MemoryStore) profile(id string) *memoryProfile {
	p, ok := s.profiles[id]
	if !ok {
		p = &memoryProfile{}
		s.profiles[id] = p
		s.order = append(s.order, id)
	}
	return p
}

// Profiles implements Store.
func (s *MemoryStore) Profiles(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

// Reminders implements Store.
func (s *MemoryStore) Reminders(_ context.Context, profileID string) ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(p.reminders), nil
}

// AddReminder implements Store.
func (s *MemoryStore) AddReminder(_ context.Context, profileID string, reminder models.Reminder) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reminder.ID = uuid.NewString()
	p := s.profile(profileID)
	p.reminders = append(p.reminders, reminder)
	return reminder.ID, nil
}

// UpdateReminder implements Store. Unknown reminders are ignored.
func (s *MemoryStore) UpdateReminder(_ context.Context, profileID string, reminder models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil
	}
	for i := range p.reminders {
		if p.reminders[i].ID == reminder.ID {
			p.reminders[i] = reminder
			return nil
		}
	}
	return nil
}

// Moods implements Store.
func (s *MemoryStore) Moods(_ context.Context, profileID string) ([]models.MoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(p.moods), nil
}

// AddMood implements Store.
func (s *MemoryStore) AddMood(_ context.Context, profileID string, mood models.MoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile(profileID)
	p.moods = append(p.moods, mood)
	return nil
}

// Cycle implements Store.
func (s *MemoryStore) Cycle(_ context.Context, profileID string) (models.Cycle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok || p.cycle == nil {
		return models.Cycle{}, false, nil
	}
	c := *p.cycle
	c.Symptoms = slices.Clone(c.Symptoms)
	return c, true, nil
}

// SaveCycle implements Store.
func (s *MemoryStore) SaveCycle(_ context.Context, profileID string, cycle models.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cycle.Symptoms = slices.Clone(cycle.Symptoms)
	s.profile(profileID).cycle = &cycle
	return nil
}
