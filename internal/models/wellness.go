package models

import "time"

// ReminderKind groups reminders for display.
type ReminderKind string

// Priority orders reminders visually.
type Priority string

const (
	ReminderAppointment ReminderKind = "appointment"
	ReminderMedication  ReminderKind = "medication"
	ReminderWellness    ReminderKind = "wellness"

	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Reminder is a scheduled appointment, medication dose or wellness activity. When Recurrence holds a
// cron expression, completing the reminder schedules its next occurrence.
type Reminder struct {
	ID          string       `json:"id"`
	Kind        ReminderKind `json:"kind"`
	Title       string       `json:"title"`
	TitleHindi  string       `json:"titleHindi,omitempty"`
	Description string       `json:"description,omitempty"`
	Location    string       `json:"location,omitempty"`
	Priority    Priority     `json:"priority"`
	Due         time.Time    `json:"due"`
	Recurrence  string       `json:"recurrence,omitempty"`
	Completed   bool         `json:"completed"`
	CompletedAt time.Time    `json:"completedAt,omitempty"`
	Notified    bool         `json:"notified,omitempty"`
}

// MoodEntry is a single mood check-in.
type MoodEntry struct {
	Mood string    `json:"mood"`
	At   time.Time `json:"at"`
}

// Cycle is the period tracker state of a profile. Mood and Symptoms were logged on LoggedOn and only
// describe that day.
type Cycle struct {
	LastPeriod       time.Time `json:"lastPeriod"`
	CycleLength      int       `json:"cycleLength"`
	PeriodLength     int       `json:"periodLength"`
	Mood             string    `json:"mood,omitempty"`
	Symptoms         []string  `json:"symptoms,omitempty"`
	LoggedOn         time.Time `json:"loggedOn,omitempty"`
	PartnerConnected bool      `json:"partnerConnected,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Profile is what the onboarding form collects. It is kept with the browser session only.
type Profile struct {
	Name     string
	Email    string
	Phone    string
	Language string
}
