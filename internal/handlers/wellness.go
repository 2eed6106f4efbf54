package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/wellness"
	"github.com/gorilla/mux"
)

type remindersPageData struct {
	page
	Tab        string
	Upcoming   []models.Reminder
	Completed  []models.Reminder
	Kinds      []models.ReminderKind
	Priorities []models.Priority
	Error      string
}

type periodPageData struct {
	page
	Summary  wellness.CycleSummary
	HasCycle bool
	Moods    []wellness.Mood
	Symptoms []string
	Logged   map[string]bool
	Error    string
}

const (
	formDate = "2006-01-02"
	formTime = "15:04"
)

// HandleReminders lists the reminders on GET and adds one on POST.
func (m Main) HandleReminders(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	if r.Method != http.MethodPost {
		m.renderReminders(w, r, sess, http.StatusOK, "")
		return
	}

	in, err := m.reminderInput(r)
	if err == nil {
		_, err = m.reminders.Add(r.Context(), sess.profileID(), in)
	}
	if err != nil {
		if !errors.Is(err, wellness.ErrInvalidReminder) {
			m.logger.Error("Failed to add reminder", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		m.renderReminders(w, r, sess, http.StatusBadRequest, err.Error())
		return
	}
	http.Redirect(w, r, "/reminders", http.StatusSeeOther)
}

func (m Main) reminderInput(r *http.Request) (wellness.ReminderInput, error) {
	loc := m.now().Location()
	due, err := time.ParseInLocation(formDate+" "+formTime,
		r.FormValue("date")+" "+r.FormValue("time"), loc)
	if err != nil {
		return wellness.ReminderInput{}, fmt.Errorf("%w: date and time are required", wellness.ErrInvalidReminder)
	}
	return wellness.ReminderInput{
		Kind:        models.ReminderKind(r.FormValue("kind")),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
		Priority:    models.Priority(r.FormValue("priority")),
		Due:         due,
		Recurrence:  r.FormValue("recurrence"),
	}, nil
}

func (m Main) renderReminders(w http.ResponseWriter, r *http.Request, sess *session, status int, formErr string) {
	list, err := m.reminders.List(r.Context(), sess.profileID())
	if err != nil {
		m.logger.Error("Failed to list reminders", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tab := r.URL.Query().Get("tab")
	if tab != "completed" {
		tab = "upcoming"
	}
	m.execute(w, "reminders.html", status, remindersPageData{
		page:       m.page(sess, "Reminders", "reminders"),
		Tab:        tab,
		Upcoming:   list.Upcoming,
		Completed:  list.Completed,
		Kinds:      []models.ReminderKind{models.ReminderAppointment, models.ReminderMedication, models.ReminderWellness},
		Priorities: []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow},
		Error:      formErr,
	})
}

// HandleCompleteReminder marks the reminder named in the path as done.
func (m Main) HandleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	id := mux.Vars(r)["id"]

	next, err := m.reminders.Complete(r.Context(), sess.profileID(), id)
	if err != nil {
		if errors.Is(err, wellness.ErrReminderNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		m.logger.Error("Failed to complete reminder",
			slog.String("reminder", id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if next != nil {
		m.logger.Debug("Scheduled next occurrence",
			slog.String("reminder", next.ID),
			slog.Time("due", next.Due))
	}
	http.Redirect(w, r, "/reminders", http.StatusSeeOther)
}

// HandlePeriod renders the period tracker on GET. On POST it saves either the cycle settings
// (action=settings) or today's mood and symptoms (action=log).
func (m Main) HandlePeriod(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	if r.Method != http.MethodPost {
		m.renderPeriod(w, r, sess, http.StatusOK, "")
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var err error
	switch r.PostFormValue("action") {
	case "settings":
		var in wellness.CycleInput
		in, err = cycleInput(r, m.now().Location())
		if err == nil {
			_, err = m.tracker.Save(r.Context(), sess.profileID(), in)
		}
	case "log":
		err = m.tracker.LogDay(r.Context(), sess.profileID(), r.PostFormValue("mood"), r.PostForm["symptoms"])
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		if !errors.Is(err, wellness.ErrInvalidCycle) && !errors.Is(err, wellness.ErrInvalidMood) {
			m.logger.Error("Failed to update period tracker", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		m.renderPeriod(w, r, sess, http.StatusBadRequest, err.Error())
		return
	}
	http.Redirect(w, r, "/period", http.StatusSeeOther)
}

// HandlePartner connects or disconnects the partner who sees the shared mood and cycle day.
func (m Main) HandlePartner(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	connected, err := strconv.ParseBool(r.FormValue("connected"))
	if err != nil {
		http.Error(w, "connected must be true or false", http.StatusBadRequest)
		return
	}
	if err := m.tracker.ConnectPartner(r.Context(), sess.profileID(), connected); err != nil {
		m.logger.Error("Failed to update partner connection", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/period", http.StatusSeeOther)
}

func cycleInput(r *http.Request, loc *time.Location) (wellness.CycleInput, error) {
	last, err := time.ParseInLocation(formDate, r.PostFormValue("last_period"), loc)
	if err != nil {
		return wellness.CycleInput{}, fmt.Errorf("%w: last period date is required", wellness.ErrInvalidCycle)
	}
	cycleLength, err := strconv.Atoi(r.PostFormValue("cycle_length"))
	if err != nil {
		return wellness.CycleInput{}, fmt.Errorf("%w: cycle length must be a number", wellness.ErrInvalidCycle)
	}
	periodLength, err := strconv.Atoi(r.PostFormValue("period_length"))
	if err != nil {
		return wellness.CycleInput{}, fmt.Errorf("%w: period length must be a number", wellness.ErrInvalidCycle)
	}
	return wellness.CycleInput{LastPeriod: last, CycleLength: cycleLength, PeriodLength: periodLength}, nil
}

func (m Main) renderPeriod(w http.ResponseWriter, r *http.Request, sess *session, status int, formErr string) {
	summary, ok, err := m.tracker.Summary(r.Context(), sess.profileID())
	if err != nil {
		m.logger.Error("Failed to load cycle", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logged := make(map[string]bool, len(summary.Cycle.Symptoms))
	for _, s := range summary.Cycle.Symptoms {
		logged[s] = true
	}
	m.execute(w, "period.html", status, periodPageData{
		page:     m.page(sess, "Period Tracker", "period"),
		Summary:  summary,
		HasCycle: ok && !summary.Cycle.LastPeriod.IsZero(),
		Moods:    wellness.Moods,
		Symptoms: wellness.Symptoms,
		Logged:   logged,
		Error:    formErr,
	})
}
