package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/content"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/wellness"
)

// page is embedded by every page's data.
type page struct {
	Title   string
	Nav     string
	Profile models.Profile
	Joined  bool
	Now     time.Time
}

type welcomePageData struct {
	page
	Languages []content.Language
}

type joinPageData struct {
	page
	Form      content.JoinForm
	Languages []content.Language
	Error     string
}

type homePageData struct {
	page
	Greeting      string
	Moods         []wellness.Mood
	TodayMood     string
	UpcomingCount int
	Tip           content.Tip
}

type moodPickerData struct {
	Moods     []wellness.Mood
	TodayMood string
}

func (m Main) page(sess *session, title, nav string) page {
	profile, joined := sess.currentProfile()
	return page{
		Title:   title,
		Nav:     nav,
		Profile: profile,
		Joined:  joined,
		Now:     m.now(),
	}
}

func (m Main) execute(w http.ResponseWriter, name string, status int, data any) {
	html, err := m.render(name, data)
	if err != nil {
		m.logger.Error("Failed to render page",
			slog.String("template", name),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}

// HandleWelcome renders the welcome screen. Joined sessions go straight to the dashboard.
func (m Main) HandleWelcome(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	if _, joined := sess.currentProfile(); joined {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	m.execute(w, "welcome.html", http.StatusOK, welcomePageData{
		page:      m.page(sess, "Sakhi", ""),
		Languages: content.Languages,
	})
}

// HandleJoin renders the onboarding form on GET and validates it on POST. A valid form stores the
// profile with the session.
func (m Main) HandleJoin(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	data := joinPageData{
		page:      m.page(sess, "Join Sakhi", ""),
		Languages: content.Languages,
		Form: content.JoinForm{
			Signup:   r.URL.Query().Get("mode") == "signup",
			Language: r.URL.Query().Get("lang"),
		},
	}
	if r.Method != http.MethodPost {
		m.execute(w, "join.html", http.StatusOK, data)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data.Form = content.JoinForm{
		Signup:          r.PostFormValue("mode") == "signup",
		Name:            r.PostFormValue("name"),
		Email:           r.PostFormValue("email"),
		Phone:           r.PostFormValue("phone"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		AgreeToTerms:    r.PostFormValue("terms") == "on",
		Language:        r.PostFormValue("language"),
	}
	profile, err := data.Form.Profile()
	if err != nil {
		if !errors.Is(err, content.ErrInvalidForm) {
			m.logger.Error("Failed to validate join form", slog.String(errLoggerKey, err.Error()))
		}
		data.Error = err.Error()
		data.Form.Password, data.Form.ConfirmPassword = "", ""
		m.execute(w, "join.html", http.StatusBadRequest, data)
		return
	}

	sess.join(profile)
	if err := m.reminders.Seed(r.Context(), sess.profileID()); err != nil {
		m.logger.Warn("Failed to seed reminders", slog.String(errLoggerKey, err.Error()))
	}
	m.logger.Info("Profile joined", slog.String("session", sess.id), slog.String("language", profile.Language))
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

// HandleHome renders the dashboard.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	pid := sess.profileID()

	upcoming, err := m.reminders.UpcomingCount(r.Context(), pid)
	if err != nil {
		m.logger.Error("Failed to count reminders", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	today, _, err := m.moods.Today(r.Context(), pid)
	if err != nil {
		m.logger.Error("Failed to load mood", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := m.now()
	m.execute(w, "home.html", http.StatusOK, homePageData{
		page:          m.page(sess, "Home", "home"),
		Greeting:      content.Greeting(now),
		Moods:         wellness.Moods,
		TodayMood:     today.Mood,
		UpcomingCount: upcoming,
		Tip:           content.DailyTip(now),
	})
}

// HandleMood records a mood check-in and renders the updated picker.
func (m Main) HandleMood(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)

	entry, err := m.moods.Record(r.Context(), sess.profileID(), r.FormValue("mood"))
	if err != nil {
		if errors.Is(err, wellness.ErrInvalidMood) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.logger.Error("Failed to record mood", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	m.execute(w, "mood_picker", http.StatusOK, moodPickerData{Moods: wellness.Moods, TodayMood: entry.Mood})
}
