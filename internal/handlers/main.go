package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/sakhi"
	"github.com/MegaGrindStone/sakhi/internal/chat"
	"github.com/MegaGrindStone/sakhi/internal/content"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/voice"
	"github.com/MegaGrindStone/sakhi/internal/wellness"
	"github.com/dustin/go-humanize"
	"github.com/tmaxmax/go-sse"
)

// Main serves every screen of the app. Each browser gets a session holding its chat screen and voice
// relays; updates reach the browser over server-sent events on the session's topic.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	pipeline    *chat.Pipeline
	transcriber voice.Transcriber
	voiceLang   string
	micTimeout  time.Duration

	reminders *wellness.Reminders
	tracker   *wellness.Tracker
	moods     *wellness.MoodLog

	sessions *sessions
	limiter  *limiterPool

	now    func() time.Time
	logger *slog.Logger
}

// Config tunes the handlers. Zero values use the defaults.
type Config struct {
	// SessionTTL is how long an untouched session is kept.
	SessionTTL time.Duration
	// SendRPS and SendBurst throttle chat sends per session.
	SendRPS   float64
	SendBurst int
	// MicrophoneTimeout bounds the wait for the browser's microphone permission prompt.
	MicrophoneTimeout time.Duration
	// VoiceLang is the recognition language.
	VoiceLang string
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

const (
	defaultSessionTTL        = 2 * time.Hour
	defaultMicrophoneTimeout = 20 * time.Second

	errLoggerKey = "err"
)

// NewMain creates the handlers. The templates are parsed from the embedded filesystem, and llm serves
// every chat screen. transcriber may be nil.
func NewMain(llm chat.LLM, store wellness.Store, transcriber voice.Transcriber, cfg Config,
	logger *slog.Logger,
) (Main, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.MicrophoneTimeout <= 0 {
		cfg.MicrophoneTimeout = defaultMicrophoneTimeout
	}
	if transcriber == nil {
		transcriber = voice.NoopTranscriber{}
	}

	tmpl, err := template.New("").Funcs(templateFuncs(now)).ParseFS(
		sakhi.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger = logger.With(slog.String("module", "handlers"))

	m := Main{
		templates:   tmpl,
		pipeline:    chat.NewPipeline(llm, logger),
		transcriber: transcriber,
		voiceLang:   cfg.VoiceLang,
		micTimeout:  cfg.MicrophoneTimeout,
		reminders:   wellness.NewReminders(store, now, logger),
		tracker:     wellness.NewTracker(store, now),
		moods:       wellness.NewMoodLog(store, now),
		limiter:     newLimiterPool(cfg.SendRPS, cfg.SendBurst),
		now:         now,
		logger:      logger,
	}
	m.sessions = newSessions(cfg.SessionTTL, now, func(id string) {
		m.limiter.forget(id)
		// A browser still showing the evicted session reloads into a new one.
		m.publish(sessionTopic(id), closeSSEType, closeExpired)
	}, logger)
	m.sseSrv = &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			sess, ok := m.sessions.fromRequest(s.Req)
			if !ok {
				http.Error(s.Res, "No session, please reload the page", http.StatusUnauthorized)
				return sse.Subscription{}, false
			}
			// Send the headers now so the browser's EventSource opens before the first event.
			if err := s.Flush(); err != nil {
				m.logger.Warn("Failed to open event stream",
					slog.String("session", sess.id),
					slog.String(errLoggerKey, err.Error()))
				return sse.Subscription{}, false
			}
			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      []string{sse.DefaultTopic, sessionTopic(sess.id)},
			}, true
		},
	}

	return m, nil
}

func templateFuncs(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"ago": humanize.Time,
		"due": func(t time.Time) string {
			return wellness.DueLabel(t, now())
		},
		"clock": func(t time.Time) string {
			return t.Format("3:04 PM")
		},
		"date": func(t time.Time) string {
			return t.Format("Mon, Jan 2")
		},
		"markdown": func(text string) (template.HTML, error) {
			html, err := models.RenderText(text)
			// goldmark escapes raw HTML in the source.
			return template.HTML(html), err
		},
		"moodEmoji": func(value string) string {
			mood, _ := wellness.LookupMood(value)
			return mood.Emoji
		},
		// TelURI keeps only digits and a leading plus, which html/template would otherwise reject.
		"tel": func(number string) template.URL {
			return template.URL(content.TelURI(number))
		},
	}
}

func sessionTopic(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

// Shutdown closes every session, tells the connected browsers the server is going away and waits up
// to 5 seconds for their streams to end.
func (m Main) Shutdown(ctx context.Context) error {
	m.sessions.closeAll()

	e := &sse.Message{Type: closeSSEType}
	// SSE requires data on every event.
	e.AppendData(closeShutdown)

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// ReminderDue announces a due reminder to the session it belongs to.
func (m Main) ReminderDue(profileID string, reminder models.Reminder) {
	m.publishToast(profileID, toast{
		Kind:  "reminder",
		Title: "⏰ " + reminder.Title,
		Text:  reminder.Description,
	})
}

// RunSessions evicts idle sessions until ctx is done.
func (m Main) RunSessions(ctx context.Context) error {
	return m.sessions.run(ctx)
}
