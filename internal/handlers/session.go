package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/chat"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/voice"
	"github.com/google/uuid"
)

// session is the server side of one browser. The conversation lives only here and is gone when the
// session is evicted.
type session struct {
	id         string
	screen     *chat.Screen
	recognizer *voice.RelayRecognizer
	microphone *voice.RelayMicrophone

	mu       sync.Mutex
	profile  models.Profile
	joined   bool
	lastSeen time.Time
	// streams counts the open event streams of the browser. A session with a stream is never idle.
	streams int
}

type sessions struct {
	ttl     time.Duration
	now     func() time.Time
	onClose func(id string)

	mu sync.Mutex
	m  map[string]*session

	logger *slog.Logger
}

const sessionCookie = "sakhi_session"

func newSessions(ttl time.Duration, now func() time.Time, onClose func(id string), logger *slog.Logger) *sessions {
	return &sessions{
		ttl:     ttl,
		now:     now,
		onClose: onClose,
		m:       make(map[string]*session),
		logger:  logger.With(slog.String("module", "sessions")),
	}
}

// profileID keys the session's wellness records: the email once joined, the session ID before.
func (s *session) profileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined {
		return strings.ToLower(s.profile.Email)
	}
	return s.id
}

func (s *session) currentProfile() (models.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.joined
}

func (s *session) join(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	s.joined = true
}

func (ss *sessions) get(id string) (*session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	sess, ok := ss.m[id]
	if !ok {
		return nil, false
	}
	sess.mu.Lock()
	sess.lastSeen = ss.now()
	sess.mu.Unlock()
	return sess, true
}

func (ss *sessions) fromRequest(r *http.Request) (*session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return ss.get(c.Value)
}

// attach marks an event stream of sess as open. The returned func marks it closed and restarts the
// idle clock.
func (ss *sessions) attach(sess *session) func() {
	sess.mu.Lock()
	sess.streams++
	sess.mu.Unlock()

	return func() {
		sess.mu.Lock()
		sess.streams--
		sess.lastSeen = ss.now()
		sess.mu.Unlock()
	}
}

func (ss *sessions) add(sess *session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.m[sess.id] = sess
}

// byProfile returns the sessions whose records are kept under profileID.
func (ss *sessions) byProfile(profileID string) []*session {
	ss.mu.Lock()
	all := make([]*session, 0, len(ss.m))
	for _, sess := range ss.m {
		all = append(all, sess)
	}
	ss.mu.Unlock()

	var res []*session
	for _, sess := range all {
		if sess.profileID() == profileID {
			res = append(res, sess)
		}
	}
	return res
}

func (ss *sessions) len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.m)
}

// sweep closes the sessions idle for longer than the TTL and without an open event stream, and returns
// how many were closed.
func (ss *sessions) sweep() int {
	cutoff := ss.now().Add(-ss.ttl)

	ss.mu.Lock()
	var idle []*session
	for id, sess := range ss.m {
		sess.mu.Lock()
		expired := sess.streams == 0 && sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if expired {
			idle = append(idle, sess)
			delete(ss.m, id)
		}
	}
	ss.mu.Unlock()

	// Closing waits for a running reply, so it happens outside the lock.
	for _, sess := range idle {
		ss.close(sess)
	}
	return len(idle)
}

func (ss *sessions) run(ctx context.Context) error {
	interval := max(ss.ttl/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := ss.sweep(); n > 0 {
				ss.logger.Info("Evicted idle sessions", slog.Int("count", n), slog.Int("remaining", ss.len()))
			}
		}
	}
}

func (ss *sessions) closeAll() {
	ss.mu.Lock()
	all := ss.m
	ss.m = make(map[string]*session)
	ss.mu.Unlock()

	// Browsers are told about shutdown separately, so onClose does not run.
	for _, sess := range all {
		sess.screen.Close()
	}
}

func (ss *sessions) close(sess *session) {
	sess.screen.Close()
	if ss.onClose != nil {
		ss.onClose(sess.id)
	}
}

// session returns the session of the request, creating one and setting its cookie when the request
// carries none.
func (m Main) session(w http.ResponseWriter, r *http.Request) *session {
	if sess, ok := m.sessions.fromRequest(r); ok {
		return sess
	}

	sess := m.newSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if err := m.reminders.Seed(r.Context(), sess.id); err != nil {
		m.logger.Warn("Failed to seed reminders",
			slog.String("session", sess.id),
			slog.String(errLoggerKey, err.Error()))
	}
	return sess
}

func (m Main) newSession() *session {
	sess := &session{
		id:       uuid.NewString(),
		lastSeen: m.now(),
	}
	topic := sessionTopic(sess.id)
	signal := func(cmd voice.Command) {
		m.publishJSON(topic, voiceSSEType, cmd)
	}
	sess.recognizer = voice.NewRelayRecognizer(signal)
	sess.microphone = voice.NewRelayMicrophone(signal)
	sess.screen = chat.NewScreen(context.Background(), m.pipeline, voice.ControllerConfig{
		Recognizer:  sess.recognizer,
		Microphone:  sess.microphone,
		Transcriber: m.transcriber,
		Lang:        m.voiceLang,
	}, sseEvents{m: m, topic: topic}, m.logger.With(slog.String("session", sess.id)))

	m.sessions.add(sess)
	m.logger.Debug("Session created", slog.String("session", sess.id))
	return sess
}
