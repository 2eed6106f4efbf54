package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/sakhi/internal/chat"
	"github.com/MegaGrindStone/sakhi/internal/content"
	"github.com/MegaGrindStone/sakhi/internal/voice"
)

type chatPageData struct {
	page
	Messages  []message
	Typing    bool
	Input     string
	VoiceMode voice.Mode
	Prompts   []content.Prompt
}

// HandleChat renders the chat screen of the session with its conversation so far.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)

	msgs := sess.screen.Messages()
	views := make([]message, len(msgs))
	for i := range msgs {
		views[i] = messageView(msgs[i])
	}
	state := sess.screen.State()

	m.execute(w, "chat.html", http.StatusOK, chatPageData{
		page:      m.page(sess, "Chat with Sakhi", "chat"),
		Messages:  views,
		Typing:    state.Typing,
		Input:     state.Input,
		VoiceMode: state.VoiceMode,
		Prompts:   content.QuickPrompts,
	})
}

// HandleMessages sends the "message" form field to the session's chat screen. The user message, the
// streamed reply and the typing indicator reach the browser over SSE, so a successful send answers
// 202 without a body. Blank messages are ignored, and a send while a reply is streaming is refused
// with 409.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)
	if !m.limiter.allow(sess.id) {
		http.Error(w, "Too many messages, please wait a moment", http.StatusTooManyRequests)
		return
	}

	_, err := sess.screen.Send(r.FormValue("message"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, chat.ErrEmptyMessage):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, chat.ErrActiveRequest):
		http.Error(w, "Sakhi is still replying", http.StatusConflict)
	case errors.Is(err, chat.ErrClosed):
		http.Error(w, "Session ended, please reload", http.StatusGone)
	default:
		m.logger.Error("Failed to send message",
			slog.String("session", sess.id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSSE streams the session's events. Requests without a live session are refused.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	sess, ok := m.sessions.fromRequest(r)
	if !ok {
		http.Error(w, "No session, please reload the page", http.StatusUnauthorized)
		return
	}
	detach := m.sessions.attach(sess)
	defer detach()

	m.sseSrv.ServeHTTP(w, r)
}
