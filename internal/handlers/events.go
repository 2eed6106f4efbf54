package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/chat"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/voice"
	"github.com/tmaxmax/go-sse"
)

// SSE event types for real-time updates.
var (
	messageSSEType   = sse.Type("message")
	typingSSEType    = sse.Type("typing")
	inputSSEType     = sse.Type("input")
	voiceModeSSEType = sse.Type("voice-mode")
	voiceSSEType     = sse.Type("voice")
	toastSSEType     = sse.Type("toast")
	closeSSEType     = sse.Type("closeChat")
)

// closeChat payloads.
const (
	closeShutdown = "bye"
	closeExpired  = "expired"
)

type message struct {
	ID        string
	Sender    string
	Text      string
	Timestamp time.Time

	StreamingState string
}

type toast struct {
	Kind  string
	Title string
	Text  string
}

func messageView(msg models.Message) message {
	return message{
		ID:             msg.ID,
		Sender:         string(msg.Sender),
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
		StreamingState: msg.StreamingState(),
	}
}

// sseEvents renders chat screen changes and publishes them on the session topic. It never calls back
// into the screen.
type sseEvents struct {
	m     Main
	topic string
}

func (e sseEvents) MessageAdded(msg models.Message) {
	e.publishMessage(msg)
}

func (e sseEvents) MessageUpdated(msg models.Message) {
	e.publishMessage(msg)
}

func (e sseEvents) publishMessage(msg models.Message) {
	html, err := e.m.render("chat_message", messageView(msg))
	if err != nil {
		e.m.logger.Error("Failed to render message",
			slog.String("message", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	e.m.publish(e.topic, messageSSEType, html)
}

func (e sseEvents) TypingChanged(typing bool) {
	e.m.publish(e.topic, typingSSEType, strconv.FormatBool(typing))
}

func (e sseEvents) InputChanged(text string) {
	e.m.publishJSON(e.topic, inputSSEType, text)
}

func (e sseEvents) VoiceChanged(mode voice.Mode) {
	e.m.publish(e.topic, voiceModeSSEType, string(mode))
}

func (e sseEvents) Warn(w chat.Warning) {
	e.m.publishToastTopic(e.topic, toast{Kind: "warning", Title: w.Title, Text: w.Text})
}

func (m Main) render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return sb.String(), nil
}

func (m Main) publish(topic string, typ sse.EventType, data string) {
	msg := sse.Message{Type: typ}
	msg.AppendData(data)
	if err := m.sseSrv.Publish(&msg, topic); err != nil {
		m.logger.Error("Failed to publish event",
			slog.String("topic", topic),
			slog.String("type", typ.String()),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) publishJSON(topic string, typ sse.EventType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("Failed to marshal event",
			slog.String("type", typ.String()),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	m.publish(topic, typ, string(data))
}

func (m Main) publishToastTopic(topic string, t toast) {
	html, err := m.render("toast", t)
	if err != nil {
		m.logger.Error("Failed to render toast", slog.String(errLoggerKey, err.Error()))
		return
	}
	m.publish(topic, toastSSEType, html)
}

// publishToast sends t to every session whose records are kept under profileID.
func (m Main) publishToast(profileID string, t toast) {
	for _, sess := range m.sessions.byProfile(profileID) {
		m.publishToastTopic(sessionTopic(sess.id), t)
	}
}
