package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/sakhi/internal/voice"
)

type voiceState struct {
	Mode  voice.Mode `json:"mode"`
	Error string     `json:"error,omitempty"`
}

type recognitionReport struct {
	Supported *bool  `json:"supported,omitempty"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
	Error     string `json:"error"`
}

type permissionReport struct {
	Granted  bool   `json:"granted"`
	MimeType string `json:"mimeType"`
}

const maxAudioChunk = 1 << 20

// HandleVoiceToggle switches voice mode of the session's chat screen and answers with the new mode.
// When neither capture mechanism could start it answers 403 and voice mode stays off.
func (m Main) HandleVoiceToggle(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), m.micTimeout)
	defer cancel()

	mode, err := sess.screen.ToggleVoice(ctx)
	status := http.StatusOK
	res := voiceState{Mode: mode}
	if err != nil {
		m.logger.Warn("Voice input unavailable",
			slog.String("session", sess.id),
			slog.String(errLoggerKey, err.Error()))
		res.Error = "permission"
		status = http.StatusForbidden
	}
	writeJSON(w, status, res)
}

// HandleVoiceRecognition receives speech recognition reports from the browser: either whether the
// browser supports recognition at all, or an interim, final or error result.
func (m Main) HandleVoiceRecognition(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)

	var rep recognitionReport
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rep.Supported != nil {
		sess.recognizer.SetAvailable(*rep.Supported)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !sess.recognizer.Deliver(voice.Result{Text: rep.Text, Final: rep.Final, Err: rep.Error}) {
		http.Error(w, "Not listening", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVoicePermission receives the outcome of the browser's microphone prompt.
func (m Main) HandleVoicePermission(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)

	var rep permissionReport
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !sess.microphone.Grant(rep.Granted, rep.MimeType) {
		http.Error(w, "No microphone request is pending", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVoiceAudio receives one recorded chunk as the raw request body.
func (m Main) HandleVoiceAudio(w http.ResponseWriter, r *http.Request) {
	sess := m.session(w, r)

	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioChunk))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !sess.microphone.Deliver(chunk) {
		http.Error(w, "Not recording", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
