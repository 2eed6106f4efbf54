// Package voice turns spoken input into chat text. It prefers the host's speech recognition and falls
// back to recording a raw clip from the microphone when recognition is unavailable or fails to start.
package voice

import (
	"context"
	"errors"
)

const errLoggerKey = "err"

var (
	// ErrUnavailable is returned when the host offers no speech recognition.
	ErrUnavailable = errors.New("speech recognition unavailable")
	// ErrPermission is returned when microphone access is denied or no microphone exists.
	ErrPermission = errors.New("microphone permission denied")
	// ErrRecognition wraps errors the recognition engine reports while listening.
	ErrRecognition = errors.New("speech recognition failed")
	// ErrMicrophoneBusy is returned when a mechanism opens the microphone while another one holds it.
	ErrMicrophoneBusy = errors.New("microphone already in use")
)

// State is the state of a capture mechanism.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateError     State = "error"
	StateRecording State = "recording"
)

// Mode is the capture mechanism currently serving voice mode.
type Mode string

const (
	ModeOff Mode = "off"
	// ModeStarting is reported while a mechanism waits to start, usually on the microphone prompt.
	ModeStarting  Mode = "starting"
	ModeSpeech    Mode = "speech"
	ModeRecording Mode = "recording"
)

// EventKind identifies an Event.
type EventKind int

const (
	// EventInterim carries a partial transcript to mirror into the input field.
	EventInterim EventKind = iota
	// EventFinal carries a finished transcript that should be sent.
	EventFinal
	// EventError reports a recoverable recognition failure.
	EventError
	// EventMode reports that voice mode changed.
	EventMode
)

// Event is emitted by the controller to whoever renders the chat screen.
type Event struct {
	Kind EventKind
	Text string
	Err  error
	Mode Mode
}

// Transcriber turns a recorded clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// NoopTranscriber discards clips. It is used when no speech-to-text service is configured.
type NoopTranscriber struct{}

// Transcribe always returns an empty transcript.
func (NoopTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "", nil
}
