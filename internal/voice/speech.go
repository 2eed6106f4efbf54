package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/looplab/fsm"
)

// Recognizer is a host speech recognition engine. Start begins one recognition session that reports
// its results through sink until a final result or an error arrives, or Stop is called. Results must not
// be reported from within Start or Stop.
type Recognizer interface {
	Available() bool
	Start(ctx context.Context, opts RecognizerOptions, sink func(Result)) error
	Stop()
}

// RecognizerOptions is what the adapter asks of the engine.
type RecognizerOptions struct {
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
	Lang           string `json:"lang"`
}

// Result is one report from a Recognizer. A non-empty Err ends the session.
type Result struct {
	Text  string
	Final bool
	Err   string
}

// SpeechAdapter drives a Recognizer through idle → listening → idle, forwarding transcripts as Events.
type SpeechAdapter struct {
	rec  Recognizer
	lang string
	emit func(Event)

	// mu makes checking the state and firing an event one step. The session counter drops results of
	// a session that already ended.
	mu      sync.Mutex
	machine *fsm.FSM
	session uint64

	logger *slog.Logger
}

const (
	speechListen = "listen"
	speechFail   = "fail"
	speechEnd    = "end"
)

func newSpeechMachine() *fsm.FSM {
	return fsm.NewFSM(string(StateIdle), fsm.Events{
		{Name: speechListen, Src: []string{string(StateIdle)}, Dst: string(StateListening)},
		{Name: speechFail, Src: []string{string(StateListening)}, Dst: string(StateError)},
		{Name: speechEnd, Src: []string{string(StateListening), string(StateError)}, Dst: string(StateIdle)},
	}, fsm.Callbacks{})
}

// NewSpeechAdapter creates an adapter over rec. A nil rec behaves as an unavailable engine.
func NewSpeechAdapter(rec Recognizer, lang string, emit func(Event), logger *slog.Logger) *SpeechAdapter {
	return &SpeechAdapter{
		rec:     rec,
		lang:    lang,
		emit:    emit,
		machine: newSpeechMachine(),
		logger: logger.With(slog.String("module", "speech-adapter")),
	}
}

// State returns the current state.
func (a *SpeechAdapter) State() State {
	return State(a.machine.Current())
}

// Available reports whether the host offers recognition.
func (a *SpeechAdapter) Available() bool {
	return a.rec != nil && a.rec.Available()
}

// fire moves the state machine. Callers hold mu and have checked the current state.
func (a *SpeechAdapter) fire(event string) {
	if err := a.machine.Event(context.Background(), event); err != nil {
		a.logger.Error("Invalid speech transition", slog.String("event", event),
			slog.String("state", a.machine.Current()), slog.String(errLoggerKey, err.Error()))
	}
}

// Start begins listening for one utterance with interim results. When recognition is unavailable the
// adapter stays idle and ErrUnavailable is returned. Starting while already listening is a no-op.
func (a *SpeechAdapter) Start(ctx context.Context) error {
	if !a.Available() {
		return ErrUnavailable
	}

	a.mu.Lock()
	if a.State() != StateIdle {
		a.mu.Unlock()
		return nil
	}
	a.session++
	session := a.session
	a.fire(speechListen)
	a.mu.Unlock()

	opts := RecognizerOptions{Continuous: false, InterimResults: true, Lang: a.lang}
	if err := a.rec.Start(ctx, opts, func(res Result) { a.handle(session, res) }); err != nil {
		a.mu.Lock()
		if a.session == session && a.State() == StateListening {
			a.fire(speechEnd)
		}
		a.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	return nil
}

// Stop ends listening without emitting a final transcript. Results that arrive afterwards are dropped.
func (a *SpeechAdapter) Stop() {
	a.mu.Lock()
	if a.State() != StateListening {
		a.mu.Unlock()
		return
	}
	a.session++
	a.fire(speechEnd)
	a.mu.Unlock()

	a.rec.Stop()
}

func (a *SpeechAdapter) handle(session uint64, res Result) {
	a.mu.Lock()
	if session != a.session || a.State() != StateListening {
		a.mu.Unlock()
		return
	}

	var ev Event
	switch {
	case res.Err != "":
		a.fire(speechFail)
		a.logger.Warn("Recognition error", slog.String("reason", res.Err))
		ev = Event{Kind: EventError, Err: fmt.Errorf("%w: %s", ErrRecognition, res.Err)}
		a.fire(speechEnd)
	case res.Final:
		a.fire(speechEnd)
		ev = Event{Kind: EventFinal, Text: res.Text}
	default:
		ev = Event{Kind: EventInterim, Text: res.Text}
	}
	a.mu.Unlock()

	if a.emit != nil {
		a.emit(ev)
	}
}
