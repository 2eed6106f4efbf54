package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/MegaGrindStone/sakhi/internal/metrics"
)

// Controller owns the speech adapter and the audio capture of one chat screen and switches voice mode
// between them.
type Controller struct {
	adapter     *SpeechAdapter
	capture     *AudioCapture
	transcriber Transcriber
	emit        func(Event)

	mu          sync.Mutex
	mode        Mode
	cancelStart context.CancelFunc
	starting    chan struct{}

	logger *slog.Logger
}

// ControllerConfig wires a Controller to its host capabilities. Nil capabilities are treated as absent.
type ControllerConfig struct {
	Recognizer  Recognizer
	Microphone  Microphone
	Transcriber Transcriber
	Lang        string
}

// NewController creates a controller that reports transcripts and mode changes through emit.
func NewController(cfg ControllerConfig, emit func(Event), logger *slog.Logger) *Controller {
	c := &Controller{
		transcriber: cfg.Transcriber,
		emit:        emit,
		mode:        ModeOff,
		logger:      logger.With(slog.String("module", "voice")),
	}
	if c.transcriber == nil {
		c.transcriber = NoopTranscriber{}
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "hi-IN"
	}
	c.adapter = NewSpeechAdapter(cfg.Recognizer, lang, c.onSpeech, logger)
	c.capture = NewAudioCapture(cfg.Microphone, logger)
	return c
}

// Mode returns the active mechanism, ModeOff when voice mode is off.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Active reports whether voice mode is on.
func (c *Controller) Active() bool {
	return c.Mode() != ModeOff
}

// Toggle switches voice mode. Turning it on prefers speech recognition and falls back to recording
// when recognition is unavailable or fails to start; an error wrapping ErrPermission means neither
// mechanism could start and voice mode stays off. Turning it off stops the active mechanism; a
// recording is transcribed and a non-empty transcript is emitted as EventFinal.
//
// The controller is not locked while a mechanism starts or a clip is transcribed. Mode reports
// ModeStarting until the start settles, and toggling again or closing cancels it.
func (c *Controller) Toggle(ctx context.Context) (Mode, error) {
	c.mu.Lock()
	for c.mode == ModeOff && c.starting != nil {
		// A cancelled start is still releasing the microphone.
		done := c.starting
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ModeOff, ctx.Err()
		}
		c.mu.Lock()
	}

	switch c.mode {
	case ModeStarting:
		c.stopLocked()
		c.mu.Unlock()
		return ModeOff, nil
	case ModeSpeech, ModeRecording:
		clip := c.stopLocked()
		c.mu.Unlock()
		c.transcribe(ctx, clip)
		return ModeOff, nil
	}

	startCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.mode = ModeStarting
	c.cancelStart = cancel
	c.starting = done
	c.mu.Unlock()

	mode, err := c.start(startCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	cancel()
	c.cancelStart = nil
	c.starting = nil
	defer close(done)

	if c.mode != ModeStarting {
		// Cancelled while the mechanism was starting.
		c.release(mode)
		return c.mode, nil
	}
	if err != nil {
		c.mode = ModeOff
		return ModeOff, err
	}
	if mode == ModeSpeech && c.adapter.State() != StateListening {
		// The utterance already ended while the start was settling.
		c.mode = ModeOff
		return ModeOff, nil
	}
	c.setModeLocked(mode)
	metrics.VoiceCaptures.WithLabelValues(string(mode)).Inc()
	return mode, nil
}

func (c *Controller) start(ctx context.Context) (Mode, error) {
	err := c.adapter.Start(ctx)
	if err == nil {
		return ModeSpeech, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		c.logger.Warn("Speech recognition failed to start, falling back to recording",
			slog.String(errLoggerKey, err.Error()))
	}

	if err := c.capture.Start(ctx); err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("Audio capture failed to start", slog.String(errLoggerKey, err.Error()))
		}
		return ModeOff, err
	}
	return ModeRecording, nil
}

// release stops a mechanism that finished starting after its start was cancelled.
func (c *Controller) release(mode Mode) {
	switch mode {
	case ModeSpeech:
		c.adapter.Stop()
	case ModeRecording:
		c.capture.Stop()
	}
}

// Close turns voice mode off and releases the microphone. A pending recording is discarded. A start
// in progress is cancelled and Close waits until it has released what it opened.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopLocked()
	done := c.starting
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) stopLocked() Clip {
	var clip Clip
	switch c.mode {
	case ModeOff:
		return clip
	case ModeStarting:
		// The pending Toggle releases whatever it opened.
		c.cancelStart()
		c.mode = ModeOff
		return clip
	case ModeSpeech:
		c.adapter.Stop()
	case ModeRecording:
		clip = c.capture.Stop()
	}
	// The adapter may still be listening after a failed mode switch; stopping twice is harmless.
	c.adapter.Stop()
	if c.capture.State() == StateRecording {
		c.capture.Stop()
	}
	c.setModeLocked(ModeOff)
	return clip
}

func (c *Controller) setModeLocked(mode Mode) {
	if c.mode == mode {
		return
	}
	c.mode = mode
	c.send(Event{Kind: EventMode, Mode: mode})
}

func (c *Controller) transcribe(ctx context.Context, clip Clip) {
	if len(clip.Data) == 0 {
		return
	}
	text, err := c.transcriber.Transcribe(ctx, clip.Data, clip.MimeType)
	if err != nil {
		c.logger.Error("Failed to transcribe clip", slog.String(errLoggerKey, err.Error()))
		c.send(Event{Kind: EventError, Err: err})
		return
	}
	if text = strings.TrimSpace(text); text != "" {
		c.send(Event{Kind: EventFinal, Text: text})
	}
}

// onSpeech forwards adapter events. The adapter returns to idle after a final result or an error,
// which also ends voice mode.
func (c *Controller) onSpeech(ev Event) {
	if ev.Kind == EventFinal || ev.Kind == EventError {
		c.mu.Lock()
		if c.mode == ModeSpeech {
			c.setModeLocked(ModeOff)
		}
		c.mu.Unlock()
	}
	c.send(ev)
}

func (c *Controller) send(ev Event) {
	if c.emit != nil {
		c.emit(ev)
	}
}
