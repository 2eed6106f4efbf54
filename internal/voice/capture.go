package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Constraints are the processing options requested when opening the microphone.
type Constraints struct {
	EchoCancellation bool `json:"echoCancellation"`
	NoiseSuppression bool `json:"noiseSuppression"`
}

// Microphone opens audio input streams. Open blocks until the user grants or denies access.
type Microphone interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open microphone stream. Record delivers encoded chunks to sink until the tracks stop.
type Stream interface {
	Tracks() []Track
	Record(sink func(chunk []byte)) error
	MimeType() string
}

// Track is one device handle of a Stream.
type Track interface {
	Stop()
	Live() bool
}

// Clip is a finished recording.
type Clip struct {
	Data     []byte
	MimeType string
}

// AudioCapture records a clip from the microphone.
type AudioCapture struct {
	mic Microphone

	mu     sync.Mutex
	state  State
	stream Stream
	chunks [][]byte

	logger *slog.Logger
}

// NewAudioCapture creates a capture over mic. A nil mic behaves as a denied microphone.
func NewAudioCapture(mic Microphone, logger *slog.Logger) *AudioCapture {
	return &AudioCapture{
		mic:    mic,
		state:  StateIdle,
		logger: logger.With(slog.String("module", "audio-capture")),
	}
}

// State returns the current state.
func (c *AudioCapture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the microphone with echo cancellation and noise suppression and starts buffering. Every
// failure to obtain the microphone is reported as ErrPermission. Start and Stop must not be called
// concurrently with each other.
func (c *AudioCapture) Start(ctx context.Context) error {
	if c.State() == StateRecording {
		return nil
	}
	if c.mic == nil {
		return ErrPermission
	}

	stream, err := c.mic.Open(ctx, Constraints{EchoCancellation: true, NoiseSuppression: true})
	if err != nil {
		if errors.Is(err, ErrPermission) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPermission, err)
	}

	c.mu.Lock()
	c.stream = stream
	c.chunks = nil
	c.state = StateRecording
	c.mu.Unlock()

	if err := stream.Record(c.buffer(stream)); err != nil {
		c.mu.Lock()
		c.stream = nil
		c.state = StateIdle
		c.mu.Unlock()
		stopTracks(stream)
		return fmt.Errorf("failed to start recording: %w", err)
	}
	return nil
}

func (c *AudioCapture) buffer(stream Stream) func([]byte) {
	return func(chunk []byte) {
		if len(chunk) == 0 {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stream != stream {
			return
		}
		c.chunks = append(c.chunks, bytes.Clone(chunk))
	}
}

// Stop joins the buffered chunks into one clip, stops every track of the stream and returns to idle.
// Stopping while idle returns an empty clip.
func (c *AudioCapture) Stop() Clip {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		c.state = StateIdle
		return Clip{}
	}

	stream := c.stream
	clip := Clip{Data: bytes.Join(c.chunks, nil), MimeType: stream.MimeType()}
	c.stream = nil
	c.chunks = nil
	c.state = StateIdle
	stopTracks(stream)

	c.logger.Debug("Recording stopped", slog.Int("bytes", len(clip.Data)))
	return clip
}

func stopTracks(stream Stream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}
