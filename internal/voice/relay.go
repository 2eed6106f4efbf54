package voice

import (
	"context"
	"fmt"
	"sync"
)

// Browser commands sent by the relay capabilities.
const (
	CommandStartRecognition = "start-recognition"
	CommandStopRecognition  = "stop-recognition"
	CommandStartRecording   = "start-recording"
	CommandStopRecording    = "stop-recording"
)

// Command asks the browser to start or stop one of its capture APIs.
type Command struct {
	Action      string             `json:"action"`
	Recognition *RecognizerOptions `json:"recognition,omitempty"`
	Constraints *Constraints       `json:"constraints,omitempty"`
}

// RelayRecognizer is a Recognizer backed by the browser's Web Speech API. The server asks the browser
// to start and stop through signal, and the browser posts its results back to Deliver.
type RelayRecognizer struct {
	signal func(Command)

	mu        sync.Mutex
	available bool
	sink      func(Result)
}

// NewRelayRecognizer creates a relay recognizer. It is unavailable until the browser reports support.
func NewRelayRecognizer(signal func(Command)) *RelayRecognizer {
	return &RelayRecognizer{signal: signal}
}

// SetAvailable records whether the browser supports speech recognition.
func (r *RelayRecognizer) SetAvailable(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = ok
}

// Available implements Recognizer.
func (r *RelayRecognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// Start implements Recognizer.
func (r *RelayRecognizer) Start(_ context.Context, opts RecognizerOptions, sink func(Result)) error {
	r.mu.Lock()
	if !r.available {
		r.mu.Unlock()
		return ErrUnavailable
	}
	r.sink = sink
	r.mu.Unlock()

	r.signal(Command{Action: CommandStartRecognition, Recognition: &opts})
	return nil
}

// Stop implements Recognizer.
func (r *RelayRecognizer) Stop() {
	r.mu.Lock()
	r.sink = nil
	r.mu.Unlock()

	r.signal(Command{Action: CommandStopRecognition})
}

// Deliver forwards a result reported by the browser. It returns false when no session is listening.
func (r *RelayRecognizer) Deliver(res Result) bool {
	r.mu.Lock()
	sink := r.sink
	if res.Final || res.Err != "" {
		r.sink = nil
	}
	r.mu.Unlock()

	if sink == nil {
		return false
	}
	sink(res)
	return true
}

// RelayMicrophone is a Microphone backed by the browser's getUserMedia and MediaRecorder. Open asks the
// browser to start recording and waits for it to report the permission outcome through Grant;
// recorded chunks arrive through Deliver.
type RelayMicrophone struct {
	signal func(Command)

	mu      sync.Mutex
	pending chan grant
	stream  *relayStream
}

type grant struct {
	granted  bool
	mimeType string
}

const defaultClipMimeType = "audio/webm"

// NewRelayMicrophone creates a relay microphone.
func NewRelayMicrophone(signal func(Command)) *RelayMicrophone {
	return &RelayMicrophone{signal: signal}
}

// Open implements Microphone. It fails with ErrMicrophoneBusy while another stream is live and with
// ErrPermission when the browser denies access.
func (m *RelayMicrophone) Open(ctx context.Context, c Constraints) (Stream, error) {
	m.mu.Lock()
	if m.pending != nil || (m.stream != nil && m.stream.live()) {
		m.mu.Unlock()
		return nil, ErrMicrophoneBusy
	}
	ch := make(chan grant, 1)
	m.pending = ch
	m.mu.Unlock()

	m.signal(Command{Action: CommandStartRecording, Constraints: &c})

	var g grant
	select {
	case g = <-ch:
	case <-ctx.Done():
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		m.signal(Command{Action: CommandStopRecording})
		return nil, fmt.Errorf("%w: %w", ErrPermission, ctx.Err())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	if !g.granted {
		return nil, ErrPermission
	}
	if g.mimeType == "" {
		g.mimeType = defaultClipMimeType
	}
	s := &relayStream{mic: m, mimeType: g.mimeType}
	s.tracks = []*relayTrack{{stream: s, isLive: true}}
	m.stream = s
	return s, nil
}

// Grant reports the outcome of the browser's permission prompt. It returns false when nothing waits for
// a grant.
func (m *RelayMicrophone) Grant(granted bool, mimeType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return false
	}
	m.pending <- grant{granted: granted, mimeType: mimeType}
	m.pending = nil
	return true
}

// Deliver hands a recorded chunk to the live stream. It returns false when no stream records.
func (m *RelayMicrophone) Deliver(chunk []byte) bool {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()
	if s == nil {
		return false
	}
	return s.deliver(chunk)
}

// LiveTracks counts the device handles that are still open.
func (m *RelayMicrophone) LiveTracks() int {
	m.mu.Lock()
	s := m.stream
	m.mu.Unlock()
	if s == nil {
		return 0
	}
	n := 0
	for _, t := range s.Tracks() {
		if t.Live() {
			n++
		}
	}
	return n
}

type relayStream struct {
	mic      *RelayMicrophone
	mimeType string

	mu     sync.Mutex
	tracks []*relayTrack
	sink   func([]byte)
}

type relayTrack struct {
	stream *relayStream
	isLive bool
}

func (s *relayStream) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		tracks[i] = t
	}
	return tracks
}

func (s *relayStream) Record(sink func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
	return nil
}

func (s *relayStream) MimeType() string { return s.mimeType }

func (s *relayStream) live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked()
}

func (s *relayStream) liveLocked() bool {
	for _, t := range s.tracks {
		if t.isLive {
			return true
		}
	}
	return false
}

func (s *relayStream) deliver(chunk []byte) bool {
	s.mu.Lock()
	sink := s.sink
	live := s.liveLocked()
	s.mu.Unlock()
	if !live || sink == nil {
		return false
	}
	sink(chunk)
	return true
}

func (t *relayTrack) Stop() {
	s := t.stream
	s.mu.Lock()
	if !t.isLive {
		s.mu.Unlock()
		return
	}
	t.isLive = false
	ended := !s.liveLocked()
	s.mu.Unlock()

	if ended {
		s.mic.signal(Command{Action: CommandStopRecording})
	}
}

func (t *relayTrack) Live() bool {
	t.stream.mu.Lock()
	defer t.stream.mu.Unlock()
	return t.isLive
}
