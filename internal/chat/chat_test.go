package chat_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/chat"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/voice"
)

var errTransport = errors.New("chat transport failed: unexpected status code: 503")

type fakeLLM struct {
	chunks    []string
	openErr   error
	streamErr error
	panicMsg  string
	release   chan struct{}

	mu    sync.Mutex
	calls [][]models.Message
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Chat(_ context.Context, messages []models.Message) (iter.Seq2[string, error], error) {
	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(messages))
	f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	return func(yield func(string, error) bool) {
		if f.release != nil {
			<-f.release
		}
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.panicMsg != "" {
			panic(f.panicMsg)
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) lastCall() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type recordedEvents struct {
	mu       sync.Mutex
	added    []models.Message
	updated  []models.Message
	typing   []bool
	inputs   []string
	modes    []voice.Mode
	warnings []chat.Warning
}

func (r *recordedEvents) MessageAdded(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, msg)
}

func (r *recordedEvents) MessageUpdated(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, msg)
}

func (r *recordedEvents) TypingChanged(typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = append(r.typing, typing)
}

func (r *recordedEvents) InputChanged(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, text)
}

func (r *recordedEvents) VoiceChanged(mode voice.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, mode)
}

func (r *recordedEvents) Warn(w chat.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

func (r *recordedEvents) warningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.warnings)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScreen(t *testing.T, llm chat.LLM, vcfg voice.ControllerConfig) (*chat.Screen, *recordedEvents) {
	t.Helper()
	events := &recordedEvents{}
	s := chat.NewScreen(context.Background(), chat.NewPipeline(llm, testLogger()), vcfg, events, testLogger())
	t.Cleanup(s.Close)
	return s, events
}

func assistantMessages(msgs []models.Message) []models.Message {
	var out []models.Message
	for _, m := range msgs[1:] {
		if m.Sender == models.SenderAssistant {
			out = append(out, m)
		}
	}
	return out
}

func TestScreenGreeting(t *testing.T) {
	s, _ := newScreen(t, &fakeLLM{}, voice.ControllerConfig{})
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Text != chat.Greeting || msgs[0].Sender != models.SenderAssistant {
		t.Errorf("Messages() = %+v, want the greeting", msgs)
	}
}

func TestSendMessageBlank(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		llm := &fakeLLM{chunks: []string{"x"}}
		s, events := newScreen(t, llm, voice.ControllerConfig{})

		if _, err := s.SendMessage(context.Background(), text); err != nil {
			t.Errorf("SendMessage(%q) error = %v", text, err)
		}
		if _, err := s.Send(text); !errors.Is(err, chat.ErrEmptyMessage) {
			t.Errorf("Send(%q) error = %v, want ErrEmptyMessage", text, err)
		}
		if n := len(s.Messages()); n != 1 {
			t.Errorf("SendMessage(%q) appended messages: %d", text, n)
		}
		if llm.callCount() != 0 {
			t.Errorf("SendMessage(%q) called the transport", text)
		}
		if len(events.typing) != 0 {
			t.Errorf("SendMessage(%q) touched the typing indicator", text)
		}
	}
}

func TestSendMessageStreams(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"Hi", "", " there"}}
	s, events := newScreen(t, llm, voice.ControllerConfig{})

	reply, err := s.SendMessage(context.Background(), "I feel anxious today")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply.Text != "Hi there" || reply.IsStreaming || reply.Sender != models.SenderAssistant {
		t.Errorf("reply = %+v, want finished \"Hi there\"", reply)
	}

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len(Messages()) = %d, want 3", len(msgs))
	}
	user := msgs[1]
	if user.Text != "I feel anxious today" || user.Sender != models.SenderUser {
		t.Errorf("user message = %+v", user)
	}
	if msgs[2].ID != reply.ID || msgs[2].IsStreaming {
		t.Errorf("assistant message = %+v", msgs[2])
	}
	if msgs[1].ID >= msgs[2].ID {
		t.Errorf("IDs not increasing: %s, %s", msgs[1].ID, msgs[2].ID)
	}

	sent := llm.lastCall()
	if len(sent) != 2 || sent[0].Text != chat.Greeting || sent[1].Text != "I feel anxious today" || sent[1].Sender != models.SenderUser {
		t.Errorf("transport got %+v, want greeting then the user text", sent)
	}

	if got := events.typing; len(got) != 2 || !got[0] || got[1] {
		t.Errorf("typing changes = %v, want [true false]", got)
	}
	last := events.updated[len(events.updated)-1]
	if last.Text != "Hi there" || last.IsStreaming {
		t.Errorf("last update = %+v", last)
	}
	if st := s.State(); st.Typing || st.Busy {
		t.Errorf("State() = %+v after reply", st)
	}
	if events.warningCount() != 0 {
		t.Errorf("warnings = %+v", events.warnings)
	}
}

func TestSendMessageFailures(t *testing.T) {
	tests := []struct {
		name       string
		llm        *fakeLLM
		wantText   func(string) bool
		wantWarned bool
	}{
		{
			name:       "transport rejects",
			llm:        &fakeLLM{openErr: errTransport},
			wantText:   func(s string) bool { return slices.Contains(chat.FallbackReplies, s) },
			wantWarned: true,
		},
		{
			name:       "stream breaks before any text",
			llm:        &fakeLLM{streamErr: io.ErrUnexpectedEOF},
			wantText:   func(s string) bool { return slices.Contains(chat.FallbackReplies, s) },
			wantWarned: true,
		},
		{
			name:       "stream breaks after some text",
			llm:        &fakeLLM{chunks: []string{"Take a deep", " breath"}, streamErr: io.ErrUnexpectedEOF},
			wantText:   func(s string) bool { return s == "Take a deep breath" },
			wantWarned: true,
		},
		{
			name:     "stream ends empty",
			llm:      &fakeLLM{},
			wantText: func(s string) bool { return s == chat.DefaultReply },
		},
		{
			name:     "stream panics",
			llm:      &fakeLLM{chunks: []string{"Hi"}, panicMsg: "boom"},
			wantText: func(s string) bool { return s == chat.ErrorReply },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, events := newScreen(t, tt.llm, voice.ControllerConfig{})

			reply, err := s.SendMessage(context.Background(), "hello")
			if err != nil {
				t.Fatalf("SendMessage() error = %v", err)
			}
			if !tt.wantText(reply.Text) {
				t.Errorf("reply text = %q", reply.Text)
			}

			msgs := s.Messages()
			for _, m := range msgs {
				if m.IsStreaming {
					t.Errorf("message %s still streaming", m.ID)
				}
			}
			if msgs[len(msgs)-1].Text != reply.Text {
				t.Errorf("last message = %q, want the reply", msgs[len(msgs)-1].Text)
			}
			if tt.llm.openErr != nil {
				if got := len(assistantMessages(msgs)); got != 1 {
					t.Errorf("assistant messages = %d, want exactly one fallback", got)
				}
			}
			if st := s.State(); st.Typing || st.Busy {
				t.Errorf("State() = %+v, want typing cleared", st)
			}
			if got := events.typing[len(events.typing)-1]; got {
				t.Error("last typing change is true")
			}
			if warned := events.warningCount() > 0; warned != tt.wantWarned {
				t.Errorf("warned = %v, want %v", warned, tt.wantWarned)
			}

			// The screen stays usable.
			tt.llm.openErr, tt.llm.streamErr, tt.llm.panicMsg = nil, nil, ""
			tt.llm.chunks = []string{"ok"}
			if reply, err := s.SendMessage(context.Background(), "again"); err != nil || reply.Text != "ok" {
				t.Errorf("second SendMessage() = %q, %v", reply.Text, err)
			}
		})
	}
}

func TestSendRejectsWhileReplying(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"first ", "reply"}, release: make(chan struct{})}
	s, _ := newScreen(t, llm, voice.ControllerConfig{})

	if _, err := s.Send("one"); err != nil {
		t.Fatalf("Send(one) error = %v", err)
	}
	for range 5 {
		if _, err := s.Send("two"); !errors.Is(err, chat.ErrActiveRequest) {
			t.Fatalf("Send(two) error = %v, want ErrActiveRequest", err)
		}
	}
	if _, err := s.SendMessage(context.Background(), "three"); !errors.Is(err, chat.ErrActiveRequest) {
		t.Fatalf("SendMessage(three) error = %v, want ErrActiveRequest", err)
	}

	close(llm.release)
	s.Wait()

	msgs := s.Messages()
	if len(msgs) != 3 || msgs[1].Text != "one" || msgs[2].Text != "first reply" {
		t.Fatalf("Messages() = %+v", msgs)
	}

	if _, err := s.SendMessage(context.Background(), "four"); err != nil {
		t.Errorf("SendMessage() after reply error = %v", err)
	}
}

func TestRapidSendsKeepRepliesIntact(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"a", "b", "c", "d"}}
	s, _ := newScreen(t, llm, voice.ControllerConfig{})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SendMessage(context.Background(), strings.Repeat("x", i%5+1))
			if err != nil && !errors.Is(err, chat.ErrActiveRequest) {
				t.Errorf("SendMessage() error = %v", err)
			}
		}()
	}
	wg.Wait()

	msgs := s.Messages()
	for i, m := range msgs[1:] {
		if m.IsStreaming {
			t.Errorf("message %d still streaming", i)
		}
		want := models.SenderUser
		if i%2 == 1 {
			want = models.SenderAssistant
		}
		if m.Sender != want {
			t.Fatalf("message %d sender = %s, want %s", i, m.Sender, want)
		}
		if m.Sender == models.SenderAssistant && m.Text != "abcd" {
			t.Errorf("reply %d = %q, want \"abcd\"", i, m.Text)
		}
	}
}

func TestHistoryWindow(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"ok"}}
	s, _ := newScreen(t, llm, voice.ControllerConfig{})

	for i := range 8 {
		if _, err := s.SendMessage(context.Background(), strings.Repeat("q", i+1)); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}

	sent := llm.lastCall()
	if len(sent) != chat.HistoryWindow+1 {
		t.Fatalf("transport got %d messages, want %d", len(sent), chat.HistoryWindow+1)
	}
	if last := sent[len(sent)-1]; last.Text != "qqqqqqqq" || last.Sender != models.SenderUser {
		t.Errorf("last sent message = %+v", last)
	}
	if prev := sent[len(sent)-2]; prev.Text != "ok" || prev.Sender != models.SenderAssistant {
		t.Errorf("history ends with %+v, want the previous reply", prev)
	}
}

func TestFinalTranscriptSendsMessage(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"Let's count kicks together."}}
	rec := voice.NewRelayRecognizer(func(voice.Command) {})
	rec.SetAvailable(true)
	s, events := newScreen(t, llm, voice.ControllerConfig{Recognizer: rec})

	mode, err := s.ToggleVoice(context.Background())
	if err != nil || mode != voice.ModeSpeech {
		t.Fatalf("ToggleVoice() = %s, %v; want speech", mode, err)
	}

	rec.Deliver(voice.Result{Text: "baby"})
	if st := s.State(); st.Input != "baby" {
		t.Errorf("input = %q, want the interim transcript", st.Input)
	}
	if len(s.Messages()) != 1 {
		t.Fatal("interim transcript was sent")
	}

	rec.Deliver(voice.Result{Text: "baby movement", Final: true})
	s.Wait()

	var users []models.Message
	for _, m := range s.Messages() {
		if m.Sender == models.SenderUser {
			users = append(users, m)
		}
	}
	if len(users) != 1 || users[0].Text != "baby movement" {
		t.Fatalf("user messages = %+v, want one \"baby movement\"", users)
	}
	if llm.callCount() != 1 {
		t.Errorf("transport calls = %d, want 1", llm.callCount())
	}
	if s.State().VoiceMode != voice.ModeOff {
		t.Errorf("voice mode = %s, want off after the utterance", s.State().VoiceMode)
	}
	if !slices.Contains(events.modes, voice.ModeSpeech) {
		t.Errorf("voice modes = %v", events.modes)
	}
}

func TestToggleVoiceWithoutCapabilities(t *testing.T) {
	llm := &fakeLLM{chunks: []string{"ok"}}
	s, events := newScreen(t, llm, voice.ControllerConfig{})

	mode, err := s.ToggleVoice(context.Background())
	if !errors.Is(err, voice.ErrPermission) || mode != voice.ModeOff {
		t.Fatalf("ToggleVoice() = %s, %v; want off with ErrPermission", mode, err)
	}
	if events.warningCount() != 1 {
		t.Errorf("warnings = %d, want 1", events.warningCount())
	}
	if _, err := s.SendMessage(context.Background(), "typed"); err != nil {
		t.Errorf("typed SendMessage() error = %v", err)
	}
}

func TestRecognitionErrorWarns(t *testing.T) {
	rec := voice.NewRelayRecognizer(func(voice.Command) {})
	rec.SetAvailable(true)
	s, events := newScreen(t, &fakeLLM{}, voice.ControllerConfig{Recognizer: rec})

	if _, err := s.ToggleVoice(context.Background()); err != nil {
		t.Fatalf("ToggleVoice() error = %v", err)
	}
	rec.Deliver(voice.Result{Err: "network"})

	if events.warningCount() != 1 {
		t.Errorf("warnings = %d, want 1", events.warningCount())
	}
	if s.State().VoiceMode != voice.ModeOff {
		t.Errorf("voice mode = %s, want off", s.State().VoiceMode)
	}
}

func TestCloseReleasesMicrophone(t *testing.T) {
	var mic *voice.RelayMicrophone
	mic = voice.NewRelayMicrophone(func(c voice.Command) {
		if c.Action == voice.CommandStartRecording {
			go mic.Grant(true, "audio/webm")
		}
	})
	events := &recordedEvents{}
	s := chat.NewScreen(context.Background(), chat.NewPipeline(&fakeLLM{}, testLogger()),
		voice.ControllerConfig{Microphone: mic}, events, testLogger())

	mode, err := s.ToggleVoice(context.Background())
	if err != nil || mode != voice.ModeRecording {
		t.Fatalf("ToggleVoice() = %s, %v; want recording", mode, err)
	}
	if mic.LiveTracks() != 1 {
		t.Fatalf("LiveTracks() = %d, want 1", mic.LiveTracks())
	}

	s.Close()
	if mic.LiveTracks() != 0 {
		t.Errorf("LiveTracks() after Close = %d, want 0", mic.LiveTracks())
	}
	if _, err := s.Send("late"); !errors.Is(err, chat.ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}
}

func TestStateDuringPermissionPrompt(t *testing.T) {
	mic := voice.NewRelayMicrophone(func(voice.Command) {})
	events := &recordedEvents{}
	s := chat.NewScreen(context.Background(), chat.NewPipeline(&fakeLLM{}, testLogger()),
		voice.ControllerConfig{Microphone: mic}, events, testLogger())

	toggled := make(chan error, 1)
	go func() {
		_, err := s.ToggleVoice(context.Background())
		toggled <- err
	}()

	deadline := time.Now().Add(time.Second)
	for s.State().VoiceMode != voice.ModeStarting {
		if time.Now().After(deadline) {
			t.Fatalf("voice mode = %s, want starting", s.State().VoiceMode)
		}
		time.Sleep(time.Millisecond)
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close() blocked on the permission prompt")
	}
	if err := <-toggled; err != nil {
		t.Errorf("ToggleVoice() error = %v", err)
	}
	if events.warningCount() != 0 {
		t.Errorf("warnings = %d, want none for a cancelled prompt", events.warningCount())
	}
	if mic.LiveTracks() != 0 {
		t.Errorf("LiveTracks() = %d, want 0", mic.LiveTracks())
	}
}

func TestStopRecordingReleasesMicrophone(t *testing.T) {
	var mic *voice.RelayMicrophone
	mic = voice.NewRelayMicrophone(func(c voice.Command) {
		if c.Action == voice.CommandStartRecording {
			go mic.Grant(true, "")
		}
	})
	s, _ := newScreen(t, &fakeLLM{}, voice.ControllerConfig{Microphone: mic})

	for range 3 {
		if _, err := s.ToggleVoice(context.Background()); err != nil {
			t.Fatalf("ToggleVoice(on) error = %v", err)
		}
		mic.Deliver([]byte("chunk"))
		if mode, err := s.ToggleVoice(context.Background()); err != nil || mode != voice.ModeOff {
			t.Fatalf("ToggleVoice(off) = %s, %v", mode, err)
		}
		if mic.LiveTracks() != 0 {
			t.Fatalf("LiveTracks() = %d, want 0", mic.LiveTracks())
		}
	}
	if n := len(s.Messages()); n != 1 {
		t.Errorf("messages = %d; the stub transcriber must not send anything", n)
	}
}
