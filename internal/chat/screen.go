package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/MegaGrindStone/sakhi/internal/conversation"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/voice"
)

// Screen is the state of one chat screen: the conversation, the pending input, the typing indicator
// and voice mode. Only one reply runs at a time; sending while it runs fails with ErrActiveRequest.
type Screen struct {
	log      *conversation.Log
	pipeline *Pipeline
	voice    *voice.Controller
	events   Events

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	busy   bool
	typing bool
	input  string
	closed bool

	logger *slog.Logger
}

// ScreenState is a snapshot for rendering.
type ScreenState struct {
	Typing    bool
	Busy      bool
	Input     string
	VoiceMode voice.Mode
}

// Turn is a submitted user message waiting for its reply.
type Turn struct {
	User        models.Message
	AssistantID string

	history []models.Message
}

// NewScreen creates a screen whose conversation starts with the greeting. Replies sent with Send run
// under ctx; Close cancels them.
func NewScreen(ctx context.Context, pipeline *Pipeline, voiceCfg voice.ControllerConfig, events Events,
	logger *slog.Logger,
) *Screen {
	if events == nil {
		events = NopEvents{}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Screen{
		log:      conversation.NewLog(),
		pipeline: pipeline,
		events:   events,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(slog.String("module", "chat-screen")),
	}
	s.voice = voice.NewController(voiceCfg, s.onVoice, logger)
	_, _ = s.log.Append(models.Message{Sender: models.SenderAssistant, Text: Greeting})
	return s
}

// Messages returns the conversation in display order.
func (s *Screen) Messages() []models.Message {
	return s.log.Messages()
}

// State returns the indicators of the screen.
func (s *Screen) State() ScreenState {
	mode := s.voice.Mode()

	s.mu.Lock()
	defer s.mu.Unlock()
	return ScreenState{
		Typing:    s.typing,
		Busy:      s.busy,
		Input:     s.input,
		VoiceMode: mode,
	}
}

// Submit appends the user's message and shows the typing indicator. Blank text fails with
// ErrEmptyMessage and changes nothing. The reply must then be produced with Complete.
func (s *Screen) Submit(text string) (Turn, error) {
	return s.submit(text, false)
}

// submit registers the turn with the wait group when async is set, so Close waits for it.
func (s *Screen) submit(text string, async bool) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return Turn{}, ErrClosed
	case s.busy:
		s.mu.Unlock()
		return Turn{}, ErrActiveRequest
	}
	s.busy = true
	s.typing = true
	s.input = ""

	history := s.log.Window(HistoryWindow)
	user, err := s.log.Append(models.Message{Sender: models.SenderUser, Text: text})
	if err != nil {
		s.busy = false
		s.typing = false
		s.mu.Unlock()
		return Turn{}, fmt.Errorf("failed to append user message: %w", err)
	}
	if async {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	s.events.MessageAdded(user)
	s.events.InputChanged("")
	s.events.TypingChanged(true)

	return Turn{
		User:        user,
		AssistantID: conversation.NewID(),
		history:     history,
	}, nil
}

// Complete produces the reply to turn. It never fails: an unexpected failure appends ErrorReply, and
// the typing indicator is cleared on every path.
func (s *Screen) Complete(ctx context.Context, turn Turn) (reply models.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Reply panicked",
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())))
			msg, _ := s.log.Append(models.Message{Sender: models.SenderAssistant, Text: ErrorReply})
			s.events.MessageAdded(msg)
			reply = msg
		}

		s.mu.Lock()
		s.busy = false
		s.typing = false
		s.mu.Unlock()
		s.events.TypingChanged(false)
	}()

	return s.pipeline.Reply(ctx, s.log, Request{
		AssistantID: turn.AssistantID,
		History:     turn.history,
		Prompt:      turn.User.Text,
	}, s.events)
}

// SendMessage submits text and waits for the reply. Blank text is ignored.
func (s *Screen) SendMessage(ctx context.Context, text string) (models.Message, error) {
	turn, err := s.Submit(text)
	if errors.Is(err, ErrEmptyMessage) {
		return models.Message{}, nil
	}
	if err != nil {
		return models.Message{}, err
	}
	return s.Complete(ctx, turn), nil
}

// Send submits text and produces the reply in the background. It returns the user's message.
func (s *Screen) Send(text string) (models.Message, error) {
	turn, err := s.submit(text, true)
	if err != nil {
		return models.Message{}, err
	}

	go func() {
		defer s.wg.Done()
		s.Complete(s.ctx, turn)
	}()
	return turn.User, nil
}

// Wait blocks until replies started by Send finished.
func (s *Screen) Wait() {
	s.wg.Wait()
}

// SetInput mirrors text into the input field without sending it.
func (s *Screen) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
	s.events.InputChanged(text)
}

// ToggleVoice switches voice mode. When no capture mechanism can start, a warning is shown and an error
// wrapping voice.ErrPermission is returned; typing keeps working.
func (s *Screen) ToggleVoice(ctx context.Context) (voice.Mode, error) {
	mode, err := s.voice.Toggle(ctx)
	if err != nil {
		s.events.Warn(warnMicrophone)
		return mode, err
	}
	return mode, nil
}

func (s *Screen) onVoice(ev voice.Event) {
	switch ev.Kind {
	case voice.EventInterim:
		s.SetInput(ev.Text)
	case voice.EventFinal:
		_, err := s.Send(ev.Text)
		switch {
		case errors.Is(err, ErrActiveRequest):
			s.SetInput(ev.Text)
			s.events.Warn(warnBusy)
		case err != nil && !errors.Is(err, ErrEmptyMessage):
			s.logger.Warn("Failed to send transcript", slog.String(errLoggerKey, err.Error()))
		}
	case voice.EventError:
		s.events.Warn(warnRecognition)
	case voice.EventMode:
		s.events.VoiceChanged(ev.Mode)
	}
}

// Close stops voice capture, cancels a running reply and waits for it to finish. Sending afterwards
// fails with ErrClosed.
func (s *Screen) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.voice.Close()
	s.cancel()
	s.wg.Wait()
}
