// Package chat runs the conversation of a chat screen: it appends the user's messages, streams the
// assistant's reply into the conversation log and falls back to canned replies when the model cannot
// be reached.
package chat

import (
	"context"
	"errors"
	"iter"

	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/voice"
)

// LLM streams a completion for the conversation. An error from Chat means the stream could not be
// opened; an error yielded by the iterator means it broke off.
type LLM interface {
	Name() string
	Chat(ctx context.Context, messages []models.Message) (iter.Seq2[string, error], error)
}

// Events receives every visible change of a chat screen. Implementations must not call back into the
// screen.
type Events interface {
	MessageAdded(msg models.Message)
	MessageUpdated(msg models.Message)
	TypingChanged(typing bool)
	InputChanged(text string)
	VoiceChanged(mode voice.Mode)
	Warn(w Warning)
}

// Warning is a non-fatal notice shown as a toast.
type Warning struct {
	Title string
	Text  string
}

// NopEvents ignores every event.
type NopEvents struct{}

func (NopEvents) MessageAdded(models.Message)   {}
func (NopEvents) MessageUpdated(models.Message) {}
func (NopEvents) TypingChanged(bool)            {}
func (NopEvents) InputChanged(string)           {}
func (NopEvents) VoiceChanged(voice.Mode)       {}
func (NopEvents) Warn(Warning)                  {}

const errLoggerKey = "err"

var (
	// ErrActiveRequest is returned when a message is sent while the previous reply is still running.
	ErrActiveRequest = errors.New("a reply is already in progress")
	// ErrEmptyMessage is returned by Submit for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrClosed is returned after the screen was closed.
	ErrClosed = errors.New("chat screen closed")
)

// HistoryWindow is the number of earlier messages sent along with a new one.
const HistoryWindow = 10

// Greeting opens every conversation.
const Greeting = "Namaste! I am Sakhi, your wellness companion. How are you feeling today? 🙏"

// ErrorReply is appended when sending fails unexpectedly.
const ErrorReply = "I'm sorry, I couldn't respond just now. Please try again in a moment. 💕"

// DefaultReply replaces a reply that streamed no text at all.
const DefaultReply = "I'm here with you. Could you tell me a little more about how you are feeling? 🌸"

// FallbackReplies stand in for the model when it cannot be reached.
var FallbackReplies = []string{
	"I understand how you're feeling. It's completely normal to have these emotions during pregnancy. Let's work through this together. 💕",
	"That's a great question! Here's what I recommend for your wellness journey... 🌸",
	"You're doing wonderfully! Remember, every small step towards your health matters. 🌟",
	"Thank you for sharing that with me. Your feelings are valid and important. 🤗",
}

var (
	warnConnection = Warning{
		Title: "Connection issue",
		Text:  "Sakhi is offline for a moment. Your message was received.",
	}
	warnInterrupted = Warning{
		Title: "Reply interrupted",
		Text:  "The connection dropped while Sakhi was replying. Please try again.",
	}
	warnMicrophone = Warning{
		Title: "Microphone unavailable",
		Text:  "Please allow microphone access, or type your message instead.",
	}
	warnRecognition = Warning{
		Title: "Voice input",
		Text:  "I couldn't hear that clearly. Please try again.",
	}
	warnBusy = Warning{
		Title: "Please wait",
		Text:  "Sakhi is still replying to your last message.",
	}
)
