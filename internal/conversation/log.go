// Package conversation holds the ordered message log of a chat session. The log is append-only:
// messages keep their insertion position for the lifetime of the session and only the text of the
// message currently streaming may change.
package conversation

import (
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/models"
)

// ErrAlreadyStreaming is returned by Append when a streaming message is appended while another one
// has not finished yet.
var ErrAlreadyStreaming = errors.New("another message is still streaming")

// Log is a concurrency-safe conversation log.
type Log struct {
	mu       sync.RWMutex
	messages []models.Message
	index    map[string]int

	// streaming is the index of the message with IsStreaming set, or -1.
	streaming int
}

var lastID atomic.Int64

// NewID returns a timestamp-derived message ID that is strictly greater than every ID previously
// returned by this process.
func NewID() string {
	for {
		now := time.Now().UnixNano()
		last := lastID.Load()
		if now <= last {
			now = last + 1
		}
		if lastID.CompareAndSwap(last, now) {
			return strconv.FormatInt(now, 10)
		}
	}
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		index:     make(map[string]int),
		streaming: -1,
	}
}

// Append adds the message to the end of the log. Missing IDs and timestamps are filled in. Only a
// streaming message can fail to append, and only while another message is streaming.
func (l *Log) Append(msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Sender == models.SenderUser {
		msg.IsStreaming = false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.IsStreaming && l.streaming != -1 {
		return models.Message{}, ErrAlreadyStreaming
	}

	l.messages = append(l.messages, msg)
	idx := len(l.messages) - 1
	l.index[msg.ID] = idx
	if msg.IsStreaming {
		l.streaming = idx
	}
	return msg, nil
}

// UpdateText replaces the text of the message with the given ID. Unknown IDs and user messages are
// left untouched. It reports whether a message changed.
func (l *Log) UpdateText(id, text string) (models.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.index[id]
	if !ok || l.messages[idx].Sender == models.SenderUser {
		return models.Message{}, false
	}
	l.messages[idx].Text = text
	return l.messages[idx], true
}

// AppendText concatenates chunk onto the text of the streaming message with the given ID. It is a
// no-op for messages that are not streaming.
func (l *Log) AppendText(id, chunk string) (models.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.index[id]
	if !ok || !l.messages[idx].IsStreaming {
		return models.Message{}, false
	}
	l.messages[idx].Text += chunk
	return l.messages[idx], true
}

// SetStreamingDone clears the streaming flag of the message. The flag never goes back to true, so
// calling it more than once is harmless. It reports whether the flag was cleared by this call.
func (l *Log) SetStreamingDone(id string) (models.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.index[id]
	if !ok || !l.messages[idx].IsStreaming {
		return models.Message{}, false
	}
	l.messages[idx].IsStreaming = false
	if l.streaming == idx {
		l.streaming = -1
	}
	return l.messages[idx], true
}

// Get returns the message with the given ID.
func (l *Log) Get(id string) (models.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.index[id]
	if !ok {
		return models.Message{}, false
	}
	return l.messages[idx], true
}

// Messages returns a copy of the log in display order.
func (l *Log) Messages() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.messages)
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.messages)
}

// Streaming reports whether a message is currently streaming.
func (l *Log) Streaming() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.streaming != -1
}

// Window returns a snapshot of the last n finished, non-empty messages. The returned slice is owned
// by the caller.
func (l *Log) Window(n int) []models.Message {
	if n <= 0 {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	window := make([]models.Message, 0, n)
	for i := len(l.messages) - 1; i >= 0 && len(window) < n; i-- {
		msg := l.messages[i]
		if msg.IsStreaming || msg.Text == "" {
			continue
		}
		window = append(window, msg)
	}
	slices.Reverse(window)
	return window
}
