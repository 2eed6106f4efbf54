package conversation_test

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/MegaGrindStone/sakhi/internal/conversation"
	"github.com/MegaGrindStone/sakhi/internal/models"
)

func TestNewIDIncreases(t *testing.T) {
	prev := int64(0)
	for range 1000 {
		id, err := strconv.ParseInt(conversation.NewID(), 10, 64)
		if err != nil {
			t.Fatalf("NewID() is not numeric: %v", err)
		}
		if id <= prev {
			t.Fatalf("NewID() = %d, want > %d", id, prev)
		}
		prev = id
	}
}

func TestLogAppend(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*conversation.Log)
		msg     models.Message
		wantErr error
		wantLen int
	}{
		{
			name:    "user message",
			msg:     models.Message{Sender: models.SenderUser, Text: "hi"},
			wantLen: 1,
		},
		{
			name:    "streaming assistant message",
			msg:     models.Message{Sender: models.SenderAssistant, IsStreaming: true},
			wantLen: 1,
		},
		{
			name: "second streaming message rejected",
			prepare: func(l *conversation.Log) {
				_, _ = l.Append(models.Message{Sender: models.SenderAssistant, IsStreaming: true})
			},
			msg:     models.Message{Sender: models.SenderAssistant, IsStreaming: true},
			wantErr: conversation.ErrAlreadyStreaming,
			wantLen: 1,
		},
		{
			name: "finished message while streaming",
			prepare: func(l *conversation.Log) {
				_, _ = l.Append(models.Message{Sender: models.SenderAssistant, IsStreaming: true})
			},
			msg:     models.Message{Sender: models.SenderUser, Text: "still here"},
			wantLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := conversation.NewLog()
			if tt.prepare != nil {
				tt.prepare(l)
			}
			got, err := l.Append(tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Append() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && (got.ID == "" || got.Timestamp.IsZero()) {
				t.Errorf("Append() did not fill id/timestamp: %+v", got)
			}
			if l.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", l.Len(), tt.wantLen)
			}
		})
	}
}

func TestLogUserMessageImmutable(t *testing.T) {
	l := conversation.NewLog()
	um, _ := l.Append(models.Message{Sender: models.SenderUser, Text: "I feel anxious today"})

	if _, ok := l.UpdateText(um.ID, "changed"); ok {
		t.Error("UpdateText() changed a user message")
	}
	if _, ok := l.AppendText(um.ID, "changed"); ok {
		t.Error("AppendText() changed a user message")
	}
	got, _ := l.Get(um.ID)
	if got.Text != "I feel anxious today" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestLogUpdateUnknownID(t *testing.T) {
	l := conversation.NewLog()
	if _, ok := l.UpdateText("missing", "x"); ok {
		t.Error("UpdateText() on unknown id reported a change")
	}
	if _, ok := l.SetStreamingDone("missing"); ok {
		t.Error("SetStreamingDone() on unknown id reported a change")
	}
}

func TestLogStreamingLifecycle(t *testing.T) {
	l := conversation.NewLog()
	am, _ := l.Append(models.Message{Sender: models.SenderAssistant, IsStreaming: true})

	for _, chunk := range []string{"Hi", " there"} {
		if _, ok := l.AppendText(am.ID, chunk); !ok {
			t.Fatalf("AppendText(%q) did not apply", chunk)
		}
	}
	if !l.Streaming() {
		t.Fatal("Streaming() = false while streaming")
	}

	if _, ok := l.SetStreamingDone(am.ID); !ok {
		t.Fatal("first SetStreamingDone() did not apply")
	}
	if _, ok := l.SetStreamingDone(am.ID); ok {
		t.Error("second SetStreamingDone() reported a transition")
	}
	if _, ok := l.AppendText(am.ID, "!"); ok {
		t.Error("AppendText() applied after streaming finished")
	}

	got, _ := l.Get(am.ID)
	if got.Text != "Hi there" || got.IsStreaming {
		t.Errorf("message = %+v, want text %q and not streaming", got, "Hi there")
	}
	if l.Streaming() {
		t.Error("Streaming() = true after finishing")
	}
}

func TestLogWindow(t *testing.T) {
	l := conversation.NewLog()
	for i := range 15 {
		sender := models.SenderUser
		if i%2 == 1 {
			sender = models.SenderAssistant
		}
		_, _ = l.Append(models.Message{Sender: sender, Text: strconv.Itoa(i)})
	}
	_, _ = l.Append(models.Message{Sender: models.SenderAssistant, IsStreaming: true})

	w := l.Window(10)
	if len(w) != 10 {
		t.Fatalf("len(Window(10)) = %d, want 10", len(w))
	}
	if w[0].Text != "5" || w[9].Text != "14" {
		t.Errorf("window spans %q..%q, want 5..14", w[0].Text, w[9].Text)
	}

	w[0].Text = "mutated"
	if got := l.Window(10)[0].Text; got != "5" {
		t.Errorf("window is not a snapshot, got %q", got)
	}

	if got := l.Window(0); got != nil {
		t.Errorf("Window(0) = %v, want nil", got)
	}
}

// TestLogRandomOperations drives the log with random operations and checks the ordering and
// streaming invariants after every step.
func TestLogRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for round := range 50 {
		l := conversation.NewLog()
		var order []string
		doneOnce := map[string]int{}

		for range 200 {
			switch rng.IntN(4) {
			case 0:
				m, err := l.Append(models.Message{Sender: models.SenderUser, Text: "u"})
				if err != nil {
					t.Fatalf("round %d: append user: %v", round, err)
				}
				order = append(order, m.ID)
			case 1:
				m, err := l.Append(models.Message{Sender: models.SenderAssistant, IsStreaming: true})
				if err == nil {
					order = append(order, m.ID)
				} else if !errors.Is(err, conversation.ErrAlreadyStreaming) {
					t.Fatalf("round %d: append assistant: %v", round, err)
				}
			case 2:
				if len(order) > 0 {
					l.UpdateText(order[rng.IntN(len(order))], "x")
				}
			case 3:
				if len(order) > 0 {
					id := order[rng.IntN(len(order))]
					if _, ok := l.SetStreamingDone(id); ok {
						doneOnce[id]++
					}
				}
			}

			msgs := l.Messages()
			if len(msgs) != len(order) {
				t.Fatalf("round %d: len = %d, want %d", round, len(msgs), len(order))
			}
			streaming := 0
			for i, m := range msgs {
				if m.ID != order[i] {
					t.Fatalf("round %d: position %d holds %s, want %s", round, i, m.ID, order[i])
				}
				if m.IsStreaming {
					streaming++
				}
				if m.Sender == models.SenderUser && m.Text != "u" {
					t.Fatalf("round %d: user message %s mutated to %q", round, m.ID, m.Text)
				}
			}
			if streaming > 1 {
				t.Fatalf("round %d: %d messages streaming", round, streaming)
			}
		}

		for id, n := range doneOnce {
			if n != 1 {
				t.Fatalf("round %d: message %s finished streaming %d times", round, id, n)
			}
		}
	}
}
