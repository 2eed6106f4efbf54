package handlers

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/chat"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/voice"
)

type silentLLM struct{}

func (silentLLM) Name() string { return "silent" }

func (silentLLM) Chat(context.Context, []models.Message) (iter.Seq2[string, error], error) {
	return func(func(string, error) bool) {}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testSession(t *testing.T, id string, ss *sessions) *session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := &session{
		id:       id,
		screen:   chat.NewScreen(context.Background(), chat.NewPipeline(silentLLM{}, logger), voice.ControllerConfig{}, nil, logger),
		lastSeen: ss.now(),
	}
	ss.add(sess)
	return sess
}

func TestSweepKeepsSessionsWithOpenStreams(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
	var closed []string
	ss := newSessions(time.Hour, clock.Now, func(id string) { closed = append(closed, id) },
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	watching := testSession(t, "watching", ss)
	testSession(t, "gone", ss)

	detach := ss.attach(watching)
	clock.Advance(2 * time.Hour)

	if n := ss.sweep(); n != 1 {
		t.Fatalf("sweep() = %d, want 1", n)
	}
	if len(closed) != 1 || closed[0] != "gone" {
		t.Errorf("closed = %v, want [gone]", closed)
	}
	if _, ok := ss.get("watching"); !ok {
		t.Fatal("session with an open stream was evicted")
	}

	// The idle clock restarts when the stream closes.
	clock.Advance(2 * time.Hour)
	detach()
	clock.Advance(30 * time.Minute)
	if n := ss.sweep(); n != 0 {
		t.Errorf("sweep() right after the stream closed = %d, want 0", n)
	}
	clock.Advance(time.Hour)
	if n := ss.sweep(); n != 1 {
		t.Errorf("sweep() after the TTL = %d, want 1", n)
	}
}

func TestCloseAllSkipsOnClose(t *testing.T) {
	called := false
	ss := newSessions(time.Hour, time.Now, func(string) { called = true },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	testSession(t, "a", ss)

	ss.closeAll()

	if called {
		t.Error("closeAll() ran onClose")
	}
	if ss.len() != 0 {
		t.Errorf("len() = %d, want 0", ss.len())
	}
}
