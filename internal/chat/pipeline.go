package chat

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/MegaGrindStone/sakhi/internal/conversation"
	"github.com/MegaGrindStone/sakhi/internal/metrics"
	"github.com/MegaGrindStone/sakhi/internal/models"
)

// Pipeline turns one user message into one assistant message.
type Pipeline struct {
	llm  LLM
	pick func(n int) int

	logger *slog.Logger
}

// Request is one reply to produce. History is a snapshot of earlier messages and is not modified.
type Request struct {
	AssistantID string
	History     []models.Message
	Prompt      string
}

// NewPipeline creates a pipeline over llm.
func NewPipeline(llm LLM, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		llm:    llm,
		pick:   rand.IntN,
		logger: logger.With(slog.String("module", "pipeline"), slog.String("provider", llm.Name())),
	}
}

func (p *Pipeline) fallback() string {
	return FallbackReplies[p.pick(len(FallbackReplies))]
}

// Reply appends the assistant's answer to log and returns it once finished. When the stream cannot be
// opened a single fallback message is appended instead. A stream that breaks off keeps what arrived,
// or takes a fallback text when nothing did. The returned message never streams.
func (p *Pipeline) Reply(ctx context.Context, log *conversation.Log, req Request, events Events) (reply models.Message) {
	messages := append(slices.Clone(req.History), models.Message{
		Sender: models.SenderUser,
		Text:   req.Prompt,
	})

	seq, err := p.llm.Chat(ctx, messages)
	if err != nil {
		p.logger.Error("Failed to open chat stream", slog.String(errLoggerKey, err.Error()))
		metrics.ChatReplies.WithLabelValues(p.llm.Name(), "fallback").Inc()
		events.Warn(warnConnection)
		return p.appendFinished(log, req.AssistantID, p.fallback(), events)
	}

	msg, err := log.Append(models.Message{
		ID:          req.AssistantID,
		Sender:      models.SenderAssistant,
		IsStreaming: true,
	})
	if err != nil {
		// Only reachable when another reply is streaming into the same log.
		p.logger.Error("Failed to append streaming message", slog.String(errLoggerKey, err.Error()))
		metrics.ChatReplies.WithLabelValues(p.llm.Name(), "fallback").Inc()
		return p.appendFinished(log, "", p.fallback(), events)
	}
	events.MessageAdded(msg)

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	// Runs on every exit, including a panic in the stream loop.
	defer func() {
		final, _ := log.SetStreamingDone(msg.ID)
		events.MessageUpdated(final)
		reply = final
	}()

	outcome := "streamed"
	received := false
	for chunk, err := range seq {
		if err != nil {
			p.logger.Error("Chat stream broke off",
				slog.String("message", msg.ID),
				slog.Bool("partial", received),
				slog.String(errLoggerKey, err.Error()))
			events.Warn(warnInterrupted)
			outcome = "stream_error"
			if !received {
				log.UpdateText(msg.ID, p.fallback())
			}
			break
		}
		if chunk == "" {
			continue
		}
		updated, ok := log.AppendText(msg.ID, chunk)
		if !ok {
			continue
		}
		received = true
		events.MessageUpdated(updated)
	}

	if outcome == "streamed" && !received {
		outcome = "empty"
		log.UpdateText(msg.ID, DefaultReply)
	}
	metrics.ChatReplies.WithLabelValues(p.llm.Name(), outcome).Inc()
	return reply
}

func (p *Pipeline) appendFinished(log *conversation.Log, id, text string, events Events) models.Message {
	msg, _ := log.Append(models.Message{
		ID:     id,
		Sender: models.SenderAssistant,
		Text:   text,
	})
	events.MessageAdded(msg)
	return msg
}
