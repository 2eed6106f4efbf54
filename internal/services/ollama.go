package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama streams chat completions from a local Ollama server.
type Ollama struct {
	model        string
	systemPrompt string

	params LLMParameters

	client *api.Client

	logger *slog.Logger
}

const ollamaProvider = "ollama"

// NewOllama creates a new Ollama transport. The host must be a valid URL pointing to an Ollama server.
func NewOllama(host, model, systemPrompt string, params LLMParameters, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if systemPrompt == "" {
		systemPrompt = DefaultPersona
	}

	return Ollama{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       api.NewClient(u, &http.Client{}),
		logger:       logger.With(slog.String("module", "ollama")),
	}, nil
}

// Name returns the provider name used in logs and metrics.
func (o Ollama) Name() string { return ollamaProvider }

// Chat streams the model output. The Ollama client only reports connection and status failures once
// the request runs, so they surface as the first iteration error, wrapped with ErrTransport.
func (o Ollama) Chat(ctx context.Context, messages []models.Message) (iter.Seq2[string, error], error) {
	history := chatHistory(messages)
	msgs := make([]api.Message, 0, len(history)+1)
	msgs = append(msgs, api.Message{
		Role:    string(models.RoleSystem),
		Content: o.systemPrompt,
	})
	for _, msg := range history {
		msgs = append(msgs, api.Message{
			Role:    string(msg.Sender.Role()),
			Content: msg.Text,
		})
	}

	t := true
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &t,
		Options: map[string]any{
			"temperature":       o.params.Temperature,
			"top_p":             o.params.TopP,
			"num_predict":       o.params.MaxTokens,
			"frequency_penalty": o.params.FrequencyPenalty,
			"presence_penalty":  o.params.PresencePenalty,
		},
	}

	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped || res.Message.Content == "" {
				return nil
			}
			if !yield(res.Message.Content, nil) {
				stopped = true
				cancel()
			}
			return nil
		})
		if err != nil && !stopped {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("%w: error sending request: %w", ErrTransport, err))
		}
	}, nil
}
