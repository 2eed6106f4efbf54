package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/sakhi/internal/metrics"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic streams chat completions from the Anthropic Messages API.
type Anthropic struct {
	apiKey       string
	model        string
	systemPrompt string

	params LLMParameters
	retry  RetryPolicy

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	TopP        float32            `json:"top_p,omitempty"`
	Stream      bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
	anthropicProvider    = "anthropic"
)

// NewAnthropic creates a new Anthropic transport.
func NewAnthropic(apiKey, model, systemPrompt string, params LLMParameters, retry RetryPolicy,
	logger *slog.Logger,
) Anthropic {
	if systemPrompt == "" {
		systemPrompt = DefaultPersona
	}
	return Anthropic{
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		retry:        retry,
		client:       &http.Client{},
		logger:       logger.With(slog.String("module", "anthropic")),
	}
}

// Name returns the provider name used in logs and metrics.
func (a Anthropic) Name() string { return anthropicProvider }

// Chat streams responses from the Anthropic API. The persona is sent as the system field.
func (a Anthropic) Chat(ctx context.Context, messages []models.Message) (iter.Seq2[string, error], error) {
	history := chatHistory(messages)
	msgs := make([]anthropicMessage, len(history))
	for i, msg := range history {
		msgs[i] = anthropicMessage{
			Role:    string(msg.Sender.Role()),
			Content: msg.Text,
		}
	}

	// The API wants the conversation to open with a user turn; the greeting is assistant-authored.
	for len(msgs) > 0 && msgs[0].Role != string(models.RoleUser) {
		msgs = msgs[1:]
	}

	reqBody := anthropicChatRequest{
		Model:       a.model,
		Messages:    msgs,
		System:      a.systemPrompt,
		MaxTokens:   a.params.MaxTokens,
		Temperature: a.params.Temperature,
		TopP:        a.params.TopP,
		Stream:      true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	resp, err := withRetry(ctx, anthropicProvider, a.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			anthropicAPIEndpoint+"/messages", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return func(yield func(string, error) bool) {
		defer resp.Body.Close()

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("%w: error reading response: %w", ErrTransport, err))
				return
			}
			switch ev.Type {
			case "error":
				var e anthropicError
				if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
					yield("", fmt.Errorf("%w: %w", ErrTransport, err))
					return
				}
				yield("", fmt.Errorf("%w: anthropic error %s: %s", ErrTransport, e.Error.Type, e.Error.Message))
				return
			case "message_stop":
				return
			case "content_block_delta":
				var res anthropicStreamResponse
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					metrics.StreamFramesSkipped.WithLabelValues(anthropicProvider).Inc()
					a.logger.Debug("Skipping stream frame", slog.String(errLoggerKey, err.Error()))
					continue
				}
				if res.Delta.Text == "" {
					continue
				}
				if !yield(res.Delta.Text, nil) {
					return
				}
			default:
				continue
			}
		}
	}, nil
}
