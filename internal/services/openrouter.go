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
	"strings"

	"github.com/MegaGrindStone/sakhi/internal/metrics"
	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/tmaxmax/go-sse"
)

// OpenRouter streams chat completions from OpenRouter, or from any endpoint speaking the same
// OpenAI-style SSE protocol.
type OpenRouter struct {
	apiKey       string
	model        string
	systemPrompt string
	endpoint     string
	referer      string
	title        string

	params LLMParameters
	retry  RetryPolicy

	client *http.Client

	logger *slog.Logger
}

// OpenRouterConfig configures an OpenRouter transport. APIKey must come from configuration, never
// from source code.
type OpenRouterConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Endpoint     string
	Referer      string
	Title        string
	Params       LLMParameters
	Retry        RetryPolicy
	HTTPClient   *http.Client
}

type openRouterChatRequest struct {
	Model            string              `json:"model"`
	Messages         []openRouterMessage `json:"messages"`
	Temperature      float32             `json:"temperature"`
	MaxTokens        int                 `json:"max_tokens"`
	TopP             float32             `json:"top_p"`
	FrequencyPenalty float32             `json:"frequency_penalty"`
	PresencePenalty  float32             `json:"presence_penalty"`
	Stream           bool                `json:"stream"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterStreamingResponse struct {
	Choices []openRouterStreamingChoice `json:"choices"`
}

type openRouterStreamingChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

const (
	openRouterAPIEndpoint = "https://openrouter.ai/api/v1"
	openRouterProvider    = "openrouter"

	streamDone = "[DONE]"
)

// NewOpenRouter creates a new OpenRouter transport from the given configuration.
func NewOpenRouter(cfg OpenRouterConfig, logger *slog.Logger) OpenRouter {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = openRouterAPIEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultPersona
	}
	return OpenRouter{
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		systemPrompt: systemPrompt,
		endpoint:     strings.TrimSuffix(endpoint, "/"),
		referer:      cfg.Referer,
		title:        cfg.Title,
		params:       cfg.Params,
		retry:        cfg.Retry,
		client:       client,
		logger:       logger.With(slog.String("module", "openrouter")),
	}
}

// Name returns the provider name used in logs and metrics.
func (o OpenRouter) Name() string { return openRouterProvider }

// Chat opens a completion stream for messages, prefixed with the persona instruction. An error is
// returned when the endpoint cannot be reached or answers with a non-2xx status; it wraps
// ErrTransport. The returned iterator yields content deltas in arrival order and must be drained or
// stopped to release the connection. A "[DONE]" frame ends the iteration without error and malformed
// frames are skipped.
func (o OpenRouter) Chat(ctx context.Context, messages []models.Message) (iter.Seq2[string, error], error) {
	resp, err := withRetry(ctx, openRouterProvider, o.retry, func() (*http.Response, error) {
		return o.doRequest(ctx, messages)
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

			// Some gateways separate frames by a single newline, which SSE folds into one
			// multi-line event. JSON payloads never span lines, so every line is a frame.
			for _, data := range strings.Split(ev.Data, "\n") {
				content, done, err := parseOpenRouterFrame(data)
				if done {
					return
				}
				if err != nil {
					metrics.StreamFramesSkipped.WithLabelValues(openRouterProvider).Inc()
					o.logger.Debug("Skipping stream frame",
						slog.String("frame", data),
						slog.String(errLoggerKey, err.Error()))
					continue
				}
				if content == "" {
					continue
				}
				if !yield(content, nil) {
					return
				}
			}
		}
	}, nil
}

// parseOpenRouterFrame decodes the payload of one "data:" frame.
func parseOpenRouterFrame(data string) (content string, done bool, err error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return "", false, nil
	}
	if data == streamDone {
		return "", true, nil
	}

	var res openRouterStreamingResponse
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrStreamParse, err)
	}
	if len(res.Choices) == 0 {
		return "", false, nil
	}
	return res.Choices[0].Delta.Content, false, nil
}

func (o OpenRouter) doRequest(ctx context.Context, messages []models.Message) (*http.Response, error) {
	history := chatHistory(messages)
	msgs := make([]openRouterMessage, 0, len(history)+1)
	msgs = append(msgs, openRouterMessage{
		Role:    string(models.RoleSystem),
		Content: o.systemPrompt,
	})
	for _, msg := range history {
		msgs = append(msgs, openRouterMessage{
			Role:    string(msg.Sender.Role()),
			Content: msg.Text,
		})
	}

	reqBody := openRouterChatRequest{
		Model:            o.model,
		Messages:         msgs,
		Temperature:      o.params.Temperature,
		MaxTokens:        o.params.MaxTokens,
		TopP:             o.params.TopP,
		FrequencyPenalty: o.params.FrequencyPenalty,
		PresencePenalty:  o.params.PresencePenalty,
		Stream:           true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	o.logger.Debug("Request", slog.String("model", o.model), slog.Int("messages", len(msgs)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.endpoint+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.referer != "" {
		req.Header.Set("HTTP-Referer", o.referer)
	}
	if o.title != "" {
		req.Header.Set("X-Title", o.title)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}
