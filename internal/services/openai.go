package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/MegaGrindStone/sakhi/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI streams chat completions through the OpenAI API or any OpenAI-compatible server.
type OpenAI struct {
	model        string
	systemPrompt string

	params LLMParameters
	retry  RetryPolicy

	client *goopenai.Client

	logger *slog.Logger
}

const openAIProvider = "openai"

// NewOpenAI creates a new OpenAI transport. An empty baseURL targets api.openai.com.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string, params LLMParameters, retry RetryPolicy,
	logger *slog.Logger,
) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if systemPrompt == "" {
		systemPrompt = DefaultPersona
	}
	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		retry:        retry,
		client:       goopenai.NewClientWithConfig(cfg),
		logger:       logger.With(slog.String("module", "openai")),
	}
}

// Name returns the provider name used in logs and metrics.
func (o OpenAI) Name() string { return openAIProvider }

func openAIMessages(systemPrompt string, messages []models.Message) []goopenai.ChatCompletionMessage {
	history := chatHistory(messages)
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, msg := range history {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    string(msg.Sender.Role()),
			Content: msg.Text,
		})
	}
	return msgs
}

// Chat is a wrapper around the OpenAI streaming chat completion API.
func (o OpenAI) Chat(ctx context.Context, messages []models.Message) (iter.Seq2[string, error], error) {
	req := goopenai.ChatCompletionRequest{
		Model:            o.model,
		Messages:         openAIMessages(o.systemPrompt, messages),
		Temperature:      o.params.Temperature,
		MaxTokens:        o.params.MaxTokens,
		TopP:             o.params.TopP,
		FrequencyPenalty: o.params.FrequencyPenalty,
		PresencePenalty:  o.params.PresencePenalty,
		Stream:           true,
	}

	stream, err := withRetry(ctx, openAIProvider, o.retry, func() (*goopenai.ChatCompletionStream, error) {
		s, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return nil, openAIError(err)
		}
		return s, nil
	})
	if err != nil {
		if errors.Is(err, ErrTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return func(yield func(string, error) bool) {
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("%w: error receiving response: %w", ErrTransport, err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}
			if content := response.Choices[0].Delta.Content; content != "" {
				if !yield(content, nil) {
					return
				}
			}
		}
	}, nil
}

// openAIError converts status-carrying client errors into StatusError so the retry policy can
// classify them.
func openAIError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
