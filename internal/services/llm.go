package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/metrics"
	"github.com/MegaGrindStone/sakhi/internal/models"
)

const errLoggerKey = "err"

var (
	// ErrTransport marks failures to reach the inference endpoint: network errors and non-2xx
	// responses. Callers answer it with a fallback reply.
	ErrTransport = errors.New("chat transport failed")
	// ErrStreamParse marks a single malformed stream frame. Transports skip such frames.
	ErrStreamParse = errors.New("malformed stream frame")
)

// StatusError is a non-2xx answer from the inference endpoint. It wraps ErrTransport.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// LLMParameters are the sampling parameters sent with every completion request.
type LLMParameters struct {
	Temperature      float32 `yaml:"temperature"`
	MaxTokens        int     `yaml:"maxTokens"`
	TopP             float32 `yaml:"topP"`
	FrequencyPenalty float32 `yaml:"frequencyPenalty"`
	PresencePenalty  float32 `yaml:"presencePenalty"`
}

// DefaultLLMParameters returns the parameters tuned for short, warm replies.
func DefaultLLMParameters() LLMParameters {
	return LLMParameters{
		Temperature:      0.7,
		MaxTokens:        500,
		TopP:             0.9,
		FrequencyPenalty: 0.3,
		PresencePenalty:  0.3,
	}
}

// RetryPolicy controls how often opening a completion stream is attempted. Only transient failures
// (network errors, 429 and 5xx) are retried, and never after the stream started.
type RetryPolicy struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// DefaultRetryPolicy tries twice with a 500ms pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 2, Backoff: 500 * time.Millisecond}
}

// DefaultPersona is the system instruction used when the configuration does not provide one.
const DefaultPersona = `You are Sakhi, a warm and caring maternal wellness companion for women in India.
Speak like a trusted elder sister: gentle, encouraging and simple. Reply in the language the user writes in
(Hindi, English or a mix). Keep answers short (2-4 sentences) and practical. You support emotional
wellbeing, pregnancy and postpartum questions, nutrition, breathing and rest. You are not a doctor: for
danger signs such as heavy bleeding, severe pain, fits, high fever or reduced baby movement, ask the user
to call 108 or visit the nearest health centre immediately.`

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// withRetry calls open until it succeeds, fails permanently or the policy is exhausted.
func withRetry[T any](ctx context.Context, provider string, policy RetryPolicy, open func() (T, error)) (T, error) {
	attempts := max(policy.Attempts, 1)
	backoff := policy.Backoff

	var zero T
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		res, err := open()
		if err == nil {
			metrics.TransportAttempts.WithLabelValues(provider, "ok").Inc()
			return res, nil
		}
		metrics.TransportAttempts.WithLabelValues(provider, "error").Inc()
		last = err
		if !retryable(err) || attempt == attempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		backoff *= 2
	}
	return zero, last
}

// chatHistory filters out messages that carry nothing to send.
func chatHistory(messages []models.Message) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		out = append(out, msg)
	}
	return out
}
