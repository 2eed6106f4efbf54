package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/chat"
	"github.com/MegaGrindStone/sakhi/internal/handlers"
	"github.com/MegaGrindStone/sakhi/internal/services"
	"github.com/MegaGrindStone/sakhi/internal/voice"
	"github.com/MegaGrindStone/sakhi/internal/wellness"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(systemPrompt string, logger *slog.Logger) (chat.LLM, error)
	applyEnv(e envConfig)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string                 `yaml:"provider"`
	Model    string                 `yaml:"model"`
	Params   services.LLMParameters `yaml:"params"`
	Retry    services.RetryPolicy   `yaml:"retry"`
}

type serverConfig struct {
	Port         string                       `yaml:"port"`
	SystemPrompt string                       `yaml:"systemPrompt"`
	StorePath    string                       `yaml:"storePath"`
	Log          logConfig                    `yaml:"log"`
	Sessions     sessionsConfig               `yaml:"sessions"`
	Reminders    remindersConfig              `yaml:"reminders"`
	Speech       *services.GoogleSpeechConfig `yaml:"speech"`
}

type config struct {
	serverConfig `yaml:",inline"`
	LLM          llmConfig `yaml:"llm"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type sessionsConfig struct {
	TTL               time.Duration `yaml:"ttl"`
	SendRPS           float64       `yaml:"sendRPS"`
	SendBurst         int           `yaml:"sendBurst"`
	MicrophoneTimeout time.Duration `yaml:"microphoneTimeout"`
	VoiceLang         string        `yaml:"voiceLang"`
}

type remindersConfig struct {
	Cron string `yaml:"cron"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
	Referer       string `yaml:"referer"`
	Title         string `yaml:"title"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
}

// envConfig holds the environment overrides. Credentials only ever come from here or the config file.
type envConfig struct {
	Port             string `env:"SAKHI_PORT"`
	StorePath        string `env:"SAKHI_STORE_PATH"`
	LogLevel         string `env:"SAKHI_LOG_LEVEL"`
	LogFormat        string `env:"SAKHI_LOG_FORMAT"`
	Model            string `env:"SAKHI_MODEL"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	OllamaHost       string `env:"OLLAMA_HOST"`
}

const (
	defaultPort            = "8080"
	defaultOpenRouterModel = "meta-llama/llama-3.1-8b-instruct"
	defaultSiteTitle       = "Sakhi"
)

var errAPIKeyRequired = errors.New("api key is required")

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		serverConfig `yaml:",inline"`
		LLM          map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.serverConfig = rawConfig.serverConfig
	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "openrouter":
		llm = &openRouterConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

// loadConfig reads .env, then the YAML file at path (the user config directory when empty), then the
// environment overrides. A missing file is not an error.
func loadConfig(path string) (config, error) {
	// .env is optional.
	_ = godotenv.Load(".env")

	if path == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return config{}, fmt.Errorf("error getting user config dir: %w", err)
		}
		path = filepath.Join(cfgDir, "sakhi", "config.yaml")
	}

	cfg := config{}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	var e envConfig
	if err := env.Parse(&e); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyEnv(e)

	return cfg, nil
}

func (c *config) applyEnv(e envConfig) {
	if e.Port != "" {
		c.Port = e.Port
	}
	if c.Port == "" {
		c.Port = defaultPort
	}
	if e.StorePath != "" {
		c.StorePath = e.StorePath
	}
	if e.LogLevel != "" {
		c.Log.Level = e.LogLevel
	}
	if e.LogFormat != "" {
		c.Log.Format = e.LogFormat
	}
	if c.LLM == nil {
		c.LLM = &openRouterConfig{BaseLLMConfig: BaseLLMConfig{Provider: "openrouter"}}
	}
	c.LLM.applyEnv(e)
}

func (c config) handlersConfig() handlers.Config {
	return handlers.Config{
		SessionTTL:        c.Sessions.TTL,
		SendRPS:           c.Sessions.SendRPS,
		SendBurst:         c.Sessions.SendBurst,
		MicrophoneTimeout: c.Sessions.MicrophoneTimeout,
		VoiceLang:         c.Sessions.VoiceLang,
	}
}

// store opens the bbolt store when a path is configured, the in-memory store otherwise. The returned
// func closes it.
func (c config) store() (wellness.Store, func() error, error) {
	if c.StorePath == "" {
		return wellness.NewMemoryStore(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(c.StorePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("error creating store directory: %w", err)
	}
	db, err := services.NewBoltDB(c.StorePath)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

// transcriber returns the Google Speech transcriber when speech is configured, nil otherwise.
func (c config) transcriber(ctx context.Context, logger *slog.Logger) (voice.Transcriber, func() error, error) {
	if c.Speech == nil {
		return nil, func() error { return nil }, nil
	}
	gs, err := services.NewGoogleSpeech(ctx, *c.Speech, logger)
	if err != nil {
		return nil, nil, err
	}
	return gs, gs.Close, nil
}

func (c config) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if c.Log.Level != "" {
		if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", c.Log.Format)
	}
}

func (b BaseLLMConfig) params() services.LLMParameters {
	if b.Params == (services.LLMParameters{}) {
		return services.DefaultLLMParameters()
	}
	return b.Params
}

func (b BaseLLMConfig) retry() services.RetryPolicy {
	if b.Retry.Attempts == 0 {
		return services.DefaultRetryPolicy()
	}
	return b.Retry
}

func (b *BaseLLMConfig) applyModel(e envConfig) {
	if e.Model != "" {
		b.Model = e.Model
	}
}

func (o *openRouterConfig) applyEnv(e envConfig) {
	o.applyModel(e)
	if o.APIKey == "" {
		o.APIKey = e.OpenRouterAPIKey
	}
	if o.Model == "" {
		o.Model = defaultOpenRouterModel
	}
}

func (o openRouterConfig) llm(systemPrompt string, logger *slog.Logger) (chat.LLM, error) {
	if o.APIKey == "" {
		return nil, fmt.Errorf("openrouter: %w (set OPENROUTER_API_KEY)", errAPIKeyRequired)
	}
	title := o.Title
	if title == "" {
		title = defaultSiteTitle
	}
	return services.NewOpenRouter(services.OpenRouterConfig{
		APIKey:       o.APIKey,
		Model:        o.Model,
		SystemPrompt: systemPrompt,
		Endpoint:     o.Endpoint,
		Referer:      o.Referer,
		Title:        title,
		Params:       o.params(),
		Retry:        o.retry(),
	}, logger), nil
}

func (o *openAIConfig) applyEnv(e envConfig) {
	o.applyModel(e)
	if o.APIKey == "" {
		o.APIKey = e.OpenAIAPIKey
	}
}

func (o openAIConfig) llm(systemPrompt string, logger *slog.Logger) (chat.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", errAPIKeyRequired)
	}
	return services.NewOpenAI(o.APIKey, o.BaseURL, o.Model, systemPrompt, o.params(), o.retry(), logger), nil
}

func (o *ollamaConfig) applyEnv(e envConfig) {
	o.applyModel(e)
	if o.Host == "" {
		o.Host = e.OllamaHost
	}
}

func (o ollamaConfig) llm(systemPrompt string, logger *slog.Logger) (chat.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return services.NewOllama(o.Host, o.Model, systemPrompt, o.params(), logger)
}

func (a *anthropicConfig) applyEnv(e envConfig) {
	a.applyModel(e)
	if a.APIKey == "" {
		a.APIKey = e.AnthropicAPIKey
	}
}

func (a anthropicConfig) llm(systemPrompt string, logger *slog.Logger) (chat.LLM, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w (set ANTHROPIC_API_KEY)", errAPIKeyRequired)
	}
	return services.NewAnthropic(a.APIKey, a.Model, systemPrompt, a.params(), a.retry(), logger), nil
}
