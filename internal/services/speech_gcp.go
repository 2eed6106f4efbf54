package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// GoogleSpeech transcribes recorded clips with Google Cloud Speech-to-Text.
type GoogleSpeech struct {
	client *speech.Client
	cfg    GoogleSpeechConfig

	logger *slog.Logger
}

// GoogleSpeechConfig configures GoogleSpeech. Credentials is either a path to a service account file or
// the JSON document itself; empty means application default credentials.
type GoogleSpeechConfig struct {
	Credentials              string   `yaml:"credentials"`
	LanguageCode             string   `yaml:"languageCode"`
	AlternativeLanguageCodes []string `yaml:"alternativeLanguageCodes"`
	SampleRateHertz          int32    `yaml:"sampleRateHertz"`
}

const speechTimeout = time.Minute

// NewGoogleSpeech creates the Speech-to-Text client.
func NewGoogleSpeech(ctx context.Context, cfg GoogleSpeechConfig, logger *slog.Logger) (GoogleSpeech, error) {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "hi-IN"
	}
	if cfg.AlternativeLanguageCodes == nil {
		cfg.AlternativeLanguageCodes = []string{"en-IN"}
	}
	if cfg.SampleRateHertz == 0 {
		cfg.SampleRateHertz = 48000
	}

	client, err := speech.NewClient(ctx, speechClientOptions(cfg.Credentials)...)
	if err != nil {
		return GoogleSpeech{}, fmt.Errorf("speech client: %w", err)
	}

	return GoogleSpeech{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("module", "google-speech")),
	}, nil
}

func speechClientOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

// Transcribe returns the best transcript of a browser-recorded clip. An empty clip yields an empty
// transcript without calling the API.
func (g GoogleSpeech) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, speechTimeout)
	defer cancel()

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechEncoding(mimeType),
			SampleRateHertz:            g.cfg.SampleRateHertz,
			LanguageCode:               g.cfg.LanguageCode,
			AlternativeLanguageCodes:   g.cfg.AlternativeLanguageCodes,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}

	var parts []string
	for _, res := range resp.GetResults() {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " ")
	g.logger.Debug("Transcribed clip", slog.Int("bytes", len(audio)), slog.Int("chars", len(text)))
	return text, nil
}

// Close releases the gRPC connection.
func (g GoogleSpeech) Close() error {
	return g.client.Close()
}

func speechEncoding(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mt, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case strings.Contains(mt, "ogg"):
		return speechpb.RecognitionConfig_OGG_OPUS
	case strings.Contains(mt, "flac"):
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(mt, "wav"), strings.Contains(mt, "l16"):
		return speechpb.RecognitionConfig_LINEAR16
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
