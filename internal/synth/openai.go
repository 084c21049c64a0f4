package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the OpenAI speech backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional override
	Model   string // default: "tts-1"
}

// OpenAISynthesizer synthesizes speech through OpenAI's speech endpoint.
type OpenAISynthesizer struct {
	cfg    OpenAIConfig
	client *openai.Client
}

func NewOpenAISynthesizer(cfg OpenAIConfig) *OpenAISynthesizer {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAISynthesizer{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (o *OpenAISynthesizer) Name() string { return "openai-speech" }

// speechVoice maps a configured voice onto one the backend accepts. Facility
// configs often carry locale voice names meant for a self-hosted gateway;
// anything the speech endpoint does not know falls back to the default voice
// instead of failing every announcement.
func speechVoice(name string) openai.SpeechVoice {
	switch v := openai.SpeechVoice(name); v {
	case openai.VoiceAlloy, openai.VoiceAsh, openai.VoiceBallad, openai.VoiceCoral,
		openai.VoiceEcho, openai.VoiceFable, openai.VoiceNova, openai.VoiceOnyx,
		openai.VoiceShimmer, openai.VoiceVerse:
		return v
	default:
		return openai.VoiceAlloy
	}
}

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) (*Result, error) {
	voice := speechVoice(req.Voice)

	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.cfg.Model),
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}
	if req.SpeakingRate > 0 {
		speechReq.Speed = req.SpeakingRate
	}

	resp, err := o.client.CreateSpeech(ctx, speechReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &SynthesisError{
				Backend:    o.Name(),
				StatusCode: apiErr.HTTPStatusCode,
				Text:       req.Text,
				Message:    apiErr.Message,
			}
		}
		return nil, &SynthesisError{Backend: o.Name(), Text: req.Text, Message: err.Error()}
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return &Result{Audio: audio, ContentType: "audio/mpeg"}, nil
}
