package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig holds configuration for a self-hosted synthesis gateway.
type HTTPConfig struct {
	BaseURL string
}

// HTTPSynthesizer posts synthesis requests to a gateway that answers with
// raw MP3 bytes. Any status >= 400 is surfaced as a SynthesisError.
type HTTPSynthesizer struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

func NewHTTPSynthesizer(cfg HTTPConfig) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (s *HTTPSynthesizer) Name() string { return "http-gateway" }

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, req Request) (*Result, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.cfg.BaseURL+"/synthesize", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, &SynthesisError{Backend: s.Name(), Text: req.Text, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &SynthesisError{
			Backend:    s.Name(),
			StatusCode: resp.StatusCode,
			Text:       req.Text,
			Message:    string(body),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	return &Result{Audio: audio, ContentType: "audio/mpeg"}, nil
}
