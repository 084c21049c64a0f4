// Package synth turns announcement text into audio via an external
// text-to-speech backend.
package synth

import "context"

// Request holds the parameters for one synthesis call.
type Request struct {
	Text         string  `json:"text"`
	Voice        string  `json:"voiceName,omitempty"`
	SpeakingRate float64 `json:"speakingRate,omitempty"`
	Pitch        float64 `json:"pitch,omitempty"`
}

// Result holds the synthesized audio and its content type.
type Result struct {
	Audio       []byte
	ContentType string // "audio/mpeg"
}

// Synthesizer is the interface for text-to-speech backends.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
	Name() string
}
