package synth

import "fmt"

// SynthesisError reports a failed backend call. The offending text is kept
// for logging; the pipeline drops the request and moves on.
type SynthesisError struct {
	Backend    string
	StatusCode int
	Text       string
	Message    string
}

func (e *SynthesisError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("synthesis failed on %s (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("synthesis failed on %s: %s", e.Backend, e.Message)
}
