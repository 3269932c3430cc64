package speech

import "fmt"

const (
	// ReasonNoSpeech: the engine detected no speech in the audio. Expected,
	// user-correctable (silence, muted mic), not a system fault.
	ReasonNoSpeech = "no-speech"
	// ReasonEngineError: quota, malformed request, network, or any other
	// engine-reported failure.
	ReasonEngineError = "engine-error"
)

// EvalError is a classified pronunciation-assessment failure.
type EvalError struct {
	Reason string
	Detail string
}

func (e *EvalError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("evaluate: %s", e.Reason)
	}
	return fmt.Sprintf("evaluate: %s: %s", e.Reason, e.Detail)
}

// SynthError is a speech-synthesis failure. Synthesis has a single failure
// class; no partial audio is ever returned alongside it.
type SynthError struct {
	Detail string
}

func (e *SynthError) Error() string {
	return fmt.Sprintf("synthesize: %s: %s", ReasonEngineError, e.Detail)
}
