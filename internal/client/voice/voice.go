// Package voice turns blocking speech engines into the start/stop toggles the
// study session drives: Input captures one spoken explanation, Output reads
// feedback aloud. Both report their transitions through handler callbacks
// and silently drop events from superseded runs.
package voice

import (
	"context"
	"errors"
)

// ErrCapabilityUnavailable is returned when the host has no engine for the
// requested direction.
var ErrCapabilityUnavailable = errors.New("voice capability unavailable")

// DefaultRate is the playback rate of every utterance.
const DefaultRate = 1.0

// Recognizer captures a single utterance and returns its transcript. It must
// return promptly once ctx is canceled.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// Synthesizer plays text aloud and returns when playback ends. started is
// called once audio begins. It must stop and return once ctx is canceled.
type Synthesizer interface {
	Speak(ctx context.Context, text string, rate float64, started func()) error
}

// InputHandler receives Input transitions. Implementations must not call
// back into the Input.
type InputHandler interface {
	ListeningStarted()
	Transcript(text string)
	ListeningStopped()
}

// OutputHandler receives Output transitions. Implementations must not call
// back into the Output.
type OutputHandler interface {
	SpeechStarted()
	SpeechEnded()
}
