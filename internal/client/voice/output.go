package voice

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Output is the text-to-speech toggle: Idle -> Speaking -> Idle. There is a
// single audio channel; Speak preempts whatever is playing.
type Output struct {
	syn     Synthesizer
	handler OutputHandler
	rate    float64
	log     *zap.Logger

	mu     sync.Mutex
	gen    uint64
	active bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutput wraps syn. A nil syn makes every Speak fail with
// ErrCapabilityUnavailable.
func NewOutput(syn Synthesizer, handler OutputHandler, log *zap.Logger) *Output {
	if log == nil {
		log = zap.NewNop()
	}
	return &Output{syn: syn, handler: handler, rate: DefaultRate, log: log}
}

// Available reports whether a synthesizer is configured.
func (out *Output) Available() bool {
	return out.syn != nil
}

// Speak stops the current utterance, if any, and starts reading text.
func (out *Output) Speak(text string) error {
	if out.syn == nil {
		return ErrCapabilityUnavailable
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	out.stopLocked()

	out.gen++
	gen := out.gen
	ctx, cancel := context.WithCancel(context.Background())
	out.cancel = cancel
	out.active = true

	out.wg.Add(1)
	go out.run(ctx, gen, text)
	return nil
}

func (out *Output) run(ctx context.Context, gen uint64, text string) {
	defer out.wg.Done()

	started := func() {
		out.mu.Lock()
		defer out.mu.Unlock()
		if out.gen == gen && out.active {
			out.handler.SpeechStarted()
		}
	}
	err := out.syn.Speak(ctx, text, out.rate, started)

	out.mu.Lock()
	defer out.mu.Unlock()
	if out.gen != gen {
		return
	}
	out.active = false
	out.cancel()
	out.cancel = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		out.log.Warn("speech synthesis failed", zap.Error(err))
	}
	out.handler.SpeechEnded()
}

// Stop silences the current utterance. It is idempotent.
func (out *Output) Stop() {
	out.mu.Lock()
	defer out.mu.Unlock()
	out.stopLocked()
}

func (out *Output) stopLocked() {
	if !out.active {
		return
	}
	out.gen++
	out.cancel()
	out.cancel = nil
	out.active = false
	out.handler.SpeechEnded()
}

// Close stops playback and waits for the engine goroutine to return.
func (out *Output) Close() {
	out.Stop()
	out.wg.Wait()
}
