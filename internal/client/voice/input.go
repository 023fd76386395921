package voice

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Input is the speech-to-text toggle: Idle -> Listening -> Idle.
type Input struct {
	rec     Recognizer
	handler InputHandler
	log     *zap.Logger

	mu        sync.Mutex
	gen       uint64
	listening bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewInput wraps rec. A nil rec makes every Start fail with
// ErrCapabilityUnavailable.
func NewInput(rec Recognizer, handler InputHandler, log *zap.Logger) *Input {
	if log == nil {
		log = zap.NewNop()
	}
	return &Input{rec: rec, handler: handler, log: log}
}

// Available reports whether a recognizer is configured.
func (in *Input) Available() bool {
	return in.rec != nil
}

// Listening reports whether a capture is in progress.
func (in *Input) Listening() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.listening
}

// Start begins capturing one utterance. It is a no-op while already
// listening.
func (in *Input) Start() error {
	if in.rec == nil {
		return ErrCapabilityUnavailable
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.listening {
		return nil
	}
	in.gen++
	gen := in.gen
	ctx, cancel := context.WithCancel(context.Background())
	in.cancel = cancel
	in.listening = true
	in.handler.ListeningStarted()

	in.wg.Add(1)
	go in.run(ctx, gen)
	return nil
}

func (in *Input) run(ctx context.Context, gen uint64) {
	defer in.wg.Done()

	text, err := in.rec.Recognize(ctx)

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.gen != gen {
		// Stop already reported the end of this run.
		return
	}
	in.listening = false
	in.cancel()
	in.cancel = nil

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		in.log.Error("speech recognition failed", zap.Error(err))
	case err == nil && text != "":
		in.handler.Transcript(text)
	}
	in.handler.ListeningStopped()
}

// Stop ends the current capture without a transcript. It is safe to call
// when idle.
func (in *Input) Stop() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.listening {
		return
	}
	in.gen++
	in.cancel()
	in.cancel = nil
	in.listening = false
	in.handler.ListeningStopped()
}

// Close stops any capture and waits for the engine goroutine to return.
func (in *Input) Close() {
	in.Stop()
	in.wg.Wait()
}
