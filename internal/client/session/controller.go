package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/client/api"
	"github.com/atinyakov/feynmind/internal/client/voice"
	"github.com/atinyakov/feynmind/internal/models"
)

// Fixed feedback texts.
const (
	GradingFailedText = "Error: Could not grade explanation."
	AnalogyFailedText = "Error generating analogy."
	AnalogyMarker     = "💡 ANALOGY: "
	ExpiredNotice     = "Session expired. Please log in again."
)

var (
	// ErrNotLoggedIn rejects backend work before login.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrBusy rejects an operation that would overlap the current activity.
	ErrBusy = errors.New("another activity is in progress")
	// ErrNoDocument rejects an upload without a selected document.
	ErrNoDocument = errors.New("no document selected")
	// ErrNotInChat rejects chat operations from the topic menu.
	ErrNotInChat = errors.New("no topic selected")
	// ErrNotReady rejects topic selection before a catalog exists.
	ErrNotReady = errors.New("no topics available")
	// ErrUnknownTopic rejects a topic outside the catalog.
	ErrUnknownTopic = errors.New("topic is not in the catalog")
)

// Backend is the subset of the study API the controller drives.
type Backend interface {
	Upload(ctx context.Context, name string, content io.Reader) (models.Document, error)
	Analyze(ctx context.Context, doc models.Document) ([]models.Topic, error)
	FeynmanCheck(ctx context.Context, concept, explanation string, d models.Difficulty) (string, error)
	Analogy(ctx context.Context, concept string, d models.Difficulty) (string, error)
}

// Credentials is cleared on logout.
type Credentials interface {
	Clear() error
}

// LocalDocument is a file chosen for upload.
type LocalDocument struct {
	Name    string
	Content io.Reader
}

// Config wires a Controller. Recognizer and Synthesizer may be nil when the
// host has no speech support.
type Config struct {
	Backend     Backend
	Credentials Credentials
	Recognizer  voice.Recognizer
	Synthesizer voice.Synthesizer
	Logger      *zap.Logger
	// OnChange receives every new State. It runs on the goroutine that caused
	// the change and must not call back into the Controller.
	OnChange func(State)
}

// Controller owns the study session.
type Controller struct {
	backend  Backend
	creds    Credentials
	input    *voice.Input
	output   *voice.Output
	log      *zap.Logger
	onChange func(State)

	// seq serialises commands that touch voice and generation counters.
	// Lock order: seq, then the voice locks, then mu.
	seq sync.Mutex

	mu            sync.Mutex
	state         State
	cancelAnalogy context.CancelFunc
}

// New builds a logged-out Controller.
func New(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		backend:  cfg.Backend,
		creds:    cfg.Credentials,
		log:      log,
		onChange: cfg.OnChange,
	}
	events := voiceEvents{c: c}
	c.input = voice.NewInput(cfg.Recognizer, events, log.Named("voice-in"))
	c.output = voice.NewOutput(cfg.Synthesizer, events, log.Named("voice-out"))
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Topics = slices.Clone(s.Topics)
	return s
}

// VoiceInputAvailable reports whether ToggleListening can ever succeed.
func (c *Controller) VoiceInputAvailable() bool { return c.input.Available() }

// VoiceOutputAvailable reports whether feedback will be read aloud.
func (c *Controller) VoiceOutputAvailable() bool { return c.output.Available() }

func (c *Controller) dispatch(ev Event) State {
	c.mu.Lock()
	c.state = Reduce(c.state, ev)
	s := c.state
	c.mu.Unlock()

	c.log.Debug("state changed",
		zap.String("event", fmt.Sprintf("%T", ev)),
		zap.Stringer("pipeline", s.Pipeline),
		zap.Stringer("mode", s.Mode),
		zap.Stringer("activity", s.Activity))
	if c.onChange != nil {
		c.onChange(s)
	}
	return s
}

// Login installs an authenticated user and starts from an empty session.
func (c *Controller) Login(user models.User) {
	c.seq.Lock()
	defer c.seq.Unlock()
	c.silenceLocked()
	c.dispatch(LoggedIn{User: user})
	c.log.Info("logged in", zap.String("email", user.Email))
}

// Logout clears the credentials and returns to the pre-login state. notice,
// when set, is shown once.
func (c *Controller) Logout(notice string) error {
	c.seq.Lock()
	defer c.seq.Unlock()
	return c.logoutLocked(notice)
}

func (c *Controller) logoutLocked(notice string) error {
	c.silenceLocked()
	err := c.creds.Clear()
	c.dispatch(LoggedOut{Notice: notice})
	if err != nil {
		c.log.Error("failed to clear credentials", zap.Error(err))
		return fmt.Errorf("clear credentials: %w", err)
	}
	c.log.Info("logged out", zap.String("notice", notice))
	return nil
}

// expire logs out after a 403 unless the session it belongs to is already
// gone.
func (c *Controller) expire(sessionGen uint64) {
	c.seq.Lock()
	defer c.seq.Unlock()
	if c.State().SessionGen != sessionGen {
		return
	}
	_ = c.logoutLocked(ExpiredNotice)
}

// silenceLocked stops playback, capture and any analogy request. Callers
// hold seq.
func (c *Controller) silenceLocked() {
	c.output.Stop()
	c.input.Stop()
	c.mu.Lock()
	cancel := c.cancelAnalogy
	c.cancelAnalogy = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ClearNotice drops the one-time notice after it was shown.
func (c *Controller) ClearNotice() {
	c.dispatch(NoticeCleared{})
}

// DismissError clears the pipeline error banner.
func (c *Controller) DismissError() {
	c.dispatch(ErrorDismissed{})
}

// Upload sends doc, analyses it and installs the resulting topics. It blocks
// until both steps finish. The previous catalog and chat are discarded
// before the upload starts.
func (c *Controller) Upload(ctx context.Context, doc *LocalDocument) error {
	if doc == nil || doc.Content == nil {
		return ErrNoDocument
	}

	c.seq.Lock()
	s := c.State()
	if s.User == nil {
		c.seq.Unlock()
		return ErrNotLoggedIn
	}
	if s.Pipeline == Uploading || s.Pipeline == Analyzing {
		c.seq.Unlock()
		return ErrBusy
	}
	c.silenceLocked()
	s = c.dispatch(UploadStarted{})
	c.seq.Unlock()

	epoch, gen := s.Epoch, s.SessionGen
	log := c.log.With(zap.String("document", doc.Name))
	log.Info("uploading document")

	stored, err := c.backend.Upload(ctx, doc.Name, doc.Content)
	if err != nil {
		return c.pipelineFailed(epoch, gen, "Upload failed", err, log)
	}
	c.dispatch(UploadSucceeded{Epoch: epoch, Document: stored})
	log.Info("analyzing document", zap.String("file_name", stored.FileName))

	topics, err := c.backend.Analyze(ctx, stored)
	if err != nil {
		return c.pipelineFailed(epoch, gen, "Analysis failed", err, log)
	}
	c.dispatch(AnalyzeSucceeded{Epoch: epoch, Topics: topics})
	log.Info("topics ready", zap.Int("count", len(topics)))
	return nil
}

func (c *Controller) pipelineFailed(epoch, gen uint64, step string, err error, log *zap.Logger) error {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		c.expire(gen)
		return err
	case errors.Is(err, api.ErrAborted):
		c.dispatch(PipelineFailed{Epoch: epoch})
		return err
	}
	reason := step + ": " + api.Reason(err, err.Error())
	log.Warn("pipeline failed", zap.String("step", step), zap.Error(err))
	c.dispatch(PipelineFailed{Epoch: epoch, Reason: reason})
	return fmt.Errorf("%s: %w", step, err)
}

// SelectTopic opens a chat on topic at difficulty d.
func (c *Controller) SelectTopic(topic models.Topic, d models.Difficulty) error {
	c.seq.Lock()
	defer c.seq.Unlock()
	s := c.State()
	if s.Pipeline != Ready {
		return ErrNotReady
	}
	if !slices.Contains(s.Topics, topic) {
		return ErrUnknownTopic
	}
	c.silenceLocked()
	c.dispatch(TopicSelected{Topic: topic, Difficulty: d})
	return nil
}

// Back leaves the chat for the topic menu. Topics are kept.
func (c *Controller) Back() {
	c.seq.Lock()
	defer c.seq.Unlock()
	c.silenceLocked()
	c.dispatch(ReturnedToMenu{})
}

// SetExplanation replaces the explanation text.
func (c *Controller) SetExplanation(text string) error {
	if c.State().Mode != Chat {
		return ErrNotInChat
	}
	c.dispatch(ExplanationSet{Text: text})
	return nil
}

// StopSpeaking silences playback.
func (c *Controller) StopSpeaking() {
	c.output.Stop()
}

// ToggleListening starts or stops voice capture for the explanation.
func (c *Controller) ToggleListening() error {
	c.seq.Lock()
	defer c.seq.Unlock()
	s := c.State()
	if s.Mode != Chat {
		return ErrNotInChat
	}
	if s.Activity == Listening {
		c.input.Stop()
		return nil
	}
	if s.Activity == Grading || s.Activity == GradingAndSpeaking {
		return ErrBusy
	}
	if !c.input.Available() {
		return voice.ErrCapabilityUnavailable
	}
	c.output.Stop()
	return c.input.Start()
}

// SubmitExplanation sends the explanation for grading and reads the
// feedback aloud. It blocks until the backend answers. An empty
// explanation is a no-op.
func (c *Controller) SubmitExplanation(ctx context.Context) error {
	c.seq.Lock()
	s := c.State()
	switch {
	case s.Mode != Chat:
		c.seq.Unlock()
		return ErrNotInChat
	case s.Chat.Explanation == "":
		c.seq.Unlock()
		return nil
	case s.Activity == Listening || s.Activity == Grading || s.Activity == GradingAndSpeaking:
		c.seq.Unlock()
		return ErrBusy
	}
	c.output.Stop()
	s = c.dispatch(RequestStarted{})
	c.seq.Unlock()

	op, gen, chat := s.Op, s.SessionGen, s.Chat
	c.log.Info("grading explanation", zap.String("topic", chat.Topic), zap.String("difficulty", string(chat.Difficulty)))

	feedback, err := c.backend.FeynmanCheck(ctx, chat.Topic, chat.Explanation, chat.Difficulty)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		c.expire(gen)
		return err
	case errors.Is(err, api.ErrAborted):
		c.dispatch(RequestAbandoned{Op: op})
		return nil
	case err != nil:
		c.log.Warn("grading failed", zap.Error(err))
		c.deliver(op, GradingFailedText, "")
		return fmt.Errorf("grade explanation: %w", err)
	}
	c.deliver(op, feedback, feedback)
	return nil
}

// ToggleAnalogy starts an analogy request when idle, or cancels the current
// request and playback when busy. Starting blocks until the backend
// answers or the request is canceled by a second call.
func (c *Controller) ToggleAnalogy(ctx context.Context) error {
	c.seq.Lock()
	s := c.State()
	switch {
	case s.Mode != Chat:
		c.seq.Unlock()
		return ErrNotInChat
	case s.Activity.Busy():
		c.silenceLocked()
		c.dispatch(Canceled{})
		c.seq.Unlock()
		c.log.Info("analogy canceled")
		return nil
	case s.Activity == Listening:
		c.seq.Unlock()
		return ErrBusy
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancelAnalogy = cancel
	c.mu.Unlock()
	s = c.dispatch(RequestStarted{})
	c.seq.Unlock()

	op, gen, chat := s.Op, s.SessionGen, s.Chat
	c.log.Info("requesting analogy", zap.String("topic", chat.Topic), zap.String("difficulty", string(chat.Difficulty)))

	text, err := c.backend.Analogy(reqCtx, chat.Topic, chat.Difficulty)
	switch {
	case errors.Is(err, api.ErrAborted):
		c.dispatch(RequestAbandoned{Op: op})
		return nil
	case errors.Is(err, api.ErrUnauthorized):
		c.expire(gen)
		return err
	case err != nil:
		c.log.Warn("analogy failed", zap.Error(err))
		c.deliver(op, AnalogyFailedText, "")
		return fmt.Errorf("generate analogy: %w", err)
	}
	c.deliver(op, AnalogyMarker+text, text)
	return nil
}

// deliver stores feedback for request op and speaks utterance, unless the
// request was superseded or canceled in the meantime.
func (c *Controller) deliver(op uint64, feedback, utterance string) {
	c.seq.Lock()
	defer c.seq.Unlock()

	c.mu.Lock()
	current := c.state.Op == op
	if current {
		c.cancelAnalogy = nil
	}
	c.mu.Unlock()
	if !current {
		c.log.Debug("dropping result of superseded request", zap.Uint64("op", op))
		return
	}

	c.output.Stop()
	spoken := utterance != "" && c.output.Available()
	c.dispatch(FeedbackReceived{Op: op, Text: feedback, Spoken: spoken})
	if !spoken {
		return
	}
	if err := c.output.Speak(utterance); err != nil {
		c.log.Warn("failed to speak feedback", zap.Error(err))
		c.dispatch(SpeechEnded{})
	}
}

// Close stops voice activity and waits for the engines to return.
func (c *Controller) Close() {
	c.seq.Lock()
	c.silenceLocked()
	c.seq.Unlock()
	c.input.Close()
	c.output.Close()
}

// voiceEvents adapts voice callbacks to controller events.
type voiceEvents struct{ c *Controller }

func (v voiceEvents) ListeningStarted()      { v.c.dispatch(ListeningStarted{}) }
func (v voiceEvents) Transcript(text string) { v.c.dispatch(TranscriptReceived{Text: text}) }
func (v voiceEvents) ListeningStopped()      { v.c.dispatch(ListeningStopped{}) }
func (v voiceEvents) SpeechStarted()         { v.c.dispatch(SpeechStarted{}) }
func (v voiceEvents) SpeechEnded()           { v.c.dispatch(SpeechEnded{}) }
