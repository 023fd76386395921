// Package session is the study client's orchestration core. A Controller
// sequences upload, analysis, topic selection, grading and analogies,
// arbitrates the microphone, the speaker and the network through a single
// Activity value, and resets everything when the backend rejects the
// session.
//
// All state lives in an immutable State value; every transition is computed
// by Reduce from the previous State and an Event.
package session

import "github.com/atinyakov/feynmind/internal/models"

// Pipeline is the document-ingestion stage.
type Pipeline int

const (
	PipelineIdle Pipeline = iota
	Uploading
	Analyzing
	Ready
)

func (p Pipeline) String() string {
	switch p {
	case Uploading:
		return "uploading"
	case Analyzing:
		return "analyzing"
	case Ready:
		return "ready"
	default:
		return "idle"
	}
}

// Mode is the navigation view, independent of the pipeline.
type Mode int

const (
	Menu Mode = iota
	Chat
)

func (m Mode) String() string {
	if m == Chat {
		return "chat"
	}
	return "menu"
}

// Activity arbitrates the microphone, the speaker and chat requests.
type Activity int

const (
	Idle Activity = iota
	Listening
	Grading
	Speaking
	GradingAndSpeaking
)

func (a Activity) String() string {
	switch a {
	case Listening:
		return "listening"
	case Grading:
		return "grading"
	case Speaking:
		return "speaking"
	case GradingAndSpeaking:
		return "grading+speaking"
	default:
		return "idle"
	}
}

// Busy reports whether a request or playback is in progress.
func (a Activity) Busy() bool {
	return a == Grading || a == Speaking || a == GradingAndSpeaking
}

// ChatSession is the topic being studied.
type ChatSession struct {
	Topic       models.Topic
	Difficulty  models.Difficulty
	Explanation string
	Feedback    string
}

// State is a snapshot of the session. Values are never mutated in place.
type State struct {
	// User is nil while logged out.
	User *models.User
	// Notice is a one-time message such as a session-expiry warning.
	Notice string

	Pipeline Pipeline
	// Error is the last pipeline failure, shown until dismissed.
	Error  string
	Topics []models.Topic

	Mode     Mode
	Chat     ChatSession
	Activity Activity

	// Generation counters. Completions carrying a stale value are dropped.
	SessionGen uint64
	Epoch      uint64
	Op         uint64
}

// Event is an input to Reduce.
type Event interface {
	event()
}

type (
	// LoggedIn installs the authenticated user.
	LoggedIn struct{ User models.User }
	// LoggedOut returns to the pre-login state.
	LoggedOut struct{ Notice string }
	// NoticeCleared drops the one-time notice.
	NoticeCleared struct{}

	// UploadStarted invalidates the catalog and the chat before a new pipeline.
	UploadStarted struct{}
	// UploadSucceeded moves the pipeline to analysis.
	UploadSucceeded struct {
		Epoch    uint64
		Document models.Document
	}
	// AnalyzeSucceeded installs a new catalog.
	AnalyzeSucceeded struct {
		Epoch  uint64
		Topics []models.Topic
	}
	// PipelineFailed reverts the pipeline and records the reason.
	PipelineFailed struct {
		Epoch  uint64
		Reason string
	}
	// ErrorDismissed clears the pipeline error.
	ErrorDismissed struct{}

	// TopicSelected opens a fresh chat.
	TopicSelected struct {
		Topic      models.Topic
		Difficulty models.Difficulty
	}
	// ReturnedToMenu discards the chat.
	ReturnedToMenu struct{}
	// ExplanationSet replaces the explanation (typing).
	ExplanationSet struct{ Text string }
	// TranscriptReceived appends recognised speech to the explanation.
	TranscriptReceived struct{ Text string }

	// ListeningStarted and ListeningStopped mirror the microphone.
	ListeningStarted struct{}
	ListeningStopped struct{}

	// RequestStarted begins a grading or analogy request.
	RequestStarted struct{}
	// FeedbackReceived stores the result of the request tagged Op. Spoken
	// means playback of the feedback is being started.
	FeedbackReceived struct {
		Op     uint64
		Text   string
		Spoken bool
	}
	// RequestAbandoned ends request Op without touching feedback.
	RequestAbandoned struct{ Op uint64 }
	// Canceled stops the current request and playback.
	Canceled struct{}

	// SpeechStarted and SpeechEnded mirror the speaker.
	SpeechStarted struct{}
	SpeechEnded   struct{}
)

func (LoggedIn) event()           {}
func (LoggedOut) event()          {}
func (NoticeCleared) event()      {}
func (UploadStarted) event()      {}
func (UploadSucceeded) event()    {}
func (AnalyzeSucceeded) event()   {}
func (PipelineFailed) event()     {}
func (ErrorDismissed) event()     {}
func (TopicSelected) event()      {}
func (ReturnedToMenu) event()     {}
func (ExplanationSet) event()     {}
func (TranscriptReceived) event() {}
func (ListeningStarted) event()   {}
func (ListeningStopped) event()   {}
func (RequestStarted) event()     {}
func (FeedbackReceived) event()   {}
func (RequestAbandoned) event()   {}
func (Canceled) event()           {}
func (SpeechStarted) event()      {}
func (SpeechEnded) event()        {}

// Reduce returns the state that follows s after ev. It has no side effects.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case LoggedIn:
		u := ev.User
		return State{User: &u, SessionGen: s.SessionGen + 1, Epoch: s.Epoch + 1, Op: s.Op + 1}

	case LoggedOut:
		return State{Notice: ev.Notice, SessionGen: s.SessionGen + 1, Epoch: s.Epoch + 1, Op: s.Op + 1}

	case NoticeCleared:
		s.Notice = ""

	case UploadStarted:
		s.Epoch++
		s.Op++
		s.Pipeline = Uploading
		s.Error = ""
		s.Topics = nil
		s.Mode = Menu
		s.Chat = ChatSession{}
		s.Activity = Idle

	case UploadSucceeded:
		if ev.Epoch == s.Epoch && s.Pipeline == Uploading {
			s.Pipeline = Analyzing
		}

	case AnalyzeSucceeded:
		if ev.Epoch == s.Epoch && s.Pipeline == Analyzing {
			s.Pipeline = Ready
			s.Topics = append([]models.Topic(nil), ev.Topics...)
			s.Mode = Menu
		}

	case PipelineFailed:
		if ev.Epoch == s.Epoch && (s.Pipeline == Uploading || s.Pipeline == Analyzing) {
			s.Pipeline = PipelineIdle
			s.Topics = nil
			s.Error = ev.Reason
		}

	case ErrorDismissed:
		s.Error = ""

	case TopicSelected:
		s.Op++
		s.Mode = Chat
		s.Chat = ChatSession{Topic: ev.Topic, Difficulty: ev.Difficulty}
		s.Activity = Idle

	case ReturnedToMenu:
		s.Op++
		s.Mode = Menu
		s.Chat = ChatSession{}
		s.Activity = Idle

	case ExplanationSet:
		if s.Mode == Chat {
			s.Chat.Explanation = ev.Text
		}

	case TranscriptReceived:
		if s.Mode == Chat {
			s.Chat.Explanation = appendTranscript(s.Chat.Explanation, ev.Text)
		}

	case ListeningStarted:
		if s.Activity == Idle {
			s.Activity = Listening
		}

	case ListeningStopped:
		if s.Activity == Listening {
			s.Activity = Idle
		}

	case RequestStarted:
		s.Op++
		s.Activity = Grading

	case FeedbackReceived:
		if ev.Op != s.Op || s.Mode != Chat {
			break
		}
		s.Chat.Feedback = ev.Text
		switch {
		case ev.Spoken:
			s.Activity = Speaking
		case s.Activity == GradingAndSpeaking:
			s.Activity = Speaking
		case s.Activity == Grading:
			s.Activity = Idle
		}

	case RequestAbandoned:
		if ev.Op != s.Op {
			break
		}
		switch s.Activity {
		case Grading:
			s.Activity = Idle
		case GradingAndSpeaking:
			s.Activity = Speaking
		}

	case Canceled:
		s.Op++
		s.Activity = Idle

	case SpeechStarted:
		switch s.Activity {
		case Idle:
			s.Activity = Speaking
		case Grading:
			s.Activity = GradingAndSpeaking
		}

	case SpeechEnded:
		switch s.Activity {
		case Speaking:
			s.Activity = Idle
		case GradingAndSpeaking:
			s.Activity = Grading
		}
	}
	return s
}

// appendTranscript joins transcripts verbatim with a single space.
func appendTranscript(explanation, transcript string) string {
	if transcript == "" {
		return explanation
	}
	if explanation == "" {
		return transcript
	}
	return explanation + " " + transcript
}
