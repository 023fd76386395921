// Package shell is the interactive front end of the study client.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/client/api"
	"github.com/atinyakov/feynmind/internal/client/auth"
	"github.com/atinyakov/feynmind/internal/client/session"
	"github.com/atinyakov/feynmind/internal/client/voice"
	"github.com/atinyakov/feynmind/internal/models"
)

const (
	helpHead = `Commands:
  login | signup          authenticate
  logout                  end the session
  upload <path>           upload a document and extract topics
  topics                  list topics
  study <n> <level>       explain topic n at easy|medium|hard
  explain <text>          replace your explanation`
	helpListen = `
  listen                  start/stop dictation`
	helpTail = `
  submit                  grade your explanation
  analogy                 request an analogy, or stop the current one
  stop                    stop reading aloud
  back                    return to the topic menu
  status                  show the session
  dismiss                 hide the last error
  exit                    quit`
)

// commands lists what exec understands besides help, login, signup and exit.
var commands = map[string]bool{
	"logout": true, "upload": true, "topics": true, "study": true, "explain": true,
	"listen": true, "submit": true, "analogy": true, "stop": true, "back": true,
	"status": true, "dismiss": true,
}

var (
	errorColor    = color.New(color.FgRed, color.Bold)
	noticeColor   = color.New(color.FgYellow)
	infoColor     = color.New(color.FgGreen)
	feedbackColor = color.New(color.FgCyan)
	dimColor      = color.New(color.Faint)
)

// Shell reads commands from in and renders session changes to out.
type Shell struct {
	auth    *auth.Controller
	session *session.Controller
	log     *zap.Logger

	scanner *bufio.Scanner
	outMu   sync.Mutex
	out     io.Writer

	prevMu sync.Mutex
	prev   session.State

	// voiceOff is set once the user was told voice input is unavailable.
	voiceOff bool

	wg sync.WaitGroup
}

// New builds a Shell. Pass Shell.Render as the session's OnChange hook.
func New(in io.Reader, out io.Writer, a *auth.Controller, s *session.Controller, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	return &Shell{
		auth:    a,
		session: s,
		log:     log,
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// Attach sets the controllers after construction, for wiring cycles
// between the shell's renderer and the session.
func (sh *Shell) Attach(a *auth.Controller, s *session.Controller, log *zap.Logger) {
	sh.auth = a
	sh.session = s
	if log != nil {
		sh.log = log
	}
}

func (sh *Shell) printf(c *color.Color, format string, args ...any) {
	sh.outMu.Lock()
	defer sh.outMu.Unlock()
	if c == nil {
		fmt.Fprintf(sh.out, format, args...)
		return
	}
	c.Fprintf(sh.out, format, args...)
}

// Run executes commands until exit, end of input or ctx cancellation.
// Long operations run in the background so that "analogy" can be pressed
// again to cancel.
func (sh *Shell) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		sh.wg.Wait()
	}()

	if ok, err := sh.auth.Restore(); err != nil {
		sh.log.Warn("failed to restore session", zap.Error(err))
	} else if ok {
		sh.printf(infoColor, "Welcome back, %s.\n", sh.session.State().User.Name)
	}

	for {
		if sh.session.State().Notice != "" {
			sh.session.ClearNotice()
		}
		sh.printf(nil, "feynmind> ")
		if !sh.scanner.Scan() {
			return
		}
		args := strings.Fields(strings.TrimSpace(sh.scanner.Text()))
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			sh.printf(nil, "Bye\n")
			return
		}
		sh.exec(ctx, args)
	}
}

func (sh *Shell) exec(ctx context.Context, args []string) {
	cmd, rest := args[0], args[1:]
	st := sh.session.State()

	switch cmd {
	case "help":
		sh.printHelp()
		return
	case "login", "signup":
		sh.authenticate(ctx, cmd)
		return
	}

	if !commands[cmd] {
		sh.printf(nil, "Unknown command. Type 'help' for a list of commands.\n")
		return
	}
	if st.User == nil {
		sh.printf(noticeColor, "Please log in first (login or signup).\n")
		return
	}

	switch cmd {
	case "logout":
		if err := sh.auth.Logout(); err != nil {
			sh.printf(errorColor, "%v\n", err)
		}
	case "upload":
		if len(rest) == 0 {
			sh.printf(nil, "Usage: upload <path>\n")
			return
		}
		sh.upload(ctx, strings.Join(rest, " "))
	case "topics":
		sh.printTopics(st)
	case "study":
		sh.study(st, rest)
	case "explain":
		sh.report(sh.session.SetExplanation(strings.Join(rest, " ")))
	case "listen":
		if sh.voiceOff {
			return
		}
		sh.report(sh.session.ToggleListening())
	case "submit":
		sh.background(func() error { return sh.session.SubmitExplanation(ctx) })
	case "analogy":
		sh.background(func() error { return sh.session.ToggleAnalogy(ctx) })
	case "stop":
		sh.session.StopSpeaking()
	case "back":
		sh.session.Back()
		sh.printTopics(sh.session.State())
	case "status":
		sh.printStatus(st)
	case "dismiss":
		sh.session.DismissError()
	}
}

func (sh *Shell) printHelp() {
	listen := helpListen
	if sh.voiceOff || !sh.session.VoiceInputAvailable() {
		listen = ""
	}
	sh.printf(nil, "%s%s%s\n", helpHead, listen, helpTail)
}

func (sh *Shell) prompt(label string) string {
	sh.printf(nil, "%s: ", label)
	if !sh.scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(sh.scanner.Text())
}

func (sh *Shell) authenticate(ctx context.Context, cmd string) {
	mode := auth.LoginMode
	if cmd == "signup" {
		mode = auth.SignupMode
	}
	sh.auth.SetMode(mode)

	var f auth.Fields
	if mode == auth.SignupMode {
		f.Name = sh.prompt("Full name")
	}
	f.Email = sh.prompt("Email")
	f.Password = sh.prompt("Password")

	err := sh.auth.Submit(ctx, f)
	form := sh.auth.Form()
	switch {
	case err != nil:
		sh.printf(errorColor, "%s\n", form.Message)
	case form.Info:
		sh.printf(infoColor, "%s\n", form.Message)
	default:
		if u := sh.session.State().User; u != nil {
			sh.printf(infoColor, "Logged in as %s.\n", u.Name)
		}
	}
}

func (sh *Shell) upload(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		sh.printf(errorColor, "cannot open %s: %v\n", path, err)
		return
	}
	doc := &session.LocalDocument{Name: filepath.Base(path), Content: f}
	sh.background(func() error {
		defer f.Close()
		return sh.session.Upload(ctx, doc)
	})
}

func (sh *Shell) study(st session.State, rest []string) {
	if len(rest) != 2 {
		sh.printf(nil, "Usage: study <n> <easy|medium|hard>\n")
		return
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil || n < 1 || n > len(st.Topics) {
		sh.printf(errorColor, "No topic %s. Type 'topics' to list them.\n", rest[0])
		return
	}
	d, err := models.ParseDifficulty(rest[1])
	if err != nil {
		sh.printf(errorColor, "%v\n", err)
		return
	}
	if err := sh.session.SelectTopic(st.Topics[n-1], d); err != nil {
		sh.report(err)
		return
	}
	sh.printf(nil, "Explain: %s (%s mode)\n", st.Topics[n-1], strings.ToUpper(string(d)))
}

// background runs op on its own goroutine and reports unexpected errors.
// Pipeline and chat failures already show up through Render.
func (sh *Shell) background(op func() error) {
	sh.wg.Add(1)
	go func() {
		defer sh.wg.Done()
		err := op()
		var rf *api.RequestFailedError
		if err == nil || errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrAborted) ||
			errors.Is(err, context.Canceled) || errors.As(err, &rf) {
			return
		}
		sh.report(err)
	}()
}

func (sh *Shell) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, voice.ErrCapabilityUnavailable):
		sh.voiceOff = true
		sh.printf(noticeColor, "Voice input is not available on this machine (set --stt). Type 'explain <text>' instead.\n")
	case errors.Is(err, session.ErrBusy):
		sh.printf(noticeColor, "Busy: finish or stop the current activity first.\n")
	default:
		sh.printf(errorColor, "%v\n", err)
	}
}

func (sh *Shell) printTopics(st session.State) {
	if len(st.Topics) == 0 {
		sh.printf(nil, "No topics yet. Upload a document first.\n")
		return
	}
	sh.printf(nil, "Select a Topic:\n")
	for i, t := range st.Topics {
		sh.printf(nil, "  %d. %s\n", i+1, t)
	}
}

func (sh *Shell) printStatus(st session.State) {
	sh.printf(nil, "User: %s <%s>\n", st.User.Name, st.User.Email)
	sh.printf(nil, "Pipeline: %s, mode: %s, activity: %s\n", st.Pipeline, st.Mode, st.Activity)
	if st.Error != "" {
		sh.printf(errorColor, "Error: %s\n", st.Error)
	}
	if st.Mode == session.Chat {
		sh.printf(nil, "Topic: %s (%s)\n", st.Chat.Topic, st.Chat.Difficulty)
		sh.printf(nil, "Explanation: %s\n", st.Chat.Explanation)
		if st.Chat.Feedback != "" {
			sh.printf(feedbackColor, "Feedback: %s\n", st.Chat.Feedback)
		}
	}
}

// Render prints what changed since the previous state. It is the session's
// OnChange hook and only writes output.
func (sh *Shell) Render(next session.State) {
	sh.prevMu.Lock()
	prev := sh.prev
	sh.prev = next
	sh.prevMu.Unlock()

	if next.Notice != "" && next.Notice != prev.Notice {
		sh.printf(noticeColor, "\n%s\n", next.Notice)
	}
	if prev.User != nil && next.User == nil && next.Notice == "" {
		sh.printf(nil, "\nLogged out.\n")
	}
	if next.Error != "" && next.Error != prev.Error {
		sh.printf(errorColor, "\n⚠️ %s\n", next.Error)
	}
	if next.Pipeline != prev.Pipeline {
		switch next.Pipeline {
		case session.Uploading:
			sh.printf(dimColor, "\nReading document...\n")
		case session.Analyzing:
			sh.printf(dimColor, "\nExtracting concepts...\n")
		case session.Ready:
			sh.printf(nil, "\n")
			sh.printTopics(next)
		}
	}
	if next.Mode == session.Chat && prev.Mode == session.Chat && next.Chat.Topic == prev.Chat.Topic {
		if next.Chat.Explanation != prev.Chat.Explanation && next.Activity == session.Listening {
			sh.printf(nil, "\nExplanation: %s\n", next.Chat.Explanation)
		}
		if next.Chat.Feedback != "" && next.Chat.Feedback != prev.Chat.Feedback {
			sh.printf(feedbackColor, "\n%s\n", next.Chat.Feedback)
		}
	}
	if next.Activity != prev.Activity {
		switch next.Activity {
		case session.Listening:
			sh.printf(dimColor, "[listening... type 'listen' to stop]\n")
		case session.Grading:
			sh.printf(dimColor, "[analyzing...]\n")
		case session.Speaking:
			sh.printf(dimColor, "[speaking... type 'analogy' or 'stop' to stop]\n")
		}
	}
}
