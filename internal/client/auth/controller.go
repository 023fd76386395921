// Package auth drives the login and signup form and hands authenticated
// users to the study session.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/client/api"
	"github.com/atinyakov/feynmind/internal/models"
)

// Messages shown on the form.
const (
	SignupSucceededMessage = "Account created! Please log in."
	GenericFailureMessage  = "Something went wrong"
)

// ErrSubmitting rejects a second submit while one is in flight.
var ErrSubmitting = errors.New("already submitting")

// Mode selects the endpoint a submit goes to.
type Mode int

const (
	LoginMode Mode = iota
	SignupMode
)

func (m Mode) String() string {
	if m == SignupMode {
		return "signup"
	}
	return "login"
}

// Fields are the form inputs. Name is only used for signup.
type Fields struct {
	Name     string
	Email    string
	Password string
}

// FormState is what the form renders.
type FormState struct {
	Mode       Mode
	Submitting bool
	// Message is either an error or, when Info is set, an informational note.
	Message string
	Info    bool
}

// Backend is the part of the API used by the form.
type Backend interface {
	Login(ctx context.Context, email, password string) (models.Session, error)
	Signup(ctx context.Context, name, email, password string) error
}

// SessionStore persists a successful login.
type SessionStore interface {
	Load() (models.Session, bool, error)
	Save(models.Session) error
}

// Session is the study session the user is handed to.
type Session interface {
	Login(models.User)
	Logout(notice string) error
}

// Controller owns the anonymous form and the login lifecycle.
type Controller struct {
	backend Backend
	store   SessionStore
	session Session
	log     *zap.Logger

	mu   sync.Mutex
	form FormState
}

// NewController builds a Controller in login mode.
func NewController(backend Backend, store SessionStore, session Session, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{backend: backend, store: store, session: session, log: log}
}

// Form returns the current form state.
func (c *Controller) Form() FormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// ToggleMode switches between login and signup and clears the message.
func (c *Controller) ToggleMode() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form.Submitting {
		return
	}
	if c.form.Mode == LoginMode {
		c.form.Mode = SignupMode
	} else {
		c.form.Mode = LoginMode
	}
	c.form.Message = ""
	c.form.Info = false
}

// SetMode selects a mode explicitly.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.form.Submitting || c.form.Mode == m {
		return
	}
	c.form = FormState{Mode: m}
}

// Restore logs in from persisted credentials. It reports whether a session
// was found.
func (c *Controller) Restore() (bool, error) {
	sess, ok, err := c.store.Load()
	if err != nil || !ok {
		return false, err
	}
	c.session.Login(sess.User)
	c.log.Info("restored session", zap.String("email", sess.User.Email))
	return true, nil
}

// Submit sends the form. A login hands the user to the session; a signup
// switches the form back to login mode with an informational message.
// Failures are reported on the form and returned.
func (c *Controller) Submit(ctx context.Context, f Fields) error {
	c.mu.Lock()
	if c.form.Submitting {
		c.mu.Unlock()
		return ErrSubmitting
	}
	mode := c.form.Mode
	c.form.Submitting = true
	c.form.Message = ""
	c.form.Info = false
	c.mu.Unlock()

	email := strings.TrimSpace(f.Email)
	var err error
	if mode == LoginMode {
		err = c.login(ctx, email, f.Password)
	} else {
		err = c.backend.Signup(ctx, strings.TrimSpace(f.Name), email, f.Password)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Submitting = false
	switch {
	case err != nil:
		c.form.Message = api.Reason(err, GenericFailureMessage)
		c.log.Info("auth form rejected", zap.Stringer("mode", mode), zap.Error(err))
	case mode == SignupMode:
		c.form.Mode = LoginMode
		c.form.Message = SignupSucceededMessage
		c.form.Info = true
		c.log.Info("account created", zap.String("email", email))
	default:
		c.form = FormState{}
	}
	return err
}

func (c *Controller) login(ctx context.Context, email, password string) error {
	sess, err := c.backend.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := c.store.Save(sess); err != nil {
		return err
	}
	c.session.Login(sess.User)
	return nil
}

// Logout ends the session and clears the stored credentials.
func (c *Controller) Logout() error {
	c.mu.Lock()
	c.form = FormState{}
	c.mu.Unlock()
	return c.session.Logout("")
}
