package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atinyakov/feynmind/internal/client/api"
	"github.com/atinyakov/feynmind/internal/client/credentials"
	"github.com/atinyakov/feynmind/internal/models"
)

type fakeBackend struct {
	login  func(ctx context.Context, email, password string) (models.Session, error)
	signup func(ctx context.Context, name, email, password string) error
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (models.Session, error) {
	return f.login(ctx, email, password)
}

func (f *fakeBackend) Signup(ctx context.Context, name, email, password string) error {
	return f.signup(ctx, name, email, password)
}

type fakeSession struct {
	user    *models.User
	notices []string
}

func (s *fakeSession) Login(u models.User) { s.user = &u }

func (s *fakeSession) Logout(notice string) error {
	s.user = nil
	s.notices = append(s.notices, notice)
	return nil
}

var ada = models.Session{Token: "jwt", User: models.User{ID: "1", Name: "Ada", Email: "ada@example.com"}}

func newController(t *testing.T, b *fakeBackend) (*Controller, *credentials.Store, *fakeSession) {
	t.Helper()
	store := credentials.NewStore(credentials.NewMemoryKV())
	sess := &fakeSession{}
	return NewController(b, store, sess, zaptest.NewLogger(t)), store, sess
}

func TestSubmit_LoginPersistsAndHandsOver(t *testing.T) {
	b := &fakeBackend{login: func(_ context.Context, email, password string) (models.Session, error) {
		assert.Equal(t, "ada@example.com", email)
		assert.Equal(t, "secret1", password)
		return ada, nil
	}}
	c, store, sess := newController(t, b)

	require.NoError(t, c.Submit(context.Background(), Fields{Email: "  ada@example.com ", Password: "secret1"}))

	got, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ada, got)
	require.NotNil(t, sess.user)
	assert.Equal(t, "Ada", sess.user.Name)
	assert.Equal(t, FormState{}, c.Form())
}

func TestSubmit_LoginFailureShowsServerMessage(t *testing.T) {
	b := &fakeBackend{login: func(context.Context, string, string) (models.Session, error) {
		return models.Session{}, &api.RequestFailedError{Status: 401, Reason: "Invalid email or password"}
	}}
	c, store, sess := newController(t, b)

	err := c.Submit(context.Background(), Fields{Email: "ada@example.com", Password: "nope"})
	require.Error(t, err)

	form := c.Form()
	assert.Equal(t, "Invalid email or password", form.Message)
	assert.False(t, form.Info)
	assert.False(t, form.Submitting)
	assert.Nil(t, sess.user)
	assert.Empty(t, store.Token())
}

func TestSubmit_TransportFailureUsesGenericMessage(t *testing.T) {
	b := &fakeBackend{login: func(context.Context, string, string) (models.Session, error) {
		return models.Session{}, errors.New("dial tcp: connection refused")
	}}
	c, _, _ := newController(t, b)

	require.Error(t, c.Submit(context.Background(), Fields{Email: "a@b.c", Password: "x"}))
	assert.Equal(t, GenericFailureMessage, c.Form().Message)
}

func TestSubmit_SignupReturnsToLogin(t *testing.T) {
	var gotName string
	b := &fakeBackend{signup: func(_ context.Context, name, _, _ string) error {
		gotName = name
		return nil
	}}
	c, store, sess := newController(t, b)
	c.ToggleMode()
	require.Equal(t, SignupMode, c.Form().Mode)

	require.NoError(t, c.Submit(context.Background(), Fields{Name: " Ada ", Email: "ada@example.com", Password: "secret1"}))

	assert.Equal(t, "Ada", gotName)
	assert.Equal(t, FormState{Mode: LoginMode, Message: SignupSucceededMessage, Info: true}, c.Form())
	assert.Nil(t, sess.user, "signup must not log in")
	assert.Empty(t, store.Token())
}

func TestSubmit_SignupDuplicateEmail(t *testing.T) {
	b := &fakeBackend{signup: func(context.Context, string, string, string) error {
		return &api.RequestFailedError{Status: 400, Reason: "Email is already in use!"}
	}}
	c, _, _ := newController(t, b)
	c.SetMode(SignupMode)

	require.Error(t, c.Submit(context.Background(), Fields{Name: "Ada", Email: "ada@example.com", Password: "secret1"}))
	form := c.Form()
	assert.Equal(t, SignupMode, form.Mode)
	assert.Equal(t, "Email is already in use!", form.Message)
}

func TestSubmit_RejectsConcurrentSubmit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{login: func(context.Context, string, string) (models.Session, error) {
		close(entered)
		<-release
		return ada, nil
	}}
	c, _, _ := newController(t, b)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), Fields{Email: "a@b.c", Password: "x"}) }()
	<-entered

	assert.True(t, c.Form().Submitting)
	assert.ErrorIs(t, c.Submit(context.Background(), Fields{}), ErrSubmitting)
	c.ToggleMode()
	assert.Equal(t, LoginMode, c.Form().Mode, "mode is locked while submitting")

	close(release)
	require.NoError(t, <-done)
}

func TestToggleModeClearsMessage(t *testing.T) {
	b := &fakeBackend{login: func(context.Context, string, string) (models.Session, error) {
		return models.Session{}, &api.RequestFailedError{Status: 401, Reason: "Invalid email or password"}
	}}
	c, _, _ := newController(t, b)
	_ = c.Submit(context.Background(), Fields{Email: "a@b.c", Password: "x"})

	c.ToggleMode()
	assert.Equal(t, FormState{Mode: SignupMode}, c.Form())
	c.ToggleMode()
	assert.Equal(t, LoginMode, c.Form().Mode)
}

func TestRestore(t *testing.T) {
	c, store, sess := newController(t, &fakeBackend{})

	ok, err := c.Restore()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, sess.user)

	require.NoError(t, store.Save(ada))
	ok, err = c.Restore()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ada.User, *sess.user)
}

func TestLogout(t *testing.T) {
	c, _, sess := newController(t, &fakeBackend{})
	sess.Login(ada.User)

	require.NoError(t, c.Logout())
	assert.Nil(t, sess.user)
	assert.Equal(t, []string{""}, sess.notices)
}
