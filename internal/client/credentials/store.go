// Package credentials persists the client's login session in a key/value
// store so it survives restarts.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/feynmind/internal/models"
)

// Keys under which the two halves of a session are stored.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KV is a durable string key/value store.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store loads, saves and clears the session held in a KV.
type Store struct {
	kv KV
}

// NewStore wraps kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted session. ok is false when either half is
// missing or the user record cannot be decoded; such a state counts as
// logged out.
func (s *Store) Load() (sess models.Session, ok bool, err error) {
	token, err := s.kv.Get(TokenKey)
	if errors.Is(err, ErrNotFound) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("read token: %w", err)
	}
	raw, err := s.kv.Get(UserKey)
	if errors.Is(err, ErrNotFound) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("read user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return models.Session{}, false, nil
	}
	sess = models.Session{Token: token, User: user}
	if !sess.Valid() {
		return models.Session{}, false, nil
	}
	return sess, true, nil
}

// Token returns the persisted bearer token, or "" when logged out.
func (s *Store) Token() string {
	sess, ok, err := s.Load()
	if err != nil || !ok {
		return ""
	}
	return sess.Token
}

// Save persists sess. The old token is removed before the new user is
// written, and the new token goes last, so a save interrupted at any step
// never pairs a token with a user it was not issued to.
func (s *Store) Save(sess models.Session) error {
	if !sess.Valid() {
		return errors.New("session must carry both token and user")
	}
	b, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Delete(TokenKey); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if err := s.kv.Set(UserKey, string(b)); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	if err := s.kv.Set(TokenKey, sess.Token); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Clear removes both keys. Missing keys are not an error.
func (s *Store) Clear() error {
	if err := s.kv.Delete(TokenKey); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if err := s.kv.Delete(UserKey); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
