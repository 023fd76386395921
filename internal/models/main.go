// Package models defines the data structures shared by the study client
// and the development backend: users, sessions, documents and the wire
// payloads of the study endpoints.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// User is the identity returned by the backend on login.
type User struct {
	// ID is the backend identifier of the user.
	ID string `json:"id"`
	// Name is the display name chosen at signup.
	Name string `json:"name"`
	// Email is the login of the user.
	Email string `json:"email"`
}

// Session pairs a bearer token with the user it was issued to.
// Both fields are set or neither is.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Valid reports whether both halves of the session are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.User.Email != ""
}

// Document identifies an uploaded file on the backend.
type Document struct {
	// FileName is the server-side name returned by the upload endpoint.
	FileName string `json:"fileName"`
}

// Topic is a concept extracted from a document.
type Topic = string

// Difficulty tunes how strictly the backend grades and explains.
type Difficulty string

const (
	// Easy asks for a gentle tutor and simple analogies.
	Easy Difficulty = "easy"
	// Medium is the default persona.
	Medium Difficulty = "medium"
	// Hard asks for a strict, Socratic tutor.
	Hard Difficulty = "hard"
)

// ParseDifficulty accepts easy, medium or hard in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Easy, Medium, Hard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

// AnalyzeRequest is the body of POST /study/analyze.
type AnalyzeRequest struct {
	FileName string `json:"fileName" validate:"required"`
}

// FeynmanCheckRequest is the body of POST /study/feynman-check.
type FeynmanCheckRequest struct {
	Concept     string     `json:"concept" validate:"required"`
	Explanation string     `json:"explanation" validate:"required"`
	Difficulty  Difficulty `json:"difficulty"`
}

// AnalogyRequest is the body of POST /study/analogy.
type AnalogyRequest struct {
	Concept    string     `json:"concept" validate:"required"`
	Difficulty Difficulty `json:"difficulty"`
}

// Account is the server-side user record.
type Account struct {
	// ID is the unique identifier for the user.
	ID string
	// Name is the display name.
	Name string
	// Email is the login and the subject of issued tokens.
	Email string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
}

// Public strips the credentials from an account.
func (a Account) Public() User {
	return User{ID: a.ID, Name: a.Name, Email: a.Email}
}

// StoredDocument is an uploaded study file kept by the backend.
type StoredDocument struct {
	FileName     string
	Owner        string
	OriginalName string
	ContentType  string
	Content      []byte
	UploadedAt   int64
}

// Storage errors shared by the repositories and the services above them.
var (
	// ErrNotFound means no row matched.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a unique constraint rejected the write.
	ErrConflict = errors.New("already exists")
)
