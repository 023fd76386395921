// Package http provides the HTTP handlers and routing of the study
// backend: account endpoints, document upload and the study endpoints.
package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/models"
	"github.com/atinyakov/feynmind/internal/service"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Signup registers a new account. service.ErrEmailTaken means the
	// email is already registered.
	Signup(ctx context.Context, req models.SignupRequest) error
	// Login returns a session for valid credentials, or
	// service.ErrInvalidCredentials.
	Login(ctx context.Context, req models.LoginRequest) (models.Session, error)
}

// AuthHandler handles HTTP requests for signup and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Log records unexpected failures.
	Log *zap.Logger
}

// Signup handles POST /api/auth/signup with {email, password, name}.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.AuthService.Signup(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "Email is already in use!")
	case err != nil:
		h.Log.Error("signup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to register user")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully!"})
	}
}

// Login handles POST /api/auth/login with {email, password} and answers
// with {token, user}.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.AuthService.Login(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case err != nil:
		h.Log.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to log in")
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}
