// Package service provides the business logic of the study backend:
// account registration, token issuing and the study operations,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/feynmind/internal/models"
)

// TokenTTL is the lifetime of issued session tokens.
const TokenTTL = 24 * time.Hour

var (
	// ErrEmailTaken is returned by Signup for a registered email.
	ErrEmailTaken = errors.New("email is already in use")
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned by Authenticate for a malformed, forged
	// or expired token.
	ErrInvalidToken = errors.New("invalid token")
)

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// CreateUser stores a new account. A taken email yields models.ErrConflict.
	CreateUser(ctx context.Context, a models.Account) error
	// FindUserByEmail returns the account or models.ErrNotFound.
	FindUserByEmail(ctx context.Context, email string) (*models.Account, error)
}

// AuthService registers users and issues and verifies HS256 session tokens
// whose subject is the user's email.
type AuthService struct {
	repo   UserRepository
	secret []byte
	now    func() time.Time
}

// NewAuthService constructs an AuthService signing tokens with secret.
func NewAuthService(repo UserRepository, secret []byte) *AuthService {
	return &AuthService{repo: repo, secret: secret, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account with a bcrypt-hashed password.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.repo.CreateUser(ctx, models.Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
	})
	if errors.Is(err, models.ErrConflict) {
		return ErrEmailTaken
	}
	return err
}

// Login checks the password and returns a fresh session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (models.Session, error) {
	acc, err := s.repo.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, models.ErrNotFound) {
		return models.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(req.Password)); err != nil {
		return models.Session{}, ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   acc.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return models.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return models.Session{Token: signed, User: acc.Public()}, nil
}

// Authenticate verifies token and returns the email it was issued to.
func (s *AuthService) Authenticate(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
