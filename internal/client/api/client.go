// Package api is the study client's HTTP layer. Every request goes through
// Client.Do, which attaches the bearer token, detects authorization expiry
// and separates user cancellation from failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnauthorized means the backend rejected the session token (HTTP 403).
	// The caller must log out and abandon the workflow.
	ErrUnauthorized = errors.New("session expired")
	// ErrAborted means the caller canceled the request's context. It is not
	// a failure and must not be reported.
	ErrAborted = errors.New("request aborted")
)

// RequestFailedError is any other unsuccessful outcome: a non-2xx status or a
// transport error (Status 0).
type RequestFailedError struct {
	Status int
	Reason string
}

func (e *RequestFailedError) Error() string {
	if e.Status == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (status %d)", e.Reason, e.Status)
}

// Reason extracts the human-readable reason from err, or fallback when err is
// not a RequestFailedError.
func Reason(err error, fallback string) string {
	var rf *RequestFailedError
	if errors.As(err, &rf) && rf.Reason != "" {
		return rf.Reason
	}
	return fallback
}

// TokenSource yields the current bearer token, "" when logged out.
type TokenSource interface {
	Token() string
}

// Client issues requests against the study backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

// NewClient builds a Client. baseURL includes the API prefix, e.g.
// "http://localhost:8080/api". A nil httpClient means http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		log:     log,
	}
}

// Response is a successful (2xx) reply with its body fully read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &RequestFailedError{Status: r.Status, Reason: "malformed response"}
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Do sends a JSON request. body may be nil.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	return c.send(ctx, method, path, rdr, "application/json")
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)

	authenticated := false
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
			authenticated = true
		}
	}

	log := c.log.With(zap.String("method", method), zap.String("path", path), zap.String("request_id", reqID))

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Debug("request aborted")
			return nil, ErrAborted
		}
		log.Warn("request failed", zap.Error(err))
		return nil, &RequestFailedError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Debug("request aborted while reading body")
			return nil, ErrAborted
		}
		return nil, &RequestFailedError{Status: resp.StatusCode, Reason: "read response: " + err.Error()}
	}

	log.Debug("response received", zap.Int("status", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusForbidden && authenticated:
		log.Info("session rejected by backend")
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &RequestFailedError{Status: resp.StatusCode, Reason: reasonFromBody(resp.StatusCode, data)}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// reasonFromBody prefers the backend's {"error": ...} or {"message": ...}
// field, then a short plain-text body, then the status text.
func reasonFromBody(status int, data []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(status)
}
