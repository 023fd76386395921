package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atinyakov/feynmind/internal/models"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", srv.Client(), staticToken(token), zaptest.NewLogger(t))
}

func TestClient_AttachesBearerOnlyWhenLoggedIn(t *testing.T) {
	var got []string
	h := func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Write([]byte("ok"))
	}

	_, err := newTestClient(t, h, "").Do(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)
	_, err = newTestClient(t, h, "abc").Do(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer abc"}, got)
}

func TestClient_ForbiddenMeansExpiredOnlyWithToken(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}

	_, err := newTestClient(t, h, "abc").Do(context.Background(), http.MethodPost, "/study/analyze", map[string]string{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = newTestClient(t, h, "").Do(context.Background(), http.MethodPost, "/auth/login", map[string]string{})
	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusForbidden, rf.Status)
	assert.Equal(t, "Forbidden", rf.Reason)
}

func TestClient_FailureReasons(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error field", http.StatusBadRequest, `{"error":"Email is already in use!"}`, "Email is already in use!"},
		{"message field", http.StatusInternalServerError, `{"message":"Upload failed"}`, "Upload failed"},
		{"plain text", http.StatusServiceUnavailable, "tutor not configured\n", "tutor not configured"},
		{"empty body", http.StatusNotFound, "", "Not Found"},
		{"unknown json", http.StatusBadGateway, `{"detail":"x"}`, "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}, "abc")

			_, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
			var rf *RequestFailedError
			require.ErrorAs(t, err, &rf)
			assert.Equal(t, tt.status, rf.Status)
			assert.Equal(t, tt.want, rf.Reason)
			assert.Equal(t, tt.want, Reason(err, "fallback"))
		})
	}
}

func TestReason_Fallback(t *testing.T) {
	assert.Equal(t, "fallback", Reason(errors.New("x"), "fallback"))
	assert.Equal(t, "fallback", Reason(&RequestFailedError{}, "fallback"))
}

func TestClient_CanceledRequestIsAborted(t *testing.T) {
	arrived := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}, "abc")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
	}()

	_, err := c.Analogy(ctx, "Entropy", models.Hard)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, srv.Client(), staticToken("abc"), nil)

	_, err := c.Do(context.Background(), http.MethodGet, "/x", nil)
	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Zero(t, rf.Status)
}

func TestClient_Login(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.LoginRequest{Email: "ada@example.com", Password: "secret1"}, req)
		io.WriteString(w, `{"token":"jwt","user":{"id":"1","name":"Ada","email":"ada@example.com"}}`)
	}, "")

	sess, err := c.Login(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "jwt", sess.Token)
	assert.Equal(t, models.User{ID: "1", Name: "Ada", Email: "ada@example.com"}, sess.User)
}

func TestClient_LoginRejectsIncompleteSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"token":"jwt"}`)
	}, "")
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	var rf *RequestFailedError
	assert.ErrorAs(t, err, &rf)
}

func TestClient_Signup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/signup", r.URL.Path)
		var req models.SignupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ada", req.Name)
		io.WriteString(w, `{"message":"User registered successfully!"}`)
	}, "")
	require.NoError(t, c.Signup(context.Background(), "Ada", "ada@example.com", "secret1"))
}

func TestClient_UploadSendsMultipartFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/documents/upload", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.7", string(data))
		io.WriteString(w, `{"fileName":"1700000000_notes.pdf"}`)
	}, "abc")

	doc, err := c.Upload(context.Background(), "notes.pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "1700000000_notes.pdf", doc.FileName)
}

func TestClient_UploadRequiresFileName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}, "abc")
	_, err := c.Upload(context.Background(), "notes.pdf", strings.NewReader("x"))
	var rf *RequestFailedError
	assert.ErrorAs(t, err, &rf)
}

func TestClient_StudyEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/api/study/analyze":
			assert.Equal(t, "f.pdf", body["fileName"])
			io.WriteString(w, `["Thermodynamics","Entropy"]`)
		case "/api/study/feynman-check":
			assert.Equal(t, map[string]string{"concept": "Entropy", "explanation": "heat disperses", "difficulty": "hard"}, body)
			io.WriteString(w, "Good start, elaborate on...")
		case "/api/study/analogy":
			assert.Equal(t, map[string]string{"concept": "Entropy", "difficulty": "easy"}, body)
			io.WriteString(w, "Like a messy room.")
		default:
			http.NotFound(w, r)
		}
	}, "abc")
	ctx := context.Background()

	topics, err := c.Analyze(ctx, models.Document{FileName: "f.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []models.Topic{"Thermodynamics", "Entropy"}, topics)

	fb, err := c.FeynmanCheck(ctx, "Entropy", "heat disperses", models.Hard)
	require.NoError(t, err)
	assert.Equal(t, "Good start, elaborate on...", fb)

	an, err := c.Analogy(ctx, "Entropy", models.Easy)
	require.NoError(t, err)
	assert.Equal(t, "Like a messy room.", an)
}

func TestClient_AnalyzeMalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}, "abc")
	_, err := c.Analyze(context.Background(), models.Document{FileName: "f"})
	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "malformed response", rf.Reason)
}
