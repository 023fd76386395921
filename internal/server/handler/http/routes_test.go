package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/models"
)

type staticVerifier struct{}

func (staticVerifier) Authenticate(token string) (string, error) {
	if token == "good" {
		return "ada@example.com", nil
	}
	return "", errors.New("invalid token")
}

func newTestRouter(study *fakeStudyService) http.Handler {
	auth := &fakeAuthService{session: models.Session{Token: "good", User: models.User{ID: "u-1", Name: "Ada", Email: "ada@example.com"}}}
	return NewRouter(
		&AuthHandler{AuthService: auth, Log: zap.NewNop()},
		&StudyHandler{StudyService: study, Log: zap.NewNop()},
		staticVerifier{},
		zap.NewNop(),
	)
}

func TestRouter(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		token        string
		contentType  string
		body         string
		expectedCode int
	}{
		{name: "login is public", path: "/api/auth/login", contentType: "application/json", body: `{"email":"ada@example.com","password":"secret1"}`, expectedCode: http.StatusOK},
		{name: "signup is public", path: "/api/auth/signup", contentType: "application/json", body: `{"email":"ada@example.com","password":"secret1","name":"Ada"}`, expectedCode: http.StatusOK},
		{name: "study without token", path: "/api/study/analyze", contentType: "application/json", body: `{"fileName":"x"}`, expectedCode: http.StatusForbidden},
		{name: "study with bad token", path: "/api/study/analogy", token: "expired", contentType: "application/json", body: `{"concept":"x"}`, expectedCode: http.StatusForbidden},
		{name: "upload without token", path: "/api/documents/upload", contentType: "multipart/form-data; boundary=x", body: "--x--", expectedCode: http.StatusForbidden},
		{name: "study with token", path: "/api/study/analogy", token: "good", contentType: "application/json", body: `{"concept":"x"}`, expectedCode: http.StatusOK},
		{name: "study rejects form bodies", path: "/api/study/analogy", token: "good", contentType: "text/plain", body: `concept=x`, expectedCode: http.StatusUnsupportedMediaType},
		{name: "unknown route", path: "/api/sync", token: "good", contentType: "application/json", body: `{}`, expectedCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeStudyService{text: "ok"})
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_UploadPassesAuthenticatedOwner(t *testing.T) {
	study := &fakeStudyService{}
	body, ct := multipartBody(t, "file", "notes.txt", []byte("Heat flows from hot to cold."))
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	newTestRouter(study).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if study.owner != "ada@example.com" {
		t.Errorf("owner = %q", study.owner)
	}
	if !strings.HasPrefix(study.contentType, "text/plain") {
		t.Errorf("content type = %q", study.contentType)
	}
}
