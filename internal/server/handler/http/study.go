package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/middleware"
	"github.com/atinyakov/feynmind/internal/models"
	"github.com/atinyakov/feynmind/internal/service"
)

// MaxUploadBytes bounds the size of an uploaded document.
const MaxUploadBytes = 20 << 20

// StudyService defines the document and tutor operations behind the
// study endpoints.
type StudyService interface {
	Upload(ctx context.Context, owner, name, contentType string, content []byte) (models.Document, error)
	Analyze(ctx context.Context, owner, fileName string) ([]string, error)
	FeynmanCheck(ctx context.Context, req models.FeynmanCheckRequest) (string, error)
	Analogy(ctx context.Context, req models.AnalogyRequest) (string, error)
}

// StudyHandler serves the upload and study endpoints. Every route is
// mounted behind middleware.BearerAuth.
type StudyHandler struct {
	StudyService StudyService
	Log          *zap.Logger
}

// Upload handles POST /api/documents/upload with a multipart "file" field.
func (h *StudyHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(content) > MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}

	owner := middleware.GetUserFromContext(r.Context())
	doc, err := h.StudyService.Upload(r.Context(), owner, header.Filename, contentType, content)
	if err != nil {
		h.Log.Error("upload failed", zap.String("owner", owner), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Analyze handles POST /api/study/analyze and answers with a JSON array
// of topics.
func (h *StudyHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	topics, err := h.StudyService.Analyze(r.Context(), middleware.GetUserFromContext(r.Context()), req.FileName)
	if err != nil {
		h.fail(w, "analyze", err)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, topics)
}

// FeynmanCheck handles POST /api/study/feynman-check and answers with the
// feedback as plain text.
func (h *StudyHandler) FeynmanCheck(w http.ResponseWriter, r *http.Request) {
	var req models.FeynmanCheckRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	feedback, err := h.StudyService.FeynmanCheck(r.Context(), req)
	if err != nil {
		h.fail(w, "feynman-check", err)
		return
	}
	writeText(w, feedback)
}

// Analogy handles POST /api/study/analogy and answers with plain text.
func (h *StudyHandler) Analogy(w http.ResponseWriter, r *http.Request) {
	var req models.AnalogyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	analogy, err := h.StudyService.Analogy(r.Context(), req)
	if err != nil {
		h.fail(w, "analogy", err)
		return
	}
	writeText(w, analogy)
}

func (h *StudyHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrTutorUnavailable):
		writeError(w, http.StatusServiceUnavailable, "tutor not configured")
	case errors.Is(err, service.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	default:
		h.Log.Error("study request failed", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusBadGateway, "The tutor could not answer, please try again")
	}
}
