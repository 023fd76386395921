package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/models"
)

// TopicCacheTTL is how long extracted topics are reused per document.
const TopicCacheTTL = time.Hour

var (
	// ErrDocumentNotFound means the file does not exist or belongs to
	// someone else.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrTutorUnavailable means the server runs without a model.
	ErrTutorUnavailable = errors.New("tutor not configured")
)

// DocumentRepository defines the persistence operations
// required by the study service.
type DocumentRepository interface {
	SaveDocument(ctx context.Context, d models.StoredDocument) error
	GetDocument(ctx context.Context, owner, fileName string) (*models.StoredDocument, error)
}

// Tutor is the language model behind the study operations.
type Tutor interface {
	ExtractTopics(ctx context.Context, contentType string, content []byte) ([]string, error)
	Grade(ctx context.Context, concept, explanation string, d models.Difficulty) (string, error)
	Analogy(ctx context.Context, concept string, d models.Difficulty) (string, error)
}

// StudyService stores uploads and runs the tutor over them.
type StudyService struct {
	docs   DocumentRepository
	tutor  Tutor
	topics *cache.Cache
	now    func() time.Time
	log    *zap.Logger
}

// NewStudyService constructs a StudyService. tutor may be nil, in which
// case every tutor operation fails with ErrTutorUnavailable.
func NewStudyService(docs DocumentRepository, tutor Tutor, log *zap.Logger) *StudyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StudyService{
		docs:   docs,
		tutor:  tutor,
		topics: cache.New(TopicCacheTTL, 10*time.Minute),
		now:    time.Now,
		log:    log,
	}
}

// Upload stores content for owner under a generated file name.
func (s *StudyService) Upload(ctx context.Context, owner, name, contentType string, content []byte) (models.Document, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "document"
	}
	doc := models.StoredDocument{
		FileName:     uuid.NewString() + "_" + base,
		Owner:        owner,
		OriginalName: base,
		ContentType:  contentType,
		Content:      content,
		UploadedAt:   s.now().Unix(),
	}
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return models.Document{}, fmt.Errorf("save document: %w", err)
	}
	s.log.Info("document stored",
		zap.String("owner", owner),
		zap.String("file_name", doc.FileName),
		zap.Int("size", len(content)))
	return models.Document{FileName: doc.FileName}, nil
}

// Analyze returns the topics of one of owner's documents.
func (s *StudyService) Analyze(ctx context.Context, owner, fileName string) ([]string, error) {
	if s.tutor == nil {
		return nil, ErrTutorUnavailable
	}
	key := owner + "/" + fileName
	if v, ok := s.topics.Get(key); ok {
		return slices.Clone(v.([]string)), nil
	}

	doc, err := s.docs.GetDocument(ctx, owner, fileName)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}

	topics, err := s.tutor.ExtractTopics(ctx, doc.ContentType, doc.Content)
	if err != nil {
		return nil, fmt.Errorf("extract topics: %w", err)
	}
	s.topics.Set(key, slices.Clone(topics), cache.DefaultExpiration)
	return topics, nil
}

// FeynmanCheck grades the explanation of a concept.
func (s *StudyService) FeynmanCheck(ctx context.Context, req models.FeynmanCheckRequest) (string, error) {
	if s.tutor == nil {
		return "", ErrTutorUnavailable
	}
	return s.tutor.Grade(ctx, req.Concept, req.Explanation, req.Difficulty)
}

// Analogy explains a concept by analogy.
func (s *StudyService) Analogy(ctx context.Context, req models.AnalogyRequest) (string, error) {
	if s.tutor == nil {
		return "", ErrTutorUnavailable
	}
	return s.tutor.Analogy(ctx, req.Concept, req.Difficulty)
}
