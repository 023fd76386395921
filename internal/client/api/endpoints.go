package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/atinyakov/feynmind/internal/models"
)

const (
	pathLogin   = "/auth/login"
	pathSignup  = "/auth/signup"
	pathUpload  = "/documents/upload"
	pathAnalyze = "/study/analyze"
	pathFeynman = "/study/feynman-check"
	pathAnalogy = "/study/analogy"
)

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (models.Session, error) {
	resp, err := c.Do(ctx, http.MethodPost, pathLogin, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return models.Session{}, err
	}
	var sess models.Session
	if err := resp.JSON(&sess); err != nil {
		return models.Session{}, err
	}
	if !sess.Valid() {
		return models.Session{}, &RequestFailedError{Status: resp.Status, Reason: "login response is missing token or user"}
	}
	return sess, nil
}

// Signup registers an account. It does not log in.
func (c *Client) Signup(ctx context.Context, name, email, password string) error {
	_, err := c.Do(ctx, http.MethodPost, pathSignup, models.SignupRequest{Email: email, Password: password, Name: name})
	return err
}

// Upload sends a document as the multipart field "file".
func (c *Client) Upload(ctx context.Context, name string, content io.Reader) (models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return models.Document{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return models.Document{}, fmt.Errorf("read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.Document{}, fmt.Errorf("close form: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, pathUpload, &buf, mw.FormDataContentType())
	if err != nil {
		return models.Document{}, err
	}
	var doc models.Document
	if err := resp.JSON(&doc); err != nil {
		return models.Document{}, err
	}
	if doc.FileName == "" {
		return models.Document{}, &RequestFailedError{Status: resp.Status, Reason: "upload response is missing fileName"}
	}
	return doc, nil
}

// Analyze returns the topics of an uploaded document in relevance order.
func (c *Client) Analyze(ctx context.Context, doc models.Document) ([]models.Topic, error) {
	resp, err := c.Do(ctx, http.MethodPost, pathAnalyze, models.AnalyzeRequest{FileName: doc.FileName})
	if err != nil {
		return nil, err
	}
	var topics []models.Topic
	if err := resp.JSON(&topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// FeynmanCheck grades an explanation and returns plain-text feedback.
func (c *Client) FeynmanCheck(ctx context.Context, concept, explanation string, d models.Difficulty) (string, error) {
	resp, err := c.Do(ctx, http.MethodPost, pathFeynman, models.FeynmanCheckRequest{
		Concept:     concept,
		Explanation: explanation,
		Difficulty:  d,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Analogy asks for an illustrative analogy of concept.
func (c *Client) Analogy(ctx context.Context, concept string, d models.Difficulty) (string, error) {
	resp, err := c.Do(ctx, http.MethodPost, pathAnalogy, models.AnalogyRequest{Concept: concept, Difficulty: d})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
