// Package tutor talks to the language model behind the study endpoints:
// topic extraction, grading of explanations and analogies.
package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/atinyakov/feynmind/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("tutor: empty model response")

// generator is the subset of *genai.Models the tutor calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements the tutor on top of the Gemini API.
type Gemini struct {
	models generator
	model  string
	log    *zap.Logger
}

// NewGemini connects to Gemini with apiKey.
func NewGemini(ctx context.Context, apiKey, model string, log *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGemini(client.Models, model, log), nil
}

func newGemini(g generator, model string, log *zap.Logger) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gemini{models: g, model: model, log: log}
}

// ExtractTopics returns the main concepts of a document. PDFs are attached
// as-is; anything else is read as text.
func (g *Gemini) ExtractTopics(ctx context.Context, contentType string, content []byte) ([]string, error) {
	var c *genai.Content
	if mt, _, _ := mime.ParseMediaType(contentType); mt == "application/pdf" {
		c = genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(content, mt),
			genai.NewPartFromText(topicsInstruction + " Use the attached document as the text."),
		}, genai.RoleUser)
	} else {
		text := string(content)
		if !utf8.ValidString(text) {
			text = strings.ToValidUTF8(text, "")
		}
		c = genai.NewContentFromText(topicsPrompt(text), genai.RoleUser)
	}

	out, err := g.generate(ctx, c)
	if err != nil {
		return nil, err
	}
	topics, err := parseTopics(out)
	if err != nil {
		g.log.Warn("unparseable topic list", zap.String("response", out), zap.Error(err))
		return nil, err
	}
	return topics, nil
}

// Grade gives feedback on explanation in the persona chosen by d.
func (g *Gemini) Grade(ctx context.Context, concept, explanation string, d models.Difficulty) (string, error) {
	return g.generate(ctx, genai.NewContentFromText(gradingPrompt(concept, explanation, d), genai.RoleUser))
}

// Analogy explains concept by analogy at the level chosen by d.
func (g *Gemini) Analogy(ctx context.Context, concept string, d models.Difficulty) (string, error) {
	return g.generate(ctx, genai.NewContentFromText(analogyPrompt(concept, d), genai.RoleUser))
}

func (g *Gemini) generate(ctx context.Context, c *genai.Content) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, []*genai.Content{c}, nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := cleanResponse(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// cleanResponse strips the markdown code fences models like to add.
func cleanResponse(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func parseTopics(s string) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(cleanResponse(s)), &raw); err != nil {
		return nil, fmt.Errorf("tutor: topics are not a JSON list of strings: %w", err)
	}
	topics := raw[:0]
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics, nil
}
