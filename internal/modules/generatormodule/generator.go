// Package generatormodule turns a natural-language prompt into scene source
// through a black-box text generator.
package generatormodule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const manimImport = "from manim import *"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("generator returned no text")

// Generator produces scene source text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// GeminiGenerator calls a Gemini model with an API key.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a client for model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate returns normalized source for prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return Normalize(sb.String()), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// Normalize strips a surrounding markdown fence and makes sure the manim
// star import is present.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		// drop the opening fence line, whatever its language tag
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = ""
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	if !strings.Contains(text, manimImport) {
		text = manimImport + "\n\n" + text
	}
	return text
}
