package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.2
)

// ContentGenerator is the part of genai.Models used by GeminiStage.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiStage asks a Gemini model for a category.
type GeminiStage struct {
	models      ContentGenerator
	model       string
	temperature float32
	log         zerolog.Logger
}

// GeminiOption configures a GeminiStage.
type GeminiOption func(*GeminiStage)

// WithModel sets the model name.
func WithModel(model string) GeminiOption {
	return func(g *GeminiStage) {
		if model != "" {
			g.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GeminiOption {
	return func(g *GeminiStage) {
		g.temperature = float32(t)
	}
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(log zerolog.Logger) GeminiOption {
	return func(g *GeminiStage) {
		g.log = log
	}
}

// NewGeminiStage creates a stage backed by the Gemini API.
func NewGeminiStage(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiStage, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return NewGeminiStageWithGenerator(client.Models, opts...), nil
}

// NewGeminiStageWithGenerator creates a stage around an existing generator.
func NewGeminiStageWithGenerator(models ContentGenerator, opts ...GeminiOption) *GeminiStage {
	g := &GeminiStage{
		models:      models,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Stage.
func (g *GeminiStage) Name() string { return "gemini" }

// Classify implements Stage. Every failure, including an unusable answer,
// is reported as a *TransportError.
func (g *GeminiStage) Classify(ctx context.Context, req Request) (*Result, error) {
	req.logf("Requesting classification from model '%s'.", g.model)
	g.log.Debug().Str("model", g.model).Str("transaction_id", req.Transaction.ID).Msg("Requesting classification")

	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SystemInstruction}}},
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(req)), config)
	if err != nil {
		req.logf("Model request failed: %v", err)
		return nil, &TransportError{Stage: g.Name(), Err: err}
	}

	text, err := responseText(resp)
	if err != nil {
		req.logf("Model response did not contain any content.")
		return nil, &TransportError{Stage: g.Name(), Err: err}
	}

	result, err := ParseResponse(text)
	if err != nil {
		req.logf("Failed to parse a valid classification result from the model response.")
		return nil, &TransportError{Stage: g.Name(), Err: err}
	}
	req.logf("Model suggested category '%s' with confidence %.2f.", result.Category, result.Confidence)
	return result, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no content generated")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("no content generated")
	}
	return b.String(), nil
}

var _ Stage = (*GeminiStage)(nil)
