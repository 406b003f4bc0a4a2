package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/fpang/tooltrace/internal/assets"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash-lite"

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor transcribes frames with a Gemini vision model.
type GeminiExtractor struct {
	models contentGenerator
	model  string
	prompt string
	logger zerolog.Logger
}

// NewGeminiExtractor creates a Gemini API client for apiKey. hints are tool
// names listed in the prompt so the model spells them exactly.
func NewGeminiExtractor(ctx context.Context, apiKey, model string, hints []string, logger zerolog.Logger) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini OCR engine requires GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiExtractor(client.Models, model, hints, logger)
}

func newGeminiExtractor(models contentGenerator, model string, hints []string, logger zerolog.Logger) (*GeminiExtractor, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	prompt, err := assets.RenderOCRFramePrompt(hints)
	if err != nil {
		return nil, err
	}
	return &GeminiExtractor{models: models, model: model, prompt: prompt, logger: logger}, nil
}

// ExtractText implements TextExtractor.
func (g *GeminiExtractor) ExtractText(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(Preprocess(img, 1))
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.OCRSystemPrompt}},
		},
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}},
			{Text: g.prompt},
		},
	}}

	callStart := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("received empty response from Gemini API")
	}

	text := stripFences(resp.Text())
	ctxLogger(ctx, g.logger).Trace().
		Str("model", g.model).
		Int("response_length", len(text)).
		Dur("duration", time.Since(callStart)).
		Msg("Gemini OCR response received")
	return text, nil
}

// stripFences removes a ``` ... ``` wrapper the model sometimes adds despite
// the instructions. Text without fences is returned trimmed.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return ""
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
