// Package ocr extracts visible text from video frames. The text is a
// best-effort transcription; callers only search it for tool names, so an
// empty string is a valid answer.
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/rs/zerolog"
)

// TextExtractor turns an image into whatever text it can read.
// Implementations must be safe for concurrent use by multiple workers, and
// log through the logger attached to ctx when there is one.
type TextExtractor interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// ExtractorFunc adapts a function to TextExtractor.
type ExtractorFunc func(ctx context.Context, img image.Image) (string, error)

// ExtractText calls f.
func (f ExtractorFunc) ExtractText(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}

// Engine names accepted by New.
const (
	EngineTesseract = "tesseract"
	EngineGemini    = "gemini"
)

// Options selects and configures an engine.
type Options struct {
	Engine        string
	TesseractPath string
	GeminiAPIKey  string
	GeminiModel   string
	// UpscaleFactor enlarges frames before recognition; values below 2 skip
	// the resize but still convert to grayscale.
	UpscaleFactor int
	// Hints are tool names the Gemini prompt asks the model to spell exactly.
	Hints []string
	// Logger is used when a call's context carries no logger.
	Logger zerolog.Logger
}

// NormalizeEngine lowercases and trims an engine name; empty means tesseract.
func NormalizeEngine(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return EngineTesseract
	}
	return name
}

// New builds the extractor named by opts.Engine (default tesseract).
func New(ctx context.Context, opts Options) (TextExtractor, error) {
	switch NormalizeEngine(opts.Engine) {
	case EngineTesseract:
		return NewTesseract(opts.TesseractPath, opts.UpscaleFactor), nil
	case EngineGemini:
		return NewGeminiExtractor(ctx, opts.GeminiAPIKey, opts.GeminiModel, opts.Hints, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown OCR engine %q (want %s or %s)", opts.Engine, EngineTesseract, EngineGemini)
	}
}

// ctxLogger returns the logger attached to ctx, or fallback.
func ctxLogger(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
