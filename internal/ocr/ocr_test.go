package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

func testFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name         string
		factor       int
		wantW, wantH int
	}{
		{"grayscale only", 1, 8, 4},
		{"zero factor", 0, 8, 4},
		{"double", 2, 16, 8},
		{"triple", 3, 24, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preprocess(testFrame(), tt.factor)
			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Errorf("Preprocess() size = %v, want %dx%d", got.Bounds().Size(), tt.wantW, tt.wantH)
			}
			if got.GrayAt(0, 0).Y == 0 {
				t.Error("Preprocess() produced a black pixel from a bright frame")
			}
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	if ex, err := New(ctx, Options{}); err != nil {
		t.Errorf("New(default) error: %v", err)
	} else if _, ok := ex.(*Tesseract); !ok {
		t.Errorf("New(default) = %T, want *Tesseract", ex)
	}
	if ex, err := New(ctx, Options{Engine: " Tesseract "}); err != nil {
		t.Errorf("New(mixed case) error: %v", err)
	} else if _, ok := ex.(*Tesseract); !ok {
		t.Errorf("New(mixed case) = %T, want *Tesseract", ex)
	}
	if _, err := New(ctx, Options{Engine: "easyocr"}); err == nil {
		t.Error("New(unknown engine) should fail")
	}
	if _, err := New(ctx, Options{Engine: EngineGemini}); err == nil {
		t.Error("New(gemini without key) should fail")
	}
}

func TestTesseract_ExtractText(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a stand-in binary")
	}
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\ncat > /dev/null\necho 'Brush Tool (B)'\n"
	bin := filepath.Join(dir, "tesseract")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := NewTesseract(bin, 2).ExtractText(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("ExtractText() error: %v", err)
	}
	if strings.TrimSpace(got) != "Brush Tool (B)" {
		t.Errorf("ExtractText() = %q", got)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if want := "stdin stdout --oem 3 --psm 6"; strings.TrimSpace(string(args)) != want {
		t.Errorf("tesseract args = %q, want %q", strings.TrimSpace(string(args)), want)
	}
}

func TestTesseract_MissingBinary(t *testing.T) {
	ex := NewTesseract(filepath.Join(t.TempDir(), "no-such-tesseract"), 1)
	if _, err := ex.ExtractText(context.Background(), testFrame()); err == nil {
		t.Error("ExtractText() with a missing binary should fail")
	}
}

type fakeModels struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGeminiExtractor(t *testing.T) {
	fake := &fakeModels{text: "Layers\nClone Stamp Tool"}
	ex, err := newGeminiExtractor(fake, "", []string{"Clone Stamp Tool"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("newGeminiExtractor() error: %v", err)
	}

	got, err := ex.ExtractText(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("ExtractText() error: %v", err)
	}
	if got != "Layers\nClone Stamp Tool" {
		t.Errorf("ExtractText() = %q", got)
	}
	if fake.model != DefaultGeminiModel {
		t.Errorf("model = %q, want %q", fake.model, DefaultGeminiModel)
	}
	if len(fake.contents) != 1 || fake.contents[0].Parts[0].InlineData == nil {
		t.Fatal("expected the frame as inline data in the first part")
	}
	if mime := fake.contents[0].Parts[0].InlineData.MIMEType; mime != "image/png" {
		t.Errorf("MIME type = %q, want image/png", mime)
	}
	if prompt := fake.contents[0].Parts[1].Text; !strings.Contains(prompt, "- Clone Stamp Tool") {
		t.Errorf("frame prompt does not list the hint:\n%s", prompt)
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"Brush Tool":                   "Brush Tool",
		"  Layers\n":                   "Layers",
		"```\nLayers\nBrush Tool\n```": "Layers\nBrush Tool",
		"```text\nMove Tool\n```\n":    "Move Tool",
		"```\nunterminated":            "unterminated",
		"```":                          "",
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGeminiExtractor_Error(t *testing.T) {
	boom := errors.New("quota exceeded")
	ex, err := newGeminiExtractor(&fakeModels{err: boom}, "gemini-2.5-flash", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("newGeminiExtractor() error: %v", err)
	}
	if _, err := ex.ExtractText(context.Background(), testFrame()); !errors.Is(err, boom) {
		t.Errorf("ExtractText() error = %v, want wrapped %v", err, boom)
	}
}

func TestGeminiExtractor_LogsThroughInjectedLogger(t *testing.T) {
	var fallback, chunk bytes.Buffer
	ex, err := newGeminiExtractor(&fakeModels{text: "Move Tool"}, "", nil, zerolog.New(&fallback).Level(zerolog.TraceLevel))
	if err != nil {
		t.Fatalf("newGeminiExtractor() error: %v", err)
	}

	if _, err := ex.ExtractText(context.Background(), testFrame()); err != nil {
		t.Fatalf("ExtractText() error: %v", err)
	}
	if !strings.Contains(fallback.String(), "Gemini OCR response received") {
		t.Errorf("without a context logger, want the extractor logger to be used; got %q", fallback.String())
	}

	fallback.Reset()
	chunkLogger := zerolog.New(&chunk).Level(zerolog.TraceLevel).With().Str("video", "lesson").Int("chunk", 3).Logger()
	if _, err := ex.ExtractText(chunkLogger.WithContext(context.Background()), testFrame()); err != nil {
		t.Fatalf("ExtractText() error: %v", err)
	}
	for _, want := range []string{`"video":"lesson"`, `"chunk":3`, "Gemini OCR response received"} {
		if !strings.Contains(chunk.String(), want) {
			t.Errorf("context logger output missing %s: %q", want, chunk.String())
		}
	}
	if fallback.Len() != 0 {
		t.Errorf("extractor logger written while a context logger was present: %q", fallback.String())
	}
}
