package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strings"
)

// tesseractArgs reads a PNG from stdin and prints text to stdout using the
// LSTM engine (--oem 3) and a single uniform text block layout (--psm 6).
var tesseractArgs = []string{"stdin", "stdout", "--oem", "3", "--psm", "6"}

// Tesseract runs the tesseract CLI once per frame.
type Tesseract struct {
	path    string
	upscale int
}

// NewTesseract returns an extractor for the tesseract binary at path, or on
// PATH when path is empty.
func NewTesseract(path string, upscale int) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{path: path, upscale: upscale}
}

// ExtractText implements TextExtractor.
func (t *Tesseract) ExtractText(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(Preprocess(img, t.upscale))
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, t.path, tesseractArgs...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
