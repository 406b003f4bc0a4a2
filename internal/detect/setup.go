package detect

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/ocr"
	"github.com/fpang/tooltrace/internal/vocabulary"
)

// Options configures New.
type Options struct {
	Workers      int
	ChunkTimeout time.Duration
	Tools        filehandler.Tools
	OCR          ocr.Options
	// Vocabulary defaults to vocabulary.Photoshop().
	Vocabulary *vocabulary.Vocabulary
	Metrics    io.Writer
	Logger     zerolog.Logger
}

// New wires a Pipeline backed by ffprobe, ffmpeg and the configured OCR engine.
// It fails early when the ffmpeg tools cannot be found.
func New(ctx context.Context, opts Options) (*Pipeline, error) {
	if err := opts.Tools.Check(opts.Logger); err != nil {
		return nil, err
	}
	vocab := opts.Vocabulary
	if vocab == nil {
		vocab = vocabulary.Photoshop()
	}
	ocrOpts := opts.OCR
	ocrOpts.Logger = opts.Logger
	if ocrOpts.Hints == nil {
		ocrOpts.Hints = vocab.Names()
	}
	extractor, err := ocr.New(ctx, ocrOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OCR: %w", err)
	}
	tools := opts.Tools
	return &Pipeline{
		Workers:    opts.Workers,
		Vocabulary: vocab,
		Probe: func(ctx context.Context, path string) (*filehandler.VideoSource, error) {
			return filehandler.Probe(ctx, tools, path, opts.Logger)
		},
		Worker: &Worker{
			Extractor: extractor,
			Open:      FFmpegOpener(tools, opts.Logger),
			Timeout:   opts.ChunkTimeout,
			Logger:    opts.Logger,
		},
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
		OCREngine: opts.OCR.Engine,
	}, nil
}
