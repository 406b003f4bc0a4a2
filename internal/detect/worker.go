package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/ocr"
	"github.com/fpang/tooltrace/internal/timeline"
)

// SampleSource yields samples in temporal order and io.EOF at the end.
// *filehandler.Sampler implements it.
type SampleSource interface {
	Next() (filehandler.Sample, error)
	Close() error
}

// OpenFunc opens a sample source for one chunk.
type OpenFunc func(ctx context.Context, a ChunkAssignment) (SampleSource, error)

// FFmpegOpener opens chunks with an ffmpeg-backed filehandler.Sampler.
func FFmpegOpener(tools filehandler.Tools, logger zerolog.Logger) OpenFunc {
	return func(ctx context.Context, a ChunkAssignment) (SampleSource, error) {
		src := &filehandler.VideoSource{
			Name:       a.VideoName,
			Path:       a.VideoPath,
			FPS:        a.FPS,
			FrameRate:  a.FrameRate,
			FrameCount: a.EndFrame,
		}
		return filehandler.OpenSampler(ctx, tools, src, a.StartFrame, a.EndFrame, logger)
	}
}

// ChunkResult is what one worker produced. When Err is set the chunk stopped
// early and Intervals holds only what was emitted before the failure; the
// interval that was active at that point is dropped, not closed.
type ChunkResult struct {
	Index     int
	Intervals []timeline.UsageInterval
	Samples   int
	Err       error
	Duration  time.Duration
}

// Worker runs the per-chunk detection loop: sample, recognize, match, track.
type Worker struct {
	Extractor ocr.TextExtractor
	Open      OpenFunc
	// Timeout bounds one chunk. Zero means no deadline.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Run processes one chunk. It never returns an error or panics: failures are
// logged and recorded in the result together with the partial intervals.
func (w *Worker) Run(ctx context.Context, a ChunkAssignment) (res ChunkResult) {
	started := time.Now()
	res.Index = a.Index
	logger := w.Logger.With().
		Str("video", a.VideoName).
		Int("chunk", a.Index).
		Int("start_frame", a.StartFrame).
		Int("end_frame", a.EndFrame).
		Logger()
	ctx = logger.WithContext(ctx)
	tracker := timeline.NewTracker(a.VideoName)

	fail := func(err error) {
		res.Err = err
		res.Intervals = tracker.Intervals()
		res.Duration = time.Since(started)
		logger.Error().
			Err(err).
			Int("samples", res.Samples).
			Int("intervals_kept", len(res.Intervals)).
			Msg("Chunk failed, keeping partial intervals")
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Debug().Bytes("stack", debug.Stack()).Msg("Recovered chunk panic")
			fail(fmt.Errorf("chunk %d panicked: %v", a.Index, r))
		}
	}()

	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	src, err := w.Open(ctx, a)
	if err != nil {
		fail(fmt.Errorf("failed to open chunk: %w", err))
		return res
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Debug().Err(err).Msg("Sample source close reported an error")
		}
	}()

	logger.Debug().Msg("Chunk started")

	for {
		sample, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(fmt.Errorf("failed to read sample: %w", err))
			return res
		}

		text, err := w.Extractor.ExtractText(ctx, sample.Image)
		if err != nil {
			fail(fmt.Errorf("text extraction failed at frame %d: %w", sample.FrameIndex, err))
			return res
		}
		res.Samples++

		detected := a.Vocabulary.Match(text)
		if !detected.IsNone() && detected != tracker.Active() {
			logger.Trace().
				Str("tool", string(detected)).
				Str("timestamp", sample.Timestamp.String()).
				Msg("Tool change")
		}
		tracker.Observe(sample.Timestamp, detected)
	}

	// A cancelled ffmpeg looks like a short stream; do not close the last
	// interval on data that was never read.
	if err := ctx.Err(); err != nil {
		fail(fmt.Errorf("chunk interrupted: %w", err))
		return res
	}

	res.Intervals = tracker.Finish()
	res.Duration = time.Since(started)
	logger.Debug().
		Int("samples", res.Samples).
		Int("intervals", len(res.Intervals)).
		Dur("duration", res.Duration).
		Msg("Chunk complete")
	return res
}
