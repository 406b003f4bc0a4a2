package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/metrics"
	"github.com/fpang/tooltrace/internal/timeline"
	"github.com/fpang/tooltrace/internal/vocabulary"
)

// ErrEmptyResult means a run produced no intervals at all. It is a warning:
// callers skip writing the dataset.
var ErrEmptyResult = errors.New("no tool usage intervals detected")

// ProbeFunc reads a video's frame rate and frame count.
type ProbeFunc func(ctx context.Context, path string) (*filehandler.VideoSource, error)

// Pipeline runs detection over videos. Each video is split into Workers
// chunks processed concurrently; videos are processed one after another.
type Pipeline struct {
	Workers    int
	Vocabulary *vocabulary.Vocabulary
	Probe      ProbeFunc
	Worker     *Worker
	Logger     zerolog.Logger

	// Metrics receives one EMF record per video. Nil disables metrics.
	Metrics   io.Writer
	OCREngine string

	// OnVideo, when set, is called by ProcessPaths after each video with
	// the result and the error that ProcessVideo returned.
	OnVideo func(VideoResult, error)
}

// VideoResult is the aggregated outcome of one video.
type VideoResult struct {
	Video        string
	Intervals    []timeline.UsageInterval
	Chunks       int
	FailedChunks int
	Samples      int
	Latency      time.Duration
}

func (p *Pipeline) workers() int {
	if p.Workers < 1 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// ProcessVideo probes path, runs one worker per chunk and concatenates
// their intervals in chunk order. Chunk failures are absorbed; only a probe
// failure (wrapping filehandler.ErrUnopenable) or cancellation is returned.
func (p *Pipeline) ProcessVideo(ctx context.Context, path string) (VideoResult, error) {
	started := time.Now()
	name := filehandler.VideoName(path)
	logger := p.Logger.With().Str("video", name).Logger()

	src, err := p.Probe(ctx, path)
	if err != nil {
		return VideoResult{Video: name}, fmt.Errorf("failed to probe %s: %w", name, err)
	}

	assignments := Assign(src, p.workers(), p.Vocabulary)
	logger.Info().
		Int("fps", src.FPS).
		Int("frame_count", src.FrameCount).
		Int("chunks", len(assignments)).
		Msg("Processing video")

	results := make([]ChunkResult, len(assignments))
	var wg sync.WaitGroup
	for i, a := range assignments {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.Worker.Run(ctx, a)
		}()
	}
	wg.Wait()

	res := VideoResult{Video: src.Name, Chunks: len(results)}
	for _, r := range results {
		res.Intervals = append(res.Intervals, r.Intervals...)
		res.Samples += r.Samples
		if r.Err != nil {
			res.FailedChunks++
		}
	}
	res.Latency = time.Since(started)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("processing %s interrupted: %w", name, err)
	}

	evt := logger.Info()
	if res.FailedChunks > 0 {
		evt = logger.Warn()
	}
	evt.
		Int("intervals", len(res.Intervals)).
		Int("samples", res.Samples).
		Int("failed_chunks", res.FailedChunks).
		Dur("duration", res.Latency).
		Msg("Video processed")

	if err := metrics.EmitVideo(p.Metrics, metrics.VideoSummary{
		Video:         res.Video,
		OCREngine:     p.OCREngine,
		Workers:       len(results),
		Samples:       res.Samples,
		Intervals:     len(res.Intervals),
		ChunkFailures: res.FailedChunks,
		Latency:       res.Latency,
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to emit metrics")
	}

	return res, nil
}

// ProcessPaths runs ProcessVideo over each path in order. An unopenable video
// is logged and contributes nothing. The combined intervals are returned
// unsorted; ErrEmptyResult is returned when there are none.
func (p *Pipeline) ProcessPaths(ctx context.Context, paths []string) ([]timeline.UsageInterval, error) {
	var all []timeline.UsageInterval
	for _, path := range paths {
		res, err := p.ProcessVideo(ctx, path)
		if p.OnVideo != nil {
			p.OnVideo(res, err)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return all, ctxErr
			}
			p.Logger.Error().Err(err).Str("path", path).Msg("Skipping video")
			continue
		}
		all = append(all, res.Intervals...)
	}
	if len(all) == 0 {
		return nil, ErrEmptyResult
	}
	return all, nil
}

// ProcessDirectory runs detection on every supported video directly inside dir.
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir string) ([]timeline.UsageInterval, error) {
	paths, err := filehandler.ScanVideos(dir, p.Logger)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrEmptyResult
	}
	return p.ProcessPaths(ctx, paths)
}
