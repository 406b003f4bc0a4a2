package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/dataset"
	"github.com/fpang/tooltrace/internal/detect"
	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/sequence"
	"github.com/fpang/tooltrace/internal/store"
	"github.com/fpang/tooltrace/internal/timeline"
)

// videoPaths expands input into the videos to process. A directory is
// scanned non-recursively; a file must have a supported extension.
func videoPaths(input string, isDir bool, logger zerolog.Logger) ([]string, error) {
	if isDir {
		return filehandler.ScanVideos(input, logger)
	}
	if !filehandler.IsVideo(input) {
		return nil, fmt.Errorf("unsupported video file %s (want .mp4, .mkv or .avi)", input)
	}
	return []string{input}, nil
}

func videoRecord(res detect.VideoResult, err error) store.VideoRecord {
	rec := store.VideoRecord{
		Video:        res.Video,
		Intervals:    len(res.Intervals),
		Samples:      res.Samples,
		Chunks:       res.Chunks,
		FailedChunks: res.FailedChunks,
		LatencyMs:    res.Latency.Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// detectVideos runs tool detection on paths and writes the sorted per-frame
// dataset to output. Nothing is written when no interval was found.
func (a *app) detectVideos(ctx context.Context, paths []string, output string, out *sinks) ([]timeline.UsageInterval, error) {
	if len(paths) == 0 {
		return nil, detect.ErrEmptyResult
	}

	var metricsOut io.Writer
	if a.cfg.EmitMetrics {
		metricsOut = os.Stdout
	}
	p, err := detect.New(ctx, detect.Options{
		Workers:      a.cfg.Workers,
		ChunkTimeout: a.cfg.ChunkTimeout,
		Tools:        a.cfg.Tools(),
		OCR:          a.cfg.OCROptions(),
		Metrics:      metricsOut,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, err
	}
	p.OnVideo = func(res detect.VideoResult, err error) {
		out.video(ctx, videoRecord(res, err))
	}

	intervals, err := p.ProcessPaths(ctx, paths)
	if err != nil {
		return nil, err
	}
	return a.writeIntervals(ctx, intervals, output, out)
}

// writeIntervals sorts (and optionally stitches) intervals, then persists
// them. It returns the rows as written.
func (a *app) writeIntervals(ctx context.Context, intervals []timeline.UsageInterval, output string, out *sinks) ([]timeline.UsageInterval, error) {
	timeline.SortIntervals(intervals)
	if a.cfg.Stitch {
		before := len(intervals)
		intervals = timeline.Stitch(intervals, timeline.DefaultStitchGap)
		a.logger.Debug().Int("before", before).Int("after", len(intervals)).Msg("Stitched chunk boundaries")
	}

	if err := dataset.WriteIntervalsFile(output, intervals); err != nil {
		return nil, err
	}
	a.logger.Info().Str("path", output).Int("intervals", len(intervals)).Msg("Per-frame dataset written")

	if err := out.file(ctx, "intervals", output); err != nil {
		return nil, err
	}
	return intervals, out.intervals(ctx, intervals)
}

// buildSequences collapses intervals into one sequence per video and writes
// the sequence dataset.
func (a *app) buildSequences(ctx context.Context, intervals []timeline.UsageInterval, output string, out *sinks) ([]sequence.ActionSequence, error) {
	if len(intervals) == 0 {
		return nil, detect.ErrEmptyResult
	}
	seqs := sequence.Build(intervals)
	if err := dataset.WriteSequencesFile(output, seqs); err != nil {
		return nil, err
	}
	a.logger.Info().Str("path", output).Int("videos", len(seqs)).Msg("Sequence dataset written")

	if err := out.file(ctx, "sequences", output); err != nil {
		return nil, err
	}
	return seqs, out.sequences(ctx, seqs)
}

// joinMetadata left-joins seqs with the metadata table and writes the merged
// dataset.
func (a *app) joinMetadata(ctx context.Context, seqs []sequence.ActionSequence, metadataPath, output string, out *sinks) (*dataset.Merged, error) {
	md, err := dataset.ReadMetadataFile(metadataPath)
	if err != nil {
		return nil, err
	}
	merged := dataset.LeftJoin(seqs, md, a.logger)
	if err := dataset.WriteMergedFile(output, merged); err != nil {
		return nil, err
	}

	matched := 0
	for _, rec := range merged.Records {
		if rec.Matched {
			matched++
		}
	}
	a.logger.Info().
		Str("path", output).
		Int("rows", len(merged.Records)).
		Int("matched", matched).
		Int("metadata_rows", md.Len()).
		Msg("Merged dataset written")

	if err := out.file(ctx, "merged", output); err != nil {
		return nil, err
	}
	return merged, out.merged(ctx, merged)
}

// countVideos returns the number of distinct videos among intervals.
func countVideos(intervals []timeline.UsageInterval) int {
	seen := make(map[string]struct{})
	for _, iv := range intervals {
		seen[iv.VideoName] = struct{}{}
	}
	return len(seen)
}
