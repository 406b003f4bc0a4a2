package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/config"
	"github.com/fpang/tooltrace/internal/dataset"
	"github.com/fpang/tooltrace/internal/detect"
	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/s3util"
	"github.com/fpang/tooltrace/internal/store"
	"github.com/fpang/tooltrace/internal/timeline"
)

// objectAPI is the S3 surface the handler needs.
type objectAPI interface {
	s3util.GetObjectAPI
	s3util.PutObjectAPI
}

// videoProcessor is satisfied by *detect.Pipeline.
type videoProcessor interface {
	ProcessVideo(ctx context.Context, path string) (detect.VideoResult, error)
}

type handler struct {
	cfg      *config.Config
	s3       objectAPI
	runs     store.RunStore
	pipeline videoProcessor
	logger   zerolog.Logger

	coldStart bool
}

func newHandler(cfg *config.Config, client objectAPI, pipeline videoProcessor, logger zerolog.Logger) *handler {
	return &handler{
		cfg:       cfg,
		s3:        client,
		pipeline:  pipeline,
		logger:    logger,
		coldStart: true,
	}
}

// intervalsKey is where the per-frame dataset of video is stored.
func (h *handler) intervalsKey(video string) string {
	return path.Join(strings.Trim(h.cfg.S3Prefix, "/"), "intervals", video+".csv")
}

// Handle processes every video in the event. Unsupported keys are skipped.
// Videos that cannot be decoded are recorded and not retried; any other
// failure is returned so that Lambda retries the event.
func (h *handler) Handle(ctx context.Context, event events.S3Event) error {
	if h.coldStart {
		h.coldStart = false
		h.logger.Info().Str("function", "detect-lambda").Msg("Cold start, first invocation")
	}

	var errs []error
	for _, record := range event.Records {
		bucket := record.S3.Bucket.Name
		key := record.S3.Object.URLDecodedKey
		if key == "" {
			key = record.S3.Object.Key
		}
		if err := h.processObject(ctx, bucket, key); err != nil {
			h.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("Failed to process video")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *handler) processObject(ctx context.Context, bucket, key string) error {
	if !filehandler.IsVideo(key) {
		h.logger.Debug().Str("key", key).Msg("Skipping key: not a supported video")
		return nil
	}

	video := filehandler.VideoName(key)
	logger := h.logger.With().Str("key", key).Str("video", video).Logger()
	ctx = logger.WithContext(ctx)
	run := &store.Run{
		ID:         store.NewRunID(),
		Stage:      "detect",
		Status:     store.StatusRunning,
		Source:     s3util.URI(bucket, key),
		OCREngine:  h.cfg.OCREngine,
		Workers:    h.cfg.ResolvedWorkers(),
		VideoCount: 1,
		StartedAt:  time.Now().Unix(),
	}
	h.putRun(ctx, run, logger)

	intervals, rec, err := h.detect(ctx, bucket, key, logger)
	rec.Video = video
	run.IntervalCount = len(intervals)
	switch {
	case errors.Is(err, filehandler.ErrUnopenable):
		rec.Error = err.Error()
		run.Status, run.Error = store.StatusFailed, err.Error()
		logger.Warn().Err(err).Msg("Video could not be decoded, not retrying")
		err = nil
	case errors.Is(err, detect.ErrEmptyResult):
		run.Status = store.StatusEmpty
		logger.Warn().Msg("No tool usage detected, no dataset written")
		err = nil
	case err != nil:
		rec.Error = err.Error()
		run.Status, run.Error = store.StatusFailed, err.Error()
	default:
		uri, upErr := h.upload(ctx, bucket, video, intervals)
		if upErr != nil {
			run.Status, run.Error = store.StatusFailed, upErr.Error()
			err = upErr
		} else {
			run.Status = store.StatusComplete
			run.Outputs = map[string]string{"intervals": uri}
			logger.Info().Str("uri", uri).Int("intervals", len(intervals)).Msg("Per-frame dataset uploaded")
		}
	}

	if h.runs != nil {
		if putErr := h.runs.PutVideo(ctx, run.ID, &rec); putErr != nil {
			logger.Warn().Err(putErr).Msg("Failed to record video")
		}
	}
	run.FinishedAt = time.Now().Unix()
	h.putRun(ctx, run, logger)
	return err
}

// detect downloads the object and runs the pipeline on it.
func (h *handler) detect(ctx context.Context, bucket, key string, logger zerolog.Logger) ([]timeline.UsageInterval, store.VideoRecord, error) {
	localPath, cleanup, err := s3util.DownloadToTempFile(ctx, h.s3, bucket, key, h.cfg.TempDir)
	if err != nil {
		return nil, store.VideoRecord{}, err
	}
	defer cleanup()

	res, err := h.pipeline.ProcessVideo(ctx, localPath)
	rec := store.VideoRecord{
		Intervals:    len(res.Intervals),
		Samples:      res.Samples,
		Chunks:       res.Chunks,
		FailedChunks: res.FailedChunks,
		LatencyMs:    res.Latency.Milliseconds(),
	}
	if err != nil {
		return nil, rec, err
	}
	if len(res.Intervals) == 0 {
		return nil, rec, detect.ErrEmptyResult
	}

	intervals := res.Intervals
	timeline.SortIntervals(intervals)
	if h.cfg.Stitch {
		intervals = timeline.Stitch(intervals, timeline.DefaultStitchGap)
	}
	logger.Debug().Int("samples", res.Samples).Int("failedChunks", res.FailedChunks).Msg("Detection finished")
	return intervals, rec, nil
}

// upload writes intervals to a local CSV and stores it under intervalsKey in
// the bucket the video came from.
func (h *handler) upload(ctx context.Context, bucket, video string, intervals []timeline.UsageInterval) (string, error) {
	dir, err := os.MkdirTemp(h.cfg.TempDir, "intervals-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, video+".csv")
	if err := dataset.WriteIntervalsFile(local, intervals); err != nil {
		return "", err
	}
	return store.NewS3Publisher(h.s3, bucket, h.cfg.S3Prefix).PublishAs(ctx, h.intervalsKey(video), local)
}

func (h *handler) putRun(ctx context.Context, run *store.Run, logger zerolog.Logger) {
	if h.runs == nil {
		return
	}
	if err := h.runs.PutRun(ctx, run); err != nil {
		logger.Warn().Err(err).Str("runId", run.ID).Msg("Failed to record run")
	}
}
