package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/config"
	"github.com/fpang/tooltrace/internal/dataset"
	"github.com/fpang/tooltrace/internal/detect"
	"github.com/fpang/tooltrace/internal/sequence"
	"github.com/fpang/tooltrace/internal/store"
	"github.com/fpang/tooltrace/internal/timeline"
)

// sinks publishes one run's outputs. Every field is optional and a sinks
// value with none set does nothing, so stages call it unconditionally.
type sinks struct {
	runID  string
	files  *store.S3Publisher
	runs   store.RunStore
	rows   *store.PostgresSink
	logger zerolog.Logger

	run *store.Run
}

// openSinks connects the sinks named by cfg. It returns an inert value when
// publishing is disabled.
func openSinks(ctx context.Context, cfg *config.Config, enabled bool, runID string, logger zerolog.Logger) (*sinks, error) {
	s := &sinks{runID: runID, logger: logger}
	if !enabled {
		return s, nil
	}
	if s.runID == "" {
		s.runID = store.NewRunID()
	}
	s.logger = logger.With().Str("runId", s.runID).Logger()

	if cfg.S3Bucket != "" || cfg.DynamoTable != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if cfg.S3Bucket != "" {
			s.files = store.NewS3Publisher(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
		}
		if cfg.DynamoTable != "" {
			s.runs = store.NewDynamoRunStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
		}
	}
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.rows = pg
	}
	if s.files == nil && s.runs == nil && s.rows == nil {
		logger.Warn().Msg("--publish set but no S3 bucket, DynamoDB table or database configured")
	}
	return s, nil
}

func (s *sinks) Close() {
	s.rows.Close()
}

// begin records the run as running.
func (s *sinks) begin(ctx context.Context, stage, source string, cfg *config.Config) {
	if s.runs == nil {
		return
	}
	s.run = &store.Run{
		ID:        s.runID,
		Stage:     stage,
		Status:    store.StatusRunning,
		Source:    source,
		OCREngine: cfg.OCREngine,
		Workers:   cfg.ResolvedWorkers(),
		StartedAt: time.Now().Unix(),
	}
	if err := s.runs.PutRun(ctx, s.run); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record run start")
		s.runs = nil
	}
}

// video records one video's detection summary.
func (s *sinks) video(ctx context.Context, rec store.VideoRecord) {
	if s.runs == nil {
		return
	}
	if err := s.runs.PutVideo(ctx, s.runID, &rec); err != nil {
		s.logger.Warn().Err(err).Str("video", rec.Video).Msg("Failed to record video")
	}
}

// file uploads a dataset file and remembers its URI under label.
func (s *sinks) file(ctx context.Context, label, localPath string) error {
	if s.files == nil {
		return nil
	}
	uri, err := s.files.Publish(ctx, s.runID, localPath)
	if err != nil {
		return err
	}
	if s.run != nil {
		if s.run.Outputs == nil {
			s.run.Outputs = map[string]string{}
		}
		s.run.Outputs[label] = uri
	}
	s.logger.Info().Str("file", filepath.Base(localPath)).Str("uri", uri).Msg("Dataset published")
	return nil
}

func (s *sinks) intervals(ctx context.Context, intervals []timeline.UsageInterval) error {
	if s.rows == nil {
		return nil
	}
	n, err := s.rows.WriteIntervals(ctx, s.runID, intervals)
	if err != nil {
		return err
	}
	s.logger.Info().Int64("rows", n).Msg("Intervals written to Postgres")
	return nil
}

func (s *sinks) sequences(ctx context.Context, seqs []sequence.ActionSequence) error {
	if s.rows == nil {
		return nil
	}
	return s.rows.WriteSequences(ctx, s.runID, seqs)
}

func (s *sinks) merged(ctx context.Context, m *dataset.Merged) error {
	if s.rows == nil {
		return nil
	}
	return s.rows.WriteMerged(ctx, s.runID, m)
}

// finish stores the final run record. A nil err with no output is recorded
// as empty.
func (s *sinks) finish(ctx context.Context, counts store.Run, err error) {
	if s.runs == nil || s.run == nil {
		return
	}
	s.run.VideoCount = counts.VideoCount
	s.run.IntervalCount = counts.IntervalCount
	s.run.SequenceCount = counts.SequenceCount
	s.run.FinishedAt = time.Now().Unix()
	switch {
	case errors.Is(err, detect.ErrEmptyResult):
		s.run.Status = store.StatusEmpty
	case err != nil:
		s.run.Status = store.StatusFailed
		s.run.Error = err.Error()
	default:
		s.run.Status = store.StatusComplete
	}
	if putErr := s.runs.PutRun(ctx, s.run); putErr != nil {
		s.logger.Warn().Err(putErr).Msg("Failed to record run result")
	}
}
