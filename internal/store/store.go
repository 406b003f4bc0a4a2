// Package store records pipeline runs and publishes their datasets.
//
// Three sinks are available and all are optional:
//   - a DynamoDB run ledger (single table, PK RUN#{id}; SK META for the run
//     and VIDEO#{name} for each processed video; records expire after RunTTL)
//   - S3 for the produced CSV files
//   - Postgres for the interval and sequence rows themselves
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunTTL is how long DynamoDB keeps run records.
const RunTTL = 90 * 24 * time.Hour

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusEmpty    = "empty"
	StatusFailed   = "failed"
)

// Run is one invocation of a pipeline stage.
type Run struct {
	ID            string            `dynamodbav:"-"`
	Stage         string            `dynamodbav:"stage"`
	Status        string            `dynamodbav:"status"`
	Source        string            `dynamodbav:"source"`
	OCREngine     string            `dynamodbav:"ocrEngine,omitempty"`
	Workers       int               `dynamodbav:"workers,omitempty"`
	VideoCount    int               `dynamodbav:"videoCount"`
	IntervalCount int               `dynamodbav:"intervalCount"`
	SequenceCount int               `dynamodbav:"sequenceCount"`
	Outputs       map[string]string `dynamodbav:"outputs,omitempty"`
	Error         string            `dynamodbav:"error,omitempty"`
	StartedAt     int64             `dynamodbav:"startedAt"`
	FinishedAt    int64             `dynamodbav:"finishedAt,omitempty"`
}

// VideoRecord summarizes one video within a run.
type VideoRecord struct {
	Video        string `dynamodbav:"-"`
	Intervals    int    `dynamodbav:"intervals"`
	Samples      int    `dynamodbav:"samples"`
	Chunks       int    `dynamodbav:"chunks"`
	FailedChunks int    `dynamodbav:"failedChunks"`
	LatencyMs    int64  `dynamodbav:"latencyMs"`
	Error        string `dynamodbav:"error,omitempty"`
}

// RunStore persists run records. Get methods return (nil, nil) when the
// record does not exist. Put methods replace the whole item.
type RunStore interface {
	PutRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	PutVideo(ctx context.Context, runID string, rec *VideoRecord) error
	ListVideos(ctx context.Context, runID string) ([]VideoRecord, error)
}

// NewRunID returns a random run identifier.
func NewRunID() string {
	return uuid.NewString()
}
