package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/fpang/tooltrace/internal/cli"
	"github.com/fpang/tooltrace/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs <run-id>",
	Short: "Show a recorded run and its videos",
	Long: `Runs reads the DynamoDB run ledger (TOOLTRACE_DYNAMO_TABLE) written by
--publish or by detect-lambda, and prints the run record followed by one line
per processed video.

Example:
  tooltrace runs 0b5e3f5c-8d2a-4a37-9a53-0f6f2c1e9d41`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := current.openRunStore(cmd.Context())
		if err != nil {
			return err
		}
		return current.showRun(cmd.Context(), runs, args[0], cmd.OutOrStdout())
	},
}

func (a *app) openRunStore(ctx context.Context) (store.RunStore, error) {
	if a.cfg.DynamoTable == "" {
		return nil, fmt.Errorf("TOOLTRACE_DYNAMO_TABLE is not set")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return store.NewDynamoRunStore(dynamodb.NewFromConfig(awsCfg), a.cfg.DynamoTable), nil
}

// showRun prints run id and the videos recorded under it.
func (a *app) showRun(ctx context.Context, runs store.RunStore, id string, w io.Writer) error {
	ctx = a.logger.WithContext(ctx)
	run, err := runs.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	videos, err := runs.ListVideos(ctx, id)
	if err != nil {
		return err
	}

	lines := []cli.Summary{
		{Label: "Stage", Value: run.Stage},
		{Label: "Status", Value: run.Status},
		{Label: "Source", Value: run.Source},
		{Label: "Started", Value: time.Unix(run.StartedAt, 0).UTC().Format(time.RFC3339)},
		{Label: "Videos", Value: fmt.Sprint(run.VideoCount)},
		{Label: "Intervals", Value: fmt.Sprint(run.IntervalCount)},
		{Label: "Sequences", Value: fmt.Sprint(run.SequenceCount)},
	}
	if run.OCREngine != "" {
		lines = append(lines, cli.Summary{Label: "OCR engine", Value: run.OCREngine})
	}
	for _, label := range slices.Sorted(maps.Keys(run.Outputs)) {
		lines = append(lines, cli.Summary{Label: "Output " + label, Value: run.Outputs[label]})
	}
	if run.Error != "" {
		lines = append(lines, cli.Summary{Label: "Error", Value: run.Error})
	}
	var elapsed time.Duration
	if run.FinishedAt >= run.StartedAt {
		elapsed = time.Duration(run.FinishedAt-run.StartedAt) * time.Second
	}
	cli.PrintSummary(w, "Run "+id, elapsed, lines)

	for _, v := range videos {
		fmt.Fprintf(w, "%s  intervals=%d samples=%d chunks=%d failed=%d latency=%dms",
			v.Video, v.Intervals, v.Samples, v.Chunks, v.FailedChunks, v.LatencyMs)
		if v.Error != "" {
			fmt.Fprintf(w, "  error=%q", v.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}
