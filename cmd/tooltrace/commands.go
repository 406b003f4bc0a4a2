package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/tooltrace/internal/cli"
	"github.com/fpang/tooltrace/internal/dataset"
	"github.com/fpang/tooltrace/internal/detect"
	"github.com/fpang/tooltrace/internal/store"
)

var (
	framesOutFlag   string
	sequenceOutFlag string
	mergedOutFlag   string
	metadataFlag    string
	outDirFlag      string
	compressFlag    string
)

var detectCmd = &cobra.Command{
	Use:   "detect [video-or-directory]",
	Short: "Detect tool usage intervals in videos",
	Long: `Detect samples one frame per second from each video, recognizes the visible
text and writes one row per contiguous tool-usage interval.

With no argument you are prompted for a directory.

Examples:
  tooltrace detect ./videos -o frames.csv
  tooltrace detect lesson.mp4 --workers 8 --stitch
  tooltrace detect ./videos --ocr-engine gemini -o frames.csv.gz`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input string
		if len(args) == 1 {
			input = args[0]
		} else {
			input = cli.PromptForDirectory(cmd.InOrStdin(), cmd.OutOrStdout(), current.logger)
		}
		return current.runDetect(cmd, input, framesOutFlag)
	},
}

var sequenceCmd = &cobra.Command{
	Use:   "sequence <frames.csv>",
	Short: "Collapse per-frame intervals into one tool sequence per video",
	Long: `Sequence reads a per-frame dataset, orders each video's intervals by start
time and joins the actions with " -> ", dropping consecutive repeats.

Example:
  tooltrace sequence frames.csv -o sequences.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.runSequence(cmd, args[0], sequenceOutFlag)
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <sequences.csv>",
	Short: "Left-join sequences with a metadata table on Video Name",
	Long: `Join keeps every sequence row and appends the metadata columns of the row
with the same Video Name. Sequences without metadata get empty cells.

Example:
  tooltrace join sequences.csv -m metadata.csv -o merged.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.runJoin(cmd, args[0], metadataFlag, mergedOutFlag)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <video-directory>",
	Short: "Run detect, sequence and join in one pass",
	Long: `Run writes frames.csv, sequences.csv and, when --metadata is given,
merged.csv into --out-dir.

Example:
  tooltrace run ./videos -m metadata.csv --out-dir ./dataset --compress gz`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.runAll(cmd, args[0], metadataFlag, outDirFlag, compressFlag)
	},
}

func init() {
	detectCmd.Flags().StringVarP(&framesOutFlag, "output", "o", "frames.csv", "Per-frame dataset path")
	sequenceCmd.Flags().StringVarP(&sequenceOutFlag, "output", "o", "sequences.csv", "Sequence dataset path")
	joinCmd.Flags().StringVarP(&mergedOutFlag, "output", "o", "merged.csv", "Merged dataset path")
	joinCmd.Flags().StringVarP(&metadataFlag, "metadata", "m", "", "Metadata CSV keyed by Video Name")
	_ = joinCmd.MarkFlagRequired("metadata")

	runCmd.Flags().StringVarP(&metadataFlag, "metadata", "m", "", "Metadata CSV keyed by Video Name (join is skipped when empty)")
	runCmd.Flags().StringVar(&outDirFlag, "out-dir", ".", "Directory for the produced datasets")
	runCmd.Flags().StringVar(&compressFlag, "compress", "", "Compress datasets: gz or zst")
}

// stage opens the sinks, runs fn and records its outcome. An empty result is
// reported as a warning and is not an error.
func (a *app) stage(ctx context.Context, name, source string, fn func(ctx context.Context, out *sinks) (store.Run, error)) error {
	ctx = a.logger.WithContext(ctx)
	out, err := openSinks(ctx, a.cfg, publishFlag, runIDFlag, a.logger)
	if err != nil {
		return err
	}
	defer out.Close()

	out.begin(ctx, name, source, a.cfg)
	counts, err := fn(ctx, out)
	out.finish(context.WithoutCancel(ctx), counts, err)

	if errors.Is(err, detect.ErrEmptyResult) {
		a.logger.Warn().Err(err).Str("stage", name).Msg("No dataset written")
		return nil
	}
	return err
}

func (a *app) runDetect(cmd *cobra.Command, input, output string) error {
	started := time.Now()
	in, err := cli.ResolveInput(input)
	if err != nil {
		return err
	}
	paths, err := videoPaths(in.Path, in.IsDir, a.logger)
	if err != nil {
		return err
	}

	return a.stage(cmd.Context(), "detect", in.Path, func(ctx context.Context, out *sinks) (store.Run, error) {
		intervals, err := a.detectVideos(ctx, paths, output, out)
		counts := store.Run{VideoCount: len(paths), IntervalCount: len(intervals)}
		if err == nil {
			cli.PrintSummary(cmd.ErrOrStderr(), "Detect", time.Since(started), []cli.Summary{
				{Label: "Input", Value: in.Path},
				{Label: "Videos", Value: fmt.Sprint(len(paths))},
				{Label: "With tools", Value: fmt.Sprint(countVideos(intervals))},
				{Label: "Intervals", Value: fmt.Sprint(len(intervals))},
				{Label: "Output", Value: output},
			})
		}
		return counts, err
	})
}

func (a *app) runSequence(cmd *cobra.Command, input, output string) error {
	started := time.Now()
	return a.stage(cmd.Context(), "sequence", input, func(ctx context.Context, out *sinks) (store.Run, error) {
		intervals, err := dataset.ReadIntervalsFile(input)
		if err != nil {
			return store.Run{}, err
		}
		seqs, err := a.buildSequences(ctx, intervals, output, out)
		counts := store.Run{VideoCount: len(seqs), IntervalCount: len(intervals), SequenceCount: len(seqs)}
		if err == nil {
			cli.PrintSummary(cmd.ErrOrStderr(), "Sequence", time.Since(started), []cli.Summary{
				{Label: "Intervals", Value: fmt.Sprint(len(intervals))},
				{Label: "Videos", Value: fmt.Sprint(len(seqs))},
				{Label: "Output", Value: output},
			})
		}
		return counts, err
	})
}

func (a *app) runJoin(cmd *cobra.Command, input, metadataPath, output string) error {
	started := time.Now()
	return a.stage(cmd.Context(), "join", input, func(ctx context.Context, out *sinks) (store.Run, error) {
		seqs, err := dataset.ReadSequencesFile(input)
		if err != nil {
			return store.Run{}, err
		}
		merged, err := a.joinMetadata(ctx, seqs, metadataPath, output, out)
		if err != nil {
			return store.Run{SequenceCount: len(seqs)}, err
		}
		cli.PrintSummary(cmd.ErrOrStderr(), "Join", time.Since(started), []cli.Summary{
			{Label: "Sequences", Value: fmt.Sprint(len(seqs))},
			{Label: "Metadata columns", Value: fmt.Sprint(len(merged.MetadataColumns))},
			{Label: "Output", Value: output},
		})
		return store.Run{VideoCount: len(seqs), SequenceCount: len(seqs)}, nil
	})
}

// datasetPaths returns the three output paths of a full run.
func datasetPaths(dir, compress string) (frames, sequences, merged string, err error) {
	suffix := ""
	switch compress {
	case "":
	case "gz", "zst":
		suffix = "." + compress
	default:
		return "", "", "", fmt.Errorf("--compress must be gz or zst, got %q", compress)
	}
	return filepath.Join(dir, "frames.csv"+suffix),
		filepath.Join(dir, "sequences.csv"+suffix),
		filepath.Join(dir, "merged.csv"+suffix),
		nil
}

func (a *app) runAll(cmd *cobra.Command, input, metadataPath, outDir, compress string) error {
	started := time.Now()
	ctx := cmd.Context()
	dir, err := cli.ResolveDirectory(input)
	if err != nil {
		return err
	}
	framesPath, sequencesPath, mergedPath, err := datasetPaths(outDir, compress)
	if err != nil {
		return err
	}
	paths, err := videoPaths(dir, true, a.logger)
	if err != nil {
		return err
	}

	return a.stage(ctx, "run", dir, func(ctx context.Context, out *sinks) (store.Run, error) {
		counts := store.Run{VideoCount: len(paths)}
		intervals, err := a.detectVideos(ctx, paths, framesPath, out)
		counts.IntervalCount = len(intervals)
		if err != nil {
			return counts, err
		}
		seqs, err := a.buildSequences(ctx, intervals, sequencesPath, out)
		counts.SequenceCount = len(seqs)
		if err != nil {
			return counts, err
		}

		lines := []cli.Summary{
			{Label: "Videos", Value: fmt.Sprint(len(paths))},
			{Label: "Intervals", Value: fmt.Sprint(len(intervals))},
			{Label: "Sequences", Value: fmt.Sprint(len(seqs))},
			{Label: "Per-frame", Value: framesPath},
			{Label: "Sequence", Value: sequencesPath},
		}
		if metadataPath != "" {
			if _, err := a.joinMetadata(ctx, seqs, metadataPath, mergedPath, out); err != nil {
				return counts, err
			}
			lines = append(lines, cli.Summary{Label: "Merged", Value: mergedPath})
		} else {
			a.logger.Info().Msg("No --metadata given, join skipped")
		}
		cli.PrintSummary(cmd.ErrOrStderr(), "Run", time.Since(started), lines)
		return counts, nil
	})
}
