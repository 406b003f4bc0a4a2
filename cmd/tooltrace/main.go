// Command tooltrace builds tool-usage datasets from screen-recorded tutorials.
//
// The pipeline has three stages, each available as a subcommand:
//
//	tooltrace detect ./videos -o frames.csv          # OCR tool detection -> usage intervals
//	tooltrace sequence frames.csv -o sequences.csv   # intervals -> "A -> B -> C" per video
//	tooltrace join sequences.csv -m meta.csv         # left join with video metadata
//	tooltrace run ./videos -m meta.csv --out-dir out # all three
//
// Configuration comes from TOOLTRACE_* environment variables; flags override them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fpang/tooltrace/internal/auth"
	"github.com/fpang/tooltrace/internal/config"
	"github.com/fpang/tooltrace/internal/logging"
	"github.com/fpang/tooltrace/internal/ocr"
)

// Persistent flags shared by every subcommand.
var (
	logLevelFlag     string
	workersFlag      int
	ocrEngineFlag    string
	chunkTimeoutFlag time.Duration
	stitchFlag       bool
	metricsFlag      bool
	publishFlag      bool
	runIDFlag        string
)

// commitHash is set at build time via -ldflags "-X main.commitHash=...".
var commitHash = "dev"

// app carries what every stage needs once flags and environment are resolved.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

var current app

var rootCmd = &cobra.Command{
	Use:   "tooltrace",
	Short: "Extract editing-tool usage timelines from tutorial videos",
	Long: `tooltrace samples one frame per second from each tutorial video, reads the
on-screen text, and records which editing tool was active and for how long.
The per-video timelines are collapsed into ordered tool sequences and joined
with a metadata table to produce a research dataset.

Datasets ending in .gz or .zst are compressed transparently.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn, error (default from TOOLTRACE_LOG_LEVEL)")
	pf.IntVarP(&workersFlag, "workers", "w", 0, "Parallel chunks per video (0 = number of CPUs)")
	pf.StringVar(&ocrEngineFlag, "ocr-engine", "", "OCR engine: tesseract or gemini")
	pf.DurationVar(&chunkTimeoutFlag, "chunk-timeout", 0, "Deadline for one chunk (0 = none)")
	pf.BoolVar(&stitchFlag, "stitch", false, "Merge same-tool intervals split at chunk boundaries")
	pf.BoolVar(&metricsFlag, "metrics", false, "Emit CloudWatch EMF metrics to stdout")
	pf.BoolVar(&publishFlag, "publish", false, "Publish datasets to the configured S3 bucket, DynamoDB table and Postgres database")
	pf.StringVar(&runIDFlag, "run-id", "", "Run identifier for published datasets (default: random UUID)")

	rootCmd.AddCommand(detectCmd, sequenceCmd, joinCmd, runCmd, runsCmd)
}

// setup loads configuration, applies flag overrides and initializes logging.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}
	if flags.Changed("workers") {
		cfg.Workers = workersFlag
	}
	if flags.Changed("ocr-engine") {
		cfg.OCREngine = ocrEngineFlag
	}
	if flags.Changed("chunk-timeout") {
		cfg.ChunkTimeout = chunkTimeoutFlag
	}
	if flags.Changed("stitch") {
		cfg.Stitch = stitchFlag
	}
	if flags.Changed("metrics") {
		cfg.EmitMetrics = metricsFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogConsole)
	if cfg.OCREngine == ocr.EngineGemini && (cmd == detectCmd || cmd == runCmd) {
		key, err := auth.GetAPIKey(cfg.GeminiAPIKey, logger)
		if err != nil {
			return err
		}
		cfg.GeminiAPIKey = key
	}
	logging.NewStartupLogger("tooltrace").
		CommitHash(commitHash).
		S3Bucket("datasets", cfg.S3Bucket).
		DynamoTable("runs", cfg.DynamoTable).
		Config("command", cmd.Name()).
		Config("ocrEngine", cfg.OCREngine).
		Config("workers", fmt.Sprint(cfg.ResolvedWorkers())).
		Config("chunkTimeout", cfg.ChunkTimeout.String()).
		Feature("stitch", cfg.Stitch).
		Feature("metrics", cfg.EmitMetrics).
		Feature("publish", publishFlag).
		Log(logger)

	current = app{cfg: cfg, logger: logger}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// cobra has already printed the error.
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
