// Package main provides a Lambda entry point for tool detection on uploaded videos.
//
// This Lambda is triggered by S3 ObjectCreated events on the dataset bucket.
// For each uploaded video, it:
//
//  1. Downloads the video to local storage
//  2. Runs chunked OCR tool detection over it
//  3. Uploads the per-frame dataset to {prefix}/intervals/{video}.csv
//  4. Records the run and the video summary in DynamoDB (when configured)
//
// Container: needs ffmpeg, ffprobe and tesseract on PATH
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/fpang/tooltrace/internal/config"
	"github.com/fpang/tooltrace/internal/detect"
	"github.com/fpang/tooltrace/internal/lambdaboot"
	"github.com/fpang/tooltrace/internal/logging"
	"github.com/fpang/tooltrace/internal/ocr"
)

// commitHash is set at build time via -ldflags "-X main.commitHash=...".
var commitHash = ""

// bootstrap performs the cold-start initialization. Any failure is fatal.
func bootstrap() *handler {
	initStart := time.Now()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("", false)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := logging.New(cfg.LogLevel, false)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	ctx := logger.WithContext(context.Background())

	awsClients := lambdaboot.InitAWS(logger)
	s3Client := lambdaboot.InitS3(awsClients.Config, cfg.S3Bucket, logger)
	runs := lambdaboot.InitRunStore(awsClients.Config, cfg.DynamoTable, logger)

	if cfg.OCREngine == ocr.EngineGemini {
		key, err := lambdaboot.LoadGeminiKey(ctx, awsClients.SSM, cfg.GeminiAPIKey, cfg.SSMAPIKeyParam)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load Gemini API key")
		}
		cfg.GeminiAPIKey = key
	}

	opts := detect.Options{
		Workers:      cfg.Workers,
		ChunkTimeout: cfg.ChunkTimeout,
		Tools:        cfg.Tools(),
		OCR:          cfg.OCROptions(),
		Logger:       logger,
	}
	if cfg.EmitMetrics {
		opts.Metrics = os.Stdout
	}
	pipeline, err := detect.New(ctx, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize detection pipeline")
	}

	h := newHandler(cfg, s3Client, pipeline, logger)
	if runs != nil {
		h.runs = runs
	}

	startup := lambdaboot.StartupLog("detect-lambda", initStart).
		CommitHash(commitHash).
		S3Bucket("datasets", cfg.S3Bucket).
		DynamoTable("runs", cfg.DynamoTable).
		Config("ocrEngine", cfg.OCREngine).
		Config("s3Prefix", cfg.S3Prefix).
		Config("chunkTimeout", cfg.ChunkTimeout.String()).
		Feature("stitch", cfg.Stitch).
		Feature("metrics", cfg.EmitMetrics)
	if cfg.OCREngine == ocr.EngineGemini && cfg.SSMAPIKeyParam != "" {
		startup = startup.SSMParam("geminiApiKey", cfg.SSMAPIKeyParam)
	}
	startup.Log(logger)
	return h
}

func main() {
	lambda.Start(bootstrap().Handle)
}
