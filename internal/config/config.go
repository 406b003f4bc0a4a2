// Package config loads process configuration from environment variables.
// Command-line flags may override individual fields after Load.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/ocr"
)

// Config is the resolved process configuration. Field tags name the
// environment variable and its default.
type Config struct {
	LogLevel   string `env:"TOOLTRACE_LOG_LEVEL"   envDefault:"info"`
	LogConsole bool   `env:"TOOLTRACE_LOG_CONSOLE" envDefault:"true"`

	// Workers is the number of chunks per video. Zero means runtime.NumCPU().
	Workers      int           `env:"TOOLTRACE_WORKERS"       envDefault:"0"`
	ChunkTimeout time.Duration `env:"TOOLTRACE_CHUNK_TIMEOUT" envDefault:"0s"`
	Stitch       bool          `env:"TOOLTRACE_STITCH"        envDefault:"false"`
	EmitMetrics  bool          `env:"TOOLTRACE_EMIT_METRICS"  envDefault:"false"`

	OCREngine     string `env:"TOOLTRACE_OCR_ENGINE"  envDefault:"tesseract"`
	OCRUpscale    int    `env:"TOOLTRACE_OCR_UPSCALE" envDefault:"2"`
	TesseractPath string `env:"TESSERACT_PATH"`
	FFmpegPath    string `env:"FFMPEG_PATH"`
	FFprobePath   string `env:"FFPROBE_PATH"`

	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	GeminiModel    string `env:"GEMINI_MODEL"      envDefault:"gemini-2.5-flash-lite"`
	SSMAPIKeyParam string `env:"SSM_API_KEY_PARAM" envDefault:"/tooltrace/gemini-api-key"`

	S3Bucket    string `env:"TOOLTRACE_S3_BUCKET"`
	S3Prefix    string `env:"TOOLTRACE_S3_PREFIX"    envDefault:"tooltrace"`
	DynamoTable string `env:"TOOLTRACE_DYNAMO_TABLE"`
	DatabaseURL string `env:"TOOLTRACE_DATABASE_URL"`

	// TempDir holds videos downloaded by the Lambda handler.
	TempDir string `env:"TOOLTRACE_TEMP_DIR" envDefault:"/tmp"`
}

// Load parses the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// ResolvedWorkers returns Workers, or the CPU count when Workers < 1.
func (c *Config) ResolvedWorkers() int {
	if c.Workers < 1 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// Validate rejects combinations that cannot run. It normalizes OCREngine the
// way ocr.New does, so "Gemini" is accepted and stored as "gemini".
func (c *Config) Validate() error {
	c.OCREngine = ocr.NormalizeEngine(c.OCREngine)
	switch c.OCREngine {
	case ocr.EngineTesseract, ocr.EngineGemini:
	default:
		return fmt.Errorf("TOOLTRACE_OCR_ENGINE must be tesseract or gemini, got %q", c.OCREngine)
	}
	if c.ChunkTimeout < 0 {
		return fmt.Errorf("TOOLTRACE_CHUNK_TIMEOUT must not be negative")
	}
	if c.OCRUpscale < 0 {
		return fmt.Errorf("TOOLTRACE_OCR_UPSCALE must not be negative")
	}
	return nil
}

// Tools returns the ffmpeg binary locations.
func (c *Config) Tools() filehandler.Tools {
	return filehandler.Tools{FFprobePath: c.FFprobePath, FFmpegPath: c.FFmpegPath}
}

// OCROptions returns the OCR engine settings.
func (c *Config) OCROptions() ocr.Options {
	return ocr.Options{
		Engine:        c.OCREngine,
		TesseractPath: c.TesseractPath,
		GeminiAPIKey:  c.GeminiAPIKey,
		GeminiModel:   c.GeminiModel,
		UpscaleFactor: c.OCRUpscale,
	}
}
