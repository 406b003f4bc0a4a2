package metrics

import (
	"io"
	"time"
)

// Namespace groups every metric this module emits.
const Namespace = "ToolTrace"

// Metric names for per-video detection summaries.
const (
	SamplesProcessed  = "SamplesProcessed"
	IntervalsDetected = "IntervalsDetected"
	ChunkFailures     = "ChunkFailures"
	VideoLatencyMs    = "VideoLatencyMs"
)

// VideoSummary is the outcome of detecting tools in one video.
type VideoSummary struct {
	Video         string
	OCREngine     string
	Workers       int
	Samples       int
	Intervals     int
	ChunkFailures int
	Latency       time.Duration
}

// EmitVideo writes one EMF record for s to w. A nil writer disables output.
func EmitVideo(w io.Writer, s VideoSummary) error {
	if w == nil {
		return nil
	}
	return NewWithWriter(Namespace, w).
		Dimension("Stage", "detect").
		Dimension("OCREngine", s.OCREngine).
		Count(SamplesProcessed, s.Samples).
		Count(IntervalsDetected, s.Intervals).
		Count(ChunkFailures, s.ChunkFailures).
		Metric(VideoLatencyMs, float64(s.Latency.Milliseconds()), UnitMilliseconds).
		Property("video", s.Video).
		Property("workers", s.Workers).
		Flush()
}
