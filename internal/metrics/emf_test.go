package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("EMF output must be exactly one line, got %q", out)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, out)
	}
	return doc
}

func TestNew_FunctionNameDimension(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "detect-lambda")
	r := New("TestNamespace")
	if r.dimensions["FunctionName"] != "detect-lambda" {
		t.Errorf("expected FunctionName dimension detect-lambda, got %q", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	var buf bytes.Buffer

	rec := NewWithWriter("ToolTrace", &buf)
	rec.now = func() time.Time { return time.UnixMilli(1700000000000) }
	rec.Dimension("Stage", "detect")
	rec.Metric("VideoLatencyMs", 1234.5, UnitMilliseconds)
	rec.Count("IntervalsDetected", 7)
	rec.Property("video", "lesson-01")
	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	doc := decode(t, buf.String())

	awsMap, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if awsMap["Timestamp"] != float64(1700000000000) {
		t.Errorf("Timestamp = %v", awsMap["Timestamp"])
	}
	cwArr, ok := awsMap["CloudWatchMetrics"].([]any)
	if !ok || len(cwArr) != 1 {
		t.Fatal("CloudWatchMetrics should hold one entry")
	}
	cw := cwArr[0].(map[string]any)
	if cw["Namespace"] != "ToolTrace" {
		t.Errorf("expected namespace ToolTrace, got %v", cw["Namespace"])
	}
	defs := cw["Metrics"].([]any)
	if first := defs[0].(map[string]any)["Name"]; first != "IntervalsDetected" {
		t.Errorf("metric definitions should be sorted by name, first = %v", first)
	}

	tests := map[string]any{
		"Stage":             "detect",
		"VideoLatencyMs":    1234.5,
		"IntervalsDetected": float64(7),
		"video":             "lesson-01",
	}
	for key, want := range tests {
		if doc[key] != want {
			t.Errorf("%s = %v, want %v", key, doc[key], want)
		}
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWithWriter("Test", &buf).Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestEmitVideo(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	var buf bytes.Buffer
	err := EmitVideo(&buf, VideoSummary{
		Video:         "lesson-02",
		OCREngine:     "tesseract",
		Workers:       4,
		Samples:       120,
		Intervals:     9,
		ChunkFailures: 1,
		Latency:       2500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("EmitVideo() error: %v", err)
	}

	doc := decode(t, buf.String())
	if doc[SamplesProcessed] != float64(120) || doc[ChunkFailures] != float64(1) || doc[VideoLatencyMs] != float64(2500) {
		t.Errorf("unexpected metric values: %v", doc)
	}
	if doc["OCREngine"] != "tesseract" || doc["video"] != "lesson-02" {
		t.Errorf("unexpected dimensions/properties: %v", doc)
	}

	if err := EmitVideo(nil, VideoSummary{}); err != nil {
		t.Errorf("EmitVideo(nil) = %v, want nil", err)
	}
}
