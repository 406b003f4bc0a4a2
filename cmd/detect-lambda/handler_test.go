package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/config"
	"github.com/fpang/tooltrace/internal/detect"
	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/store"
	"github.com/fpang/tooltrace/internal/timeline"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

type fakeRuns struct {
	runs   map[string]store.Run
	videos map[string][]store.VideoRecord
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{runs: map[string]store.Run{}, videos: map[string][]store.VideoRecord{}}
}

func (f *fakeRuns) PutRun(_ context.Context, run *store.Run) error {
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*store.Run, error) {
	r, ok := f.runs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRuns) PutVideo(_ context.Context, id string, rec *store.VideoRecord) error {
	f.videos[id] = append(f.videos[id], *rec)
	return nil
}

func (f *fakeRuns) ListVideos(_ context.Context, id string) ([]store.VideoRecord, error) {
	return f.videos[id], nil
}

// fakePipeline returns canned results keyed by the downloaded file's content.
type fakePipeline struct {
	results map[string]detect.VideoResult
	errs    map[string]error
	calls   int
}

func (f *fakePipeline) ProcessVideo(_ context.Context, path string) (detect.VideoResult, error) {
	f.calls++
	data, err := os.ReadFile(path)
	if err != nil {
		return detect.VideoResult{}, err
	}
	if err := f.errs[string(data)]; err != nil {
		return detect.VideoResult{Video: filehandler.VideoName(path)}, err
	}
	return f.results[string(data)], nil
}

func iv(video, action string, start, end int64) timeline.UsageInterval {
	return timeline.UsageInterval{VideoName: video, Action: action, Start: timeline.FromSeconds(start), End: timeline.FromSeconds(end)}
}

func s3Event(bucket string, keys ...string) events.S3Event {
	var ev events.S3Event
	for _, k := range keys {
		ev.Records = append(ev.Records, events.S3EventRecord{
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: bucket},
				Object: events.S3Object{Key: k, URLDecodedKey: k},
			},
		})
	}
	return ev
}

func newTestHandler(t *testing.T, objects map[string][]byte, p *fakePipeline) (*handler, *fakeS3, *fakeRuns) {
	t.Helper()
	cfg := &config.Config{S3Prefix: "tooltrace", TempDir: t.TempDir(), OCREngine: "tesseract", Workers: 2}
	fs3 := &fakeS3{objects: objects}
	runs := newFakeRuns()
	h := newHandler(cfg, fs3, p, zerolog.Nop())
	h.runs = runs
	return h, fs3, runs
}

func onlyRun(t *testing.T, runs *fakeRuns) store.Run {
	t.Helper()
	if len(runs.runs) != 1 {
		t.Fatalf("runs recorded = %d, want 1", len(runs.runs))
	}
	for _, r := range runs.runs {
		return r
	}
	return store.Run{}
}

func TestHandle_UploadsIntervals(t *testing.T) {
	p := &fakePipeline{results: map[string]detect.VideoResult{
		"lesson-bytes": {
			Video:     "lesson 1",
			Intervals: []timeline.UsageInterval{iv("lesson 1", "Move Tool", 4, 9), iv("lesson 1", "Brush Tool", 0, 4)},
			Chunks:    2,
			Samples:   10,
			Latency:   1500 * time.Millisecond,
		},
	}}
	h, fs3, runs := newTestHandler(t, map[string][]byte{"media/videos/lesson 1.mp4": []byte("lesson-bytes")}, p)

	if err := h.Handle(context.Background(), s3Event("media", "videos/lesson 1.mp4", "videos/notes.txt")); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("pipeline calls = %d, want 1 (non-video keys are skipped)", p.calls)
	}

	got := string(fs3.objects["media/tooltrace/intervals/lesson 1.csv"])
	want := "Video Name,Action,Start Timestamp,End Timestamp\n" +
		"lesson 1,Brush Tool,0:00:00,0:00:04\n" +
		"lesson 1,Move Tool,0:00:04,0:00:09\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("uploaded CSV (-want +got):\n%s", diff)
	}

	run := onlyRun(t, runs)
	if run.Status != store.StatusComplete || run.IntervalCount != 2 || run.Source != "s3://media/videos/lesson 1.mp4" {
		t.Errorf("run = %+v", run)
	}
	if run.Outputs["intervals"] != "s3://media/tooltrace/intervals/lesson 1.csv" {
		t.Errorf("run outputs = %v", run.Outputs)
	}
	wantRec := []store.VideoRecord{{Video: "lesson 1", Intervals: 2, Samples: 10, Chunks: 2, LatencyMs: 1500}}
	if diff := cmp.Diff(wantRec, runs.videos[run.ID]); diff != "" {
		t.Errorf("video records (-want +got):\n%s", diff)
	}
}

func TestHandle_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		result     detect.VideoResult
		err        error
		putErr     error
		wantErr    bool
		wantStatus string
	}{
		{
			name:       "unopenable video is not retried",
			err:        fmt.Errorf("failed to probe: %w", filehandler.ErrUnopenable),
			wantStatus: store.StatusFailed,
		},
		{
			name:       "no intervals",
			result:     detect.VideoResult{Video: "v", Chunks: 2, Samples: 4},
			wantStatus: store.StatusEmpty,
		},
		{
			name:       "interrupted",
			err:        context.DeadlineExceeded,
			wantErr:    true,
			wantStatus: store.StatusFailed,
		},
		{
			name:       "upload failure",
			result:     detect.VideoResult{Video: "v", Intervals: []timeline.UsageInterval{iv("v", "Brush Tool", 0, 1)}},
			putErr:     errors.New("AccessDenied"),
			wantErr:    true,
			wantStatus: store.StatusFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{
				results: map[string]detect.VideoResult{"v": tt.result},
				errs:    map[string]error{"v": tt.err},
			}
			h, fs3, runs := newTestHandler(t, map[string][]byte{"b/v.mkv": []byte("v")}, p)
			fs3.putErr = tt.putErr

			err := h.Handle(context.Background(), s3Event("b", "v.mkv"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if _, ok := fs3.objects["b/tooltrace/intervals/v.csv"]; ok {
				t.Error("no dataset should be uploaded")
			}
			if got := onlyRun(t, runs).Status; got != tt.wantStatus {
				t.Errorf("run status = %q, want %q", got, tt.wantStatus)
			}
		})
	}
}

func TestHandle_MissingObject(t *testing.T) {
	h, _, runs := newTestHandler(t, map[string][]byte{}, &fakePipeline{})
	if err := h.Handle(context.Background(), s3Event("b", "gone.avi")); err == nil {
		t.Fatal("expected an error when the video cannot be downloaded")
	}
	if got := onlyRun(t, runs).Status; got != store.StatusFailed {
		t.Errorf("run status = %q, want failed", got)
	}
}

func TestIntervalsKey(t *testing.T) {
	h := &handler{cfg: &config.Config{S3Prefix: "/data/tooltrace/"}}
	if got := h.intervalsKey("lesson"); got != "data/tooltrace/intervals/lesson.csv" {
		t.Errorf("intervalsKey() = %q", got)
	}
}
