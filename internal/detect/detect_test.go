package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/ocr"
	"github.com/fpang/tooltrace/internal/timeline"
	"github.com/fpang/tooltrace/internal/vocabulary"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		workers int
		want    []FrameRange
	}{
		{"even split", 100, 4, []FrameRange{{0, 25}, {25, 50}, {50, 75}, {75, 100}}},
		{"short last chunk", 10, 3, []FrameRange{{0, 4}, {4, 8}, {8, 10}}},
		{"fewer frames than workers", 3, 8, []FrameRange{{0, 1}, {1, 2}, {2, 3}}},
		{"single worker", 7, 1, []FrameRange{{0, 7}}},
		{"zero workers treated as one", 7, 0, []FrameRange{{0, 7}}},
		{"no frames", 0, 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Partition(tt.total, tt.workers)); diff != "" {
				t.Errorf("Partition(%d, %d) (-want +got):\n%s", tt.total, tt.workers, diff)
			}
		})
	}
}

func TestPartition_CoversEveryFrameOnce(t *testing.T) {
	for total := 0; total <= 200; total++ {
		for workers := 1; workers <= 16; workers++ {
			ranges := Partition(total, workers)
			if len(ranges) > workers {
				t.Fatalf("Partition(%d, %d) produced %d ranges", total, workers, len(ranges))
			}
			next := 0
			for _, r := range ranges {
				if r.Start != next || r.Len() < 1 {
					t.Fatalf("Partition(%d, %d) = %v: gap, overlap or empty range", total, workers, ranges)
				}
				next = r.End
			}
			if next != total {
				t.Fatalf("Partition(%d, %d) = %v: covers %d frames", total, workers, ranges, next)
			}
		}
	}
}

// script maps a second of video to the text visible on screen.
type script map[int64]string

// fakeSource replays one sample per second for frames in [start, end).
type fakeSource struct {
	frames []int
	fps    int
	pos    int
	err    error // returned instead of io.EOF once frames run out
	closed bool
}

func (f *fakeSource) Next() (filehandler.Sample, error) {
	if f.pos >= len(f.frames) {
		if f.err != nil {
			return filehandler.Sample{}, f.err
		}
		return filehandler.Sample{}, io.EOF
	}
	frame := f.frames[f.pos]
	f.pos++
	return filehandler.Sample{
		FrameIndex: frame,
		Timestamp:  timeline.FromFrame(frame, f.fps),
		Image:      secondImage{sec: frame / f.fps},
	}, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

// secondImage carries its own timestamp so the fake extractor can look up text.
type secondImage struct {
	image.Image
	sec int
}

func openScript(fps int) OpenFunc {
	return func(_ context.Context, a ChunkAssignment) (SampleSource, error) {
		var frames []int
		for f := filehandler.FirstSampleFrame(a.StartFrame, fps); f < a.EndFrame; f += fps {
			frames = append(frames, f)
		}
		return &fakeSource{frames: frames, fps: fps}, nil
	}
}

func extractScript(s script, failAt map[int64]bool, panicAt map[int64]bool) ocr.TextExtractor {
	return ocr.ExtractorFunc(func(_ context.Context, img image.Image) (string, error) {
		sec := int64(img.(secondImage).sec)
		if failAt[sec] {
			return "", fmt.Errorf("ocr engine crashed at %ds", sec)
		}
		if panicAt[sec] {
			panic("corrupt frame")
		}
		return s[sec], nil
	})
}

var testVocab = vocabulary.MustNew([]string{"Move", "Marquee", "Brush", "Eraser"})

func iv(video, action string, start, end int64) timeline.UsageInterval {
	return timeline.UsageInterval{
		VideoName: video,
		Action:    action,
		Start:     timeline.FromSeconds(start),
		End:       timeline.FromSeconds(end),
	}
}

func chunk(start, end int) ChunkAssignment {
	return ChunkAssignment{VideoName: "v", VideoPath: "v.mp4", StartFrame: start, EndFrame: end, FPS: 10, Vocabulary: testVocab}
}

func TestWorker_Run(t *testing.T) {
	s := script{0: "Brush Tool", 1: "", 2: "brush tool", 3: "Eraser Tool (E)", 4: "", 5: "Move Tool"}

	tests := []struct {
		name        string
		assignment  ChunkAssignment
		failAt      map[int64]bool
		panicAt     map[int64]bool
		want        []timeline.UsageInterval
		wantErr     bool
		wantSamples int
	}{
		{
			name:        "whole video closes last interval at last sample",
			assignment:  chunk(0, 60),
			want:        []timeline.UsageInterval{iv("v", "Brush", 0, 3), iv("v", "Eraser", 3, 5), iv("v", "Move", 5, 5)},
			wantSamples: 6,
		},
		{
			name:        "chunk starting mid-second begins at next whole second",
			assignment:  chunk(15, 45),
			want:        []timeline.UsageInterval{iv("v", "Brush", 2, 3), iv("v", "Eraser", 3, 4)},
			wantSamples: 3,
		},
		{
			name:        "recognition failure keeps emitted intervals without final flush",
			assignment:  chunk(0, 60),
			failAt:      map[int64]bool{4: true},
			want:        []timeline.UsageInterval{iv("v", "Brush", 0, 3)},
			wantErr:     true,
			wantSamples: 4,
		},
		{
			name:        "panic is contained",
			assignment:  chunk(0, 60),
			panicAt:     map[int64]bool{5: true},
			want:        []timeline.UsageInterval{iv("v", "Brush", 0, 3)},
			wantErr:     true,
			wantSamples: 5,
		},
		{
			name:        "failure before any detection yields nothing",
			assignment:  chunk(0, 60),
			failAt:      map[int64]bool{0: true},
			want:        nil,
			wantErr:     true,
			wantSamples: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Worker{
				Extractor: extractScript(s, tt.failAt, tt.panicAt),
				Open:      openScript(10),
				Logger:    zerolog.Nop(),
			}
			res := w.Run(context.Background(), tt.assignment)
			if (res.Err != nil) != tt.wantErr {
				t.Fatalf("Run() Err = %v, wantErr %v", res.Err, tt.wantErr)
			}
			if res.Samples != tt.wantSamples {
				t.Errorf("Run() Samples = %d, want %d", res.Samples, tt.wantSamples)
			}
			if diff := cmp.Diff(tt.want, res.Intervals); diff != "" {
				t.Errorf("Run() intervals (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWorker_ExtractorLogsWithChunkFields(t *testing.T) {
	var buf bytes.Buffer
	w := &Worker{
		Extractor: ocr.ExtractorFunc(func(ctx context.Context, _ image.Image) (string, error) {
			zerolog.Ctx(ctx).Info().Msg("frame recognized")
			return "Brush Tool", nil
		}),
		Open:   openScript(10),
		Logger: zerolog.New(&buf),
	}

	res := w.Run(context.Background(), chunk(20, 30))
	if res.Err != nil {
		t.Fatalf("Run() error: %v", res.Err)
	}
	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "frame recognized") {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("extractor log not written to the worker logger: %q", buf.String())
	}
	for _, want := range []string{`"video":"v"`, `"chunk":0`, `"start_frame":20`, `"end_frame":30`} {
		if !strings.Contains(line, want) {
			t.Errorf("extractor log missing %s: %s", want, line)
		}
	}
}

func TestWorker_OpenFailure(t *testing.T) {
	w := &Worker{
		Extractor: extractScript(script{}, nil, nil),
		Open: func(context.Context, ChunkAssignment) (SampleSource, error) {
			return nil, filehandler.ErrUnopenable
		},
		Logger: zerolog.Nop(),
	}
	res := w.Run(context.Background(), chunk(0, 10))
	if !errors.Is(res.Err, filehandler.ErrUnopenable) {
		t.Errorf("Run() Err = %v, want ErrUnopenable", res.Err)
	}
	if len(res.Intervals) != 0 {
		t.Errorf("Run() intervals = %v, want none", res.Intervals)
	}
}

func TestWorker_SourceErrorIsChunkFailure(t *testing.T) {
	src := &fakeSource{frames: []int{0, 10}, fps: 10, err: errors.New("pipe broken")}
	w := &Worker{
		Extractor: extractScript(script{0: "Brush", 1: "Move"}, nil, nil),
		Open:      func(context.Context, ChunkAssignment) (SampleSource, error) { return src, nil },
		Logger:    zerolog.Nop(),
	}
	res := w.Run(context.Background(), chunk(0, 100))
	if res.Err == nil {
		t.Fatal("Run() should report the source error")
	}
	if diff := cmp.Diff([]timeline.UsageInterval{iv("v", "Brush", 0, 1)}, res.Intervals); diff != "" {
		t.Errorf("Run() intervals (-want +got):\n%s", diff)
	}
	if !src.closed {
		t.Error("sample source was not closed")
	}
}

func TestWorker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &Worker{
		Extractor: extractScript(script{0: "Brush"}, nil, nil),
		Open:      openScript(10),
		Logger:    zerolog.Nop(),
	}
	res := w.Run(ctx, chunk(0, 20))
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Run() Err = %v, want context.Canceled", res.Err)
	}
	if len(res.Intervals) != 0 {
		t.Errorf("cancelled chunk should not flush its active interval, got %v", res.Intervals)
	}
}

// lockedBuffer lets concurrent workers share one log sink.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newPipeline(t *testing.T, sources map[string]*filehandler.VideoSource, s script, failAt map[int64]bool, workers int) (*Pipeline, *lockedBuffer) {
	t.Helper()
	metricsOut := &lockedBuffer{}
	return &Pipeline{
		Workers:    workers,
		Vocabulary: testVocab,
		Probe: func(_ context.Context, path string) (*filehandler.VideoSource, error) {
			src, ok := sources[path]
			if !ok {
				return nil, fmt.Errorf("%w: %s", filehandler.ErrUnopenable, path)
			}
			return src, nil
		},
		Worker: &Worker{
			Extractor: extractScript(s, failAt, nil),
			Open:      openScript(10),
			Logger:    zerolog.Nop(),
		},
		Logger:    zerolog.Nop(),
		Metrics:   metricsOut,
		OCREngine: "fake",
	}, metricsOut
}

func TestPipeline_ProcessVideo(t *testing.T) {
	sources := map[string]*filehandler.VideoSource{
		"/in/lesson.mp4": {Name: "lesson", Path: "/in/lesson.mp4", FPS: 10, FrameCount: 80},
	}
	// Two chunks of 40 frames: seconds 0-3 and 4-7.
	s := script{0: "Brush", 2: "Move", 4: "Move", 6: "Eraser"}
	p, metricsOut := newPipeline(t, sources, s, nil, 2)

	res, err := p.ProcessVideo(context.Background(), "/in/lesson.mp4")
	if err != nil {
		t.Fatalf("ProcessVideo() error: %v", err)
	}
	want := []timeline.UsageInterval{
		iv("lesson", "Brush", 0, 2),
		iv("lesson", "Move", 2, 3), // boundary artifact: closed at the chunk's last sample
		iv("lesson", "Move", 4, 6),
		iv("lesson", "Eraser", 6, 7),
	}
	if diff := cmp.Diff(want, res.Intervals); diff != "" {
		t.Errorf("ProcessVideo() intervals (-want +got):\n%s", diff)
	}
	if res.Chunks != 2 || res.Samples != 8 || res.FailedChunks != 0 {
		t.Errorf("ProcessVideo() = %+v", res)
	}
	if !strings.Contains(metricsOut.String(), `"IntervalsDetected":4`) {
		t.Errorf("expected EMF record with IntervalsDetected=4, got %s", metricsOut.String())
	}
}

func TestPipeline_PartialFailure(t *testing.T) {
	sources := map[string]*filehandler.VideoSource{
		"/in/a.mp4": {Name: "a", Path: "/in/a.mp4", FPS: 10, FrameCount: 90},
	}
	// Three chunks of 30 frames: seconds 0-2, 3-5, 6-8. The middle one fails at 5s.
	s := script{0: "Brush", 1: "Move", 3: "Marquee", 4: "Eraser", 6: "Brush", 8: "Move"}
	p, _ := newPipeline(t, sources, s, map[int64]bool{5: true}, 3)

	res, err := p.ProcessVideo(context.Background(), "/in/a.mp4")
	if err != nil {
		t.Fatalf("ProcessVideo() error: %v", err)
	}
	want := []timeline.UsageInterval{
		iv("a", "Brush", 0, 1),
		iv("a", "Move", 1, 2),
		iv("a", "Marquee", 3, 4), // Eraser was active when the chunk failed and is dropped
		iv("a", "Brush", 6, 8),
		iv("a", "Move", 8, 8),
	}
	if diff := cmp.Diff(want, res.Intervals); diff != "" {
		t.Errorf("ProcessVideo() intervals (-want +got):\n%s", diff)
	}
	if res.FailedChunks != 1 {
		t.Errorf("FailedChunks = %d, want 1", res.FailedChunks)
	}
}

func TestPipeline_ProcessPaths(t *testing.T) {
	sources := map[string]*filehandler.VideoSource{
		"/in/a.mp4": {Name: "a", Path: "/in/a.mp4", FPS: 10, FrameCount: 20},
		"/in/c.mp4": {Name: "c", Path: "/in/c.mp4", FPS: 10, FrameCount: 20},
	}
	p, _ := newPipeline(t, sources, script{0: "Brush"}, nil, 4)
	var seen []string
	p.OnVideo = func(res VideoResult, err error) {
		seen = append(seen, fmt.Sprintf("%s:%t", res.Video, err == nil))
	}

	got, err := p.ProcessPaths(context.Background(), []string{"/in/a.mp4", "/in/broken.mp4", "/in/c.mp4"})
	if err != nil {
		t.Fatalf("ProcessPaths() error: %v", err)
	}
	want := []timeline.UsageInterval{iv("a", "Brush", 0, 0), iv("c", "Brush", 0, 0)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProcessPaths() (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a:true", "broken:false", "c:true"}, seen); diff != "" {
		t.Errorf("OnVideo calls (-want +got):\n%s", diff)
	}
}

func TestPipeline_EmptyResult(t *testing.T) {
	sources := map[string]*filehandler.VideoSource{
		"/in/quiet.mp4": {Name: "quiet", Path: "/in/quiet.mp4", FPS: 10, FrameCount: 50},
	}
	p, _ := newPipeline(t, sources, script{0: "no tools here"}, nil, 2)

	_, err := p.ProcessPaths(context.Background(), []string{"/in/quiet.mp4", "/in/missing.mp4"})
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("ProcessPaths() error = %v, want ErrEmptyResult", err)
	}

	_, err = p.ProcessVideo(context.Background(), "/in/missing.mp4")
	if !errors.Is(err, filehandler.ErrUnopenable) {
		t.Errorf("ProcessVideo(missing) error = %v, want ErrUnopenable", err)
	}
}

func TestAssign(t *testing.T) {
	src := &filehandler.VideoSource{Name: "v", Path: "/v.mp4", FPS: 30, FrameCount: 95}
	got := Assign(src, 3, testVocab)
	if len(got) != 3 {
		t.Fatalf("Assign() = %d chunks, want 3", len(got))
	}
	for i, a := range got {
		if a.Index != i || a.FPS != 30 || a.VideoName != "v" || a.Vocabulary != testVocab {
			t.Errorf("chunk %d = %+v", i, a)
		}
	}
	if got[2].StartFrame != 64 || got[2].EndFrame != 95 {
		t.Errorf("last chunk = [%d, %d), want [64, 95)", got[2].StartFrame, got[2].EndFrame)
	}
}
