package filehandler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/bmp"

	"github.com/fpang/tooltrace/internal/timeline"
)

// Sample is one decoded frame taken at a whole-second boundary.
type Sample struct {
	FrameIndex int
	Timestamp  timeline.Timestamp
	Image      image.Image
}

// Sampler yields one Sample per elapsed second of video within a frame range.
// Each Sampler owns its own ffmpeg process; it is not safe for concurrent use
// and cannot be rewound. Open a new one to restart.
type Sampler struct {
	src    *VideoSource
	end    int
	next   int
	r      *bufio.Reader
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	done   bool
	logger zerolog.Logger
}

// FirstSampleFrame returns the smallest multiple of fps that is >= start.
func FirstSampleFrame(start, fps int) int {
	if start <= 0 {
		return 0
	}
	return ((start + fps - 1) / fps) * fps
}

// SampleCount returns how many samples [start, end) yields at fps.
func SampleCount(start, end, fps int) int {
	first := FirstSampleFrame(start, fps)
	if first >= end {
		return 0
	}
	return (end-1-first)/fps + 1
}

// seekArgs positions ffmpeg half a frame before frame first, so the first
// decoded frame is first and output frame numbers count from it. Nothing
// before the chunk is decoded past the nearest keyframe.
func seekArgs(first int, rate float64) []string {
	if first <= 0 || rate <= 0 {
		return nil
	}
	secs := (float64(first) - 0.5) / rate
	return []string{"-ss", strconv.FormatFloat(secs, 'f', 6, 64)}
}

// selectFilter keeps every fps-th frame counted from the seek point.
func selectFilter(fps int) string {
	return fmt.Sprintf(`select=not(mod(n\,%d))`, fps)
}

// OpenSampler starts ffmpeg on src restricted to frames [start, end). The
// process streams BMP images on stdout; cancelling ctx kills it.
func OpenSampler(ctx context.Context, tools Tools, src *VideoSource, start, end int, logger zerolog.Logger) (*Sampler, error) {
	if src == nil || src.FPS < 1 {
		return nil, fmt.Errorf("%w: sampler needs a probed source", ErrUnopenable)
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid frame range [%d, %d)", start, end)
	}

	ffmpegPath, err := tools.ffmpeg()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnopenable, err)
	}

	count := SampleCount(start, end, src.FPS)
	if count == 0 {
		return newSampler(src, start, end, bytes.NewReader(nil), logger), nil
	}

	args := samplerArgs(src, start, count)

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", ErrUnopenable, err)
	}

	logger.Debug().
		Str("video", src.Name).
		Int("start_frame", start).
		Int("end_frame", end).
		Int("expected_samples", count).
		Msg("Frame sampler started")

	s := newSampler(src, start, end, stdout, logger)
	s.cmd = cmd
	s.stderr = stderr
	return s, nil
}

// samplerArgs builds the ffmpeg command line for count samples starting at
// the first whole second at or after frame start.
func samplerArgs(src *VideoSource, start, count int) []string {
	rate := src.FrameRate
	if rate <= 0 {
		rate = float64(src.FPS)
	}
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	args = append(args, seekArgs(FirstSampleFrame(start, src.FPS), rate)...)
	return append(args,
		"-i", src.Path,
		"-an", "-sn",
		"-vf", selectFilter(src.FPS),
		"-vsync", "0",
		"-frames:v", strconv.Itoa(count),
		"-f", "image2pipe",
		"-vcodec", "bmp",
		"-pix_fmt", "bgr24",
		"-",
	)
}

func newSampler(src *VideoSource, start, end int, r io.Reader, logger zerolog.Logger) *Sampler {
	return &Sampler{
		src:    src,
		end:    end,
		next:   FirstSampleFrame(start, src.FPS),
		r:      bufio.NewReaderSize(r, 1<<20),
		logger: logger,
	}
}

// Next returns the next sample, or io.EOF once the range is exhausted. A
// frame that fails to decode ends the stream early: it is logged and reported
// as io.EOF, never as an error.
func (s *Sampler) Next() (Sample, error) {
	if s.done || s.next >= s.end {
		s.done = true
		return Sample{}, io.EOF
	}

	img, err := bmp.Decode(s.r)
	if err != nil {
		s.done = true
		if !errors.Is(err, io.EOF) {
			s.logger.Warn().
				Err(err).
				Str("video", s.src.Name).
				Int("frame", s.next).
				Msg("Frame decode failed, ending sample stream early")
		}
		return Sample{}, io.EOF
	}

	sample := Sample{
		FrameIndex: s.next,
		Timestamp:  timeline.FromFrame(s.next, s.src.FPS),
		Image:      img,
	}
	s.next += s.src.FPS
	return sample, nil
}

// Close reaps ffmpeg. Closing before the stream is drained kills the process,
// and the resulting exit status is not reported.
func (s *Sampler) Close() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	drained := s.done && s.next >= s.end
	if !drained {
		_ = s.cmd.Process.Kill()
	}
	err := s.cmd.Wait()
	s.cmd = nil
	if err != nil && drained {
		msg := ""
		if s.stderr != nil {
			msg = strings.TrimSpace(s.stderr.String())
		}
		return fmt.Errorf("ffmpeg exited: %w: %s", err, msg)
	}
	return nil
}
