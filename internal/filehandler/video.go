package filehandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnopenable is returned when a video cannot be opened or reports no
// usable frame rate or frame count. Such a video contributes zero intervals.
var ErrUnopenable = errors.New("video source cannot be opened")

// VideoSource describes one video. It is immutable once probed.
type VideoSource struct {
	Name       string
	Path       string
	FPS        int // truncated toward zero, e.g. 29.97 becomes 29
	FrameRate  float64
	FrameCount int
	Duration   time.Duration
	Width      int
	Height     int
	Codec      string
}

// ffprobeOutput represents the JSON structure from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

type ffprobeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
	NbFrames     string `json:"nb_frames"`
}

// Probe opens path with ffprobe and reads the frame rate and frame count of
// its first video stream. The ffprobe process has exited by the time Probe
// returns. Any failure wraps ErrUnopenable.
func Probe(ctx context.Context, tools Tools, path string, logger zerolog.Logger) (*VideoSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnopenable, path, err)
	}

	ffprobePath, err := tools.ffprobe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnopenable, err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "v:0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe failed on %s: %v", ErrUnopenable, path, err)
	}

	src, err := parseProbe(path, output)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("video", src.Name).
		Int("fps", src.FPS).
		Int("frame_count", src.FrameCount).
		Dur("duration", src.Duration).
		Str("codec", src.Codec).
		Msg("Video probed via ffprobe")

	return src, nil
}

func parseProbe(path string, output []byte) (*VideoSource, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrUnopenable, err)
	}

	var stream *ffprobeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "video" {
			stream = &probe.Streams[i]
			break
		}
	}
	if stream == nil {
		return nil, fmt.Errorf("%w: %s has no video stream", ErrUnopenable, path)
	}

	src := &VideoSource{
		Name:   VideoName(path),
		Path:   path,
		Width:  stream.Width,
		Height: stream.Height,
		Codec:  stream.CodecName,
	}

	rate := parseFrameRate(stream.RFrameRate)
	if rate <= 0 {
		rate = parseFrameRate(stream.AvgFrameRate)
	}
	src.FrameRate = rate
	src.FPS = int(rate)
	if src.FPS < 1 {
		return nil, fmt.Errorf("%w: %s reports frame rate %q", ErrUnopenable, path, stream.RFrameRate)
	}

	durationStr := stream.Duration
	if durationStr == "" {
		durationStr = probe.Format.Duration
	}
	if secs, err := strconv.ParseFloat(durationStr, 64); err == nil {
		src.Duration = time.Duration(secs * float64(time.Second))
	}

	// Matroska and some AVI muxers omit nb_frames; estimate from duration
	// the same way container-level frame counts are estimated elsewhere.
	if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
		src.FrameCount = n
	} else if src.Duration > 0 {
		src.FrameCount = int(math.Round(src.Duration.Seconds() * rate))
	}
	if src.FrameCount < 1 {
		return nil, fmt.Errorf("%w: %s reports no frames", ErrUnopenable, path)
	}

	return src, nil
}

// parseFrameRate parses ffprobe's rational ("30000/1001") or decimal rate.
func parseFrameRate(value string) float64 {
	parts := strings.Split(value, "/")
	if len(parts) == 2 {
		num, _ := strconv.ParseFloat(parts[0], 64)
		den, _ := strconv.ParseFloat(parts[1], 64)
		if den != 0 {
			return num / den
		}
		return 0
	}
	rate, _ := strconv.ParseFloat(value, 64)
	return rate
}
