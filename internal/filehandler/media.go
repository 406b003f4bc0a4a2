// Package filehandler finds tutorial videos on disk, probes them with ffprobe
// and decodes one frame per second of video with ffmpeg.
//
// Both tools are external binaries. Their paths come from Tools; an empty
// path falls back to a PATH lookup.
package filehandler

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// SupportedVideoExtensions lists the accepted container extensions.
// Selection is by extension only and is case-sensitive: "clip.MP4" is skipped.
var SupportedVideoExtensions = map[string]bool{
	".mp4": true,
	".mkv": true,
	".avi": true,
}

// IsVideo reports whether path ends in a supported extension.
func IsVideo(path string) bool {
	return SupportedVideoExtensions[filepath.Ext(path)]
}

// VideoName is the identifier used throughout the datasets: the file's base
// name without its extension.
func VideoName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Tools holds the locations of the external binaries. Zero values are
// resolved through exec.LookPath.
type Tools struct {
	FFprobePath string
	FFmpegPath  string
}

func (t Tools) ffprobe() (string, error) {
	return resolveBinary(t.FFprobePath, "ffprobe")
}

func (t Tools) ffmpeg() (string, error) {
	return resolveBinary(t.FFmpegPath, "ffmpeg")
}

func resolveBinary(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// Check verifies both binaries are reachable. Call it at startup so a missing
// FFmpeg install fails fast instead of once per video.
func (t Tools) Check(logger zerolog.Logger) error {
	probe, err := t.ffprobe()
	if err != nil {
		return fmt.Errorf("%w. Install FFmpeg with: brew install ffmpeg (macOS) or apt install ffmpeg (Linux)", err)
	}
	mpeg, err := t.ffmpeg()
	if err != nil {
		return fmt.Errorf("%w. Install FFmpeg with: brew install ffmpeg (macOS) or apt install ffmpeg (Linux)", err)
	}
	logger.Debug().Str("ffprobe", probe).Str("ffmpeg", mpeg).Msg("FFmpeg tools found")
	return nil
}
