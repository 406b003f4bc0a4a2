package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// ScanVideos lists the supported video files directly inside dirPath.
// Subdirectories are not descended into. Symlinks to files are followed;
// symlinks to directories are skipped. Paths are sorted for a stable order.
// An empty result is not an error.
func ScanVideos(dirPath string, logger zerolog.Logger) ([]string, error) {
	logger.Info().
		Str("path", dirPath).
		Msg("Scanning directory for videos")

	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", dirPath)
		}
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var videos []string
	for _, entry := range entries {
		path := filepath.Join(dirPath, entry.Name())

		if entry.IsDir() {
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("Failed to stat symlink target, skipping")
				continue
			}
			if target.IsDir() {
				logger.Debug().Str("path", path).Msg("Skipping symlink to directory")
				continue
			}
		}

		if !IsVideo(entry.Name()) {
			continue
		}
		videos = append(videos, path)
	}

	sort.Strings(videos)

	if len(videos) == 0 {
		logger.Warn().Str("directory", dirPath).Msg("No video files found")
		return nil, nil
	}

	logger.Info().
		Int("total_videos", len(videos)).
		Str("directory", dirPath).
		Msg("Directory scan complete")

	return videos, nil
}
