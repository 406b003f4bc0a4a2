package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// Input is a resolved command-line input path.
type Input struct {
	Path  string
	IsDir bool
}

// ResolveInput checks that path exists and returns its absolute form.
func ResolveInput(path string) (Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Input{}, fmt.Errorf("path not found: %s", path)
		}
		return Input{}, fmt.Errorf("failed to access %s: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Input{Path: path, IsDir: info.IsDir()}, nil
}

// ResolveDirectory is ResolveInput restricted to directories.
func ResolveDirectory(path string) (string, error) {
	in, err := ResolveInput(path)
	if err != nil {
		return "", err
	}
	if !in.IsDir {
		return "", fmt.Errorf("path is not a directory: %s", path)
	}
	return in.Path, nil
}
