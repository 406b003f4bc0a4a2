// Package dataset reads and writes the CSV datasets the pipeline produces:
// per-frame intervals, per-video sequences, and sequences merged with
// external metadata.
//
// A path ending in .gz is gzip-compressed and one ending in .zst is
// zstd-compressed; anything else is plain CSV.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Create opens path for writing, creating parent directories. Closing the
// returned writer flushes any compressor before closing the file.
func Create(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	switch compression(path) {
	case ".gz":
		return &stackedWriter{WriteCloser: gzip.NewWriter(f), file: f}, nil
	case ".zst":
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return &stackedWriter{WriteCloser: enc, file: f}, nil
	default:
		return f, nil
	}
}

// Open opens path for reading, decompressing by extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	switch compression(path) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read gzip header of %s: %w", path, err)
		}
		return &stackedReader{Reader: zr, closeFn: zr.Close, file: f}, nil
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return &stackedReader{Reader: dec, closeFn: func() error { dec.Close(); return nil }, file: f}, nil
	default:
		return f, nil
	}
}

func compression(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".gz" || ext == ".zst" {
		return ext
	}
	return ""
}

type stackedWriter struct {
	io.WriteCloser
	file *os.File
}

func (w *stackedWriter) Close() error {
	return errors.Join(w.WriteCloser.Close(), w.file.Close())
}

type stackedReader struct {
	io.Reader
	closeFn func() error
	file    *os.File
}

func (r *stackedReader) Close() error {
	return errors.Join(r.closeFn(), r.file.Close())
}
