package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Column names shared by every dataset.
const (
	ColVideoName      = "Video Name"
	ColAction         = "Action"
	ColActionX        = "Action_x"
	ColStartTimestamp = "Start Timestamp"
	ColEndTimestamp   = "End Timestamp"
	ColStartSeconds   = "Start Seconds"
)

// header indexes column names. A UTF-8 BOM on the first name and
// surrounding spaces are ignored.
type header map[string]int

func readHeader(r *csv.Reader) (header, []string, error) {
	cols, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("dataset has no header row")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	h := make(header, len(cols))
	for i, c := range cols {
		c = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
		cols[i] = c
		if _, dup := h[c]; !dup {
			h[c] = i
		}
	}
	return h, cols, nil
}

// index returns the position of the first of names present in h.
func (h header) index(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return i, true
		}
	}
	return -1, false
}

func (h header) require(names ...string) (int, error) {
	i, ok := h.index(names...)
	if !ok {
		return -1, fmt.Errorf("missing required column %q", names[0])
	}
	return i, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	return cr
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// writeFile creates path, runs fn and closes the file, reporting the first error.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return fn(f)
}

func readFile[T any](path string, fn func(io.Reader) (T, error)) (T, error) {
	f, err := Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	v, err := fn(f)
	if err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
