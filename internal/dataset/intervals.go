package dataset

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fpang/tooltrace/internal/timeline"
)

// IntervalColumns is the per-frame dataset header.
var IntervalColumns = []string{ColVideoName, ColAction, ColStartTimestamp, ColEndTimestamp}

// WriteIntervals writes the per-frame dataset in the given order. Timestamps
// are rendered H:MM:SS.
func WriteIntervals(w io.Writer, intervals []timeline.UsageInterval) error {
	rows := make([][]string, 0, len(intervals)+1)
	rows = append(rows, IntervalColumns)
	for _, iv := range intervals {
		rows = append(rows, []string{iv.VideoName, iv.Action, iv.Start.String(), iv.End.String()})
	}
	return writeAll(w, rows)
}

// WriteIntervalsFile writes the per-frame dataset to path.
func WriteIntervalsFile(path string, intervals []timeline.UsageInterval) error {
	return writeFile(path, func(w io.Writer) error { return WriteIntervals(w, intervals) })
}

// ReadIntervals reads a per-frame dataset. The action column may be named
// Action or Action_x. When a Start Seconds column is present it supplies the
// start time and Start Timestamp is not parsed. A missing or empty End
// Timestamp makes End equal Start.
func ReadIntervals(r io.Reader) ([]timeline.UsageInterval, error) {
	cr := newReader(r)
	h, _, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	videoIdx, err := h.require(ColVideoName)
	if err != nil {
		return nil, err
	}
	actionIdx, err := h.require(ColAction, ColActionX)
	if err != nil {
		return nil, err
	}
	secondsIdx, hasSeconds := h.index(ColStartSeconds)
	startIdx, hasStart := h.index(ColStartTimestamp)
	if !hasSeconds && !hasStart {
		return nil, fmt.Errorf("missing required column %q", ColStartTimestamp)
	}
	endIdx, _ := h.index(ColEndTimestamp)

	var out []timeline.UsageInterval
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		iv := timeline.UsageInterval{
			VideoName: field(rec, videoIdx),
			Action:    field(rec, actionIdx),
		}
		if hasSeconds {
			secs, err := strconv.ParseFloat(strings.TrimSpace(field(rec, secondsIdx)), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColStartSeconds, err)
			}
			iv.Start = timeline.FromSeconds(int64(secs))
		} else {
			iv.Start, err = timeline.ParseTimestamp(field(rec, startIdx))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		iv.End = iv.Start
		if raw := strings.TrimSpace(field(rec, endIdx)); raw != "" {
			iv.End, err = timeline.ParseTimestamp(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		out = append(out, iv)
	}
	return out, nil
}

// ReadIntervalsFile reads a per-frame dataset from path.
func ReadIntervalsFile(path string) ([]timeline.UsageInterval, error) {
	return readFile(path, ReadIntervals)
}
