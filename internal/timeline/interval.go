// Package timeline models tool-usage intervals on a video's timeline and the
// per-chunk state machine that produces them.
package timeline

import (
	"sort"
	"time"
)

// UsageInterval is one contiguous run during which a tool was the last one
// detected. Start <= End.
type UsageInterval struct {
	VideoName string
	Action    string
	Start     Timestamp
	End       Timestamp
}

// SortIntervals orders intervals by (VideoName, Start). The sort is stable so
// intervals with equal keys keep their aggregation order.
func SortIntervals(intervals []UsageInterval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		a, b := intervals[i], intervals[j]
		if a.VideoName != b.VideoName {
			return a.VideoName < b.VideoName
		}
		return a.Start < b.Start
	})
}

// DefaultStitchGap is the sampling stride: one sample per second of video.
const DefaultStitchGap = time.Second

// Stitch merges adjacent intervals of the same video and action whose gap
// (next.Start - prev.End) is at most maxGap. Input must be sorted with
// SortIntervals. It repairs the split a chunk boundary introduces when one
// tool stays active across it, and is off unless a caller asks for it.
// The input slice is not modified.
func Stitch(sorted []UsageInterval, maxGap time.Duration) []UsageInterval {
	if len(sorted) == 0 {
		return nil
	}
	out := make([]UsageInterval, 0, len(sorted))
	out = append(out, sorted[0])
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		gap := iv.Start.Duration() - last.End.Duration()
		if iv.VideoName == last.VideoName && iv.Action == last.Action && gap >= 0 && gap <= maxGap {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
