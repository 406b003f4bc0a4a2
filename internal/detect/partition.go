// Package detect turns a video into tool-usage intervals: it splits the frame
// range into chunks, runs one worker per chunk and concatenates the results.
package detect

import (
	"github.com/fpang/tooltrace/internal/filehandler"
	"github.com/fpang/tooltrace/internal/vocabulary"
)

// FrameRange is a half-open frame interval [Start, End).
type FrameRange struct {
	Start int
	End   int
}

// Len returns the number of frames in the range.
func (r FrameRange) Len() int {
	return r.End - r.Start
}

// Partition splits [0, totalFrames) into at most workers contiguous,
// non-overlapping ranges of ceil(totalFrames/workers) frames; the last may be
// shorter. workers below 1 is treated as 1. Fewer frames than workers gives
// one single-frame range per frame, and zero frames gives no ranges.
func Partition(totalFrames, workers int) []FrameRange {
	if totalFrames <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	size := (totalFrames + workers - 1) / workers

	ranges := make([]FrameRange, 0, (totalFrames+size-1)/size)
	for start := 0; start < totalFrames; start += size {
		end := min(start+size, totalFrames)
		ranges = append(ranges, FrameRange{Start: start, End: end})
	}
	return ranges
}

// ChunkAssignment is a self-contained unit of work: everything a worker
// needs to process one chunk. Workers share nothing mutable.
type ChunkAssignment struct {
	Index      int
	VideoName  string
	VideoPath  string
	StartFrame int
	EndFrame   int
	FPS        int
	// FrameRate is the exact rate FPS was truncated from; the sampler seeks with it.
	FrameRate  float64
	Vocabulary *vocabulary.Vocabulary
}

// Assign partitions src across workers.
func Assign(src *filehandler.VideoSource, workers int, vocab *vocabulary.Vocabulary) []ChunkAssignment {
	ranges := Partition(src.FrameCount, workers)
	out := make([]ChunkAssignment, len(ranges))
	for i, r := range ranges {
		out[i] = ChunkAssignment{
			Index:      i,
			VideoName:  src.Name,
			VideoPath:  src.Path,
			StartFrame: r.Start,
			EndFrame:   r.End,
			FPS:        src.FPS,
			FrameRate:  src.FrameRate,
			Vocabulary: vocab,
		}
	}
	return out
}
