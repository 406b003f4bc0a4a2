// Package sequence collapses a video's ordered actions into the canonical
// arrow-joined sequence.
package sequence

import (
	"strings"

	"github.com/fpang/tooltrace/internal/timeline"
)

// Separator joins actions in the rendered form.
const Separator = " -> "

// ActionSequence is the ordered, de-duplicated actions of one video.
type ActionSequence struct {
	VideoName string
	Actions   []string
}

// String renders the actions joined by Separator.
func (s ActionSequence) String() string {
	return strings.Join(s.Actions, Separator)
}

// Normalize drops each entry equal to the one before it. Only adjacent
// repeats are removed: [A A B A] becomes [A B A]. The result never has two
// equal neighbours, so Normalize is idempotent.
func Normalize(actions []string) []string {
	if len(actions) == 0 {
		return nil
	}
	out := make([]string, 0, len(actions))
	for i, a := range actions {
		if i > 0 && a == actions[i-1] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Parse splits a rendered sequence back into its actions.
func Parse(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, Separator)
}

// Build sorts intervals by (video, start) and returns one normalized
// sequence per video, ordered by video name. The input slice is sorted in
// place.
func Build(intervals []timeline.UsageInterval) []ActionSequence {
	timeline.SortIntervals(intervals)

	var out []ActionSequence
	for i := 0; i < len(intervals); {
		video := intervals[i].VideoName
		var actions []string
		for ; i < len(intervals) && intervals[i].VideoName == video; i++ {
			actions = append(actions, intervals[i].Action)
		}
		out = append(out, ActionSequence{VideoName: video, Actions: Normalize(actions)})
	}
	return out
}
