package timeline

import "github.com/fpang/tooltrace/internal/vocabulary"

// Tracker is the tool-activity state machine for one chunk. It is Idle until
// the first detection and Active(tool, start) afterwards. A Tracker is owned
// by a single worker and is not safe for concurrent use.
type Tracker struct {
	videoName string

	active      vocabulary.Tool
	activeStart Timestamp

	lastSeen Timestamp
	seenAny  bool

	intervals []UsageInterval
}

// NewTracker returns an Idle tracker for the given video.
func NewTracker(videoName string) *Tracker {
	return &Tracker{videoName: videoName}
}

// Active returns the active tool, or vocabulary.None when Idle.
func (t *Tracker) Active() vocabulary.Tool {
	return t.active
}

// Observe applies one sample's detection. Samples must arrive in temporal
// order. A miss never ends the active interval; a repeat of the active tool
// extends it; a different tool closes it at ts and opens a new one at ts.
func (t *Tracker) Observe(ts Timestamp, detected vocabulary.Tool) {
	t.lastSeen = ts
	t.seenAny = true

	if detected.IsNone() || detected == t.active {
		return
	}
	if !t.active.IsNone() {
		t.emit(ts)
	}
	t.active = detected
	t.activeStart = ts
}

// Finish closes the active interval, if any, at the last observed timestamp
// and returns everything emitted. The closing end may fall short of the
// tool's real end when the next chunk continues it.
func (t *Tracker) Finish() []UsageInterval {
	if !t.active.IsNone() && t.seenAny {
		t.emit(t.lastSeen)
		t.active = vocabulary.None
	}
	return t.intervals
}

// Intervals returns the intervals emitted so far without closing the active
// one. Workers use it to keep partial results after a failure.
func (t *Tracker) Intervals() []UsageInterval {
	return t.intervals
}

func (t *Tracker) emit(end Timestamp) {
	t.intervals = append(t.intervals, UsageInterval{
		VideoName: t.videoName,
		Action:    string(t.active),
		Start:     t.activeStart,
		End:       end,
	})
}
