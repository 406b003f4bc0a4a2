package cli

import (
	"fmt"
	"io"
	"time"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// Summary is one line of the end-of-run report.
type Summary struct {
	Label string
	Value string
}

// PrintSummary writes a boxed report of the completed stage.
func PrintSummary(w io.Writer, title string, elapsed time.Duration, lines []Summary) {
	width := len("Elapsed")
	for _, l := range lines {
		if len(l.Label) > width {
			width = len(l.Label)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "============================================")
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, "============================================")
	for _, l := range lines {
		fmt.Fprintf(w, "%-*s  %s\n", width+1, l.Label+":", l.Value)
	}
	fmt.Fprintf(w, "%-*s  %s\n", width+1, "Elapsed:", FormatDurationShort(elapsed))
	fmt.Fprintln(w, "--------------------------------------------")
}
