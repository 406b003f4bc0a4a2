package timeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp is an offset from the start of a video at one-second resolution.
// Ordering and arithmetic use the underlying Duration; the H:MM:SS text form
// exists only at the persistence edge, where it does not sort correctly once
// hours reach two digits.
type Timestamp time.Duration

// FromSeconds returns the timestamp for a whole number of seconds.
func FromSeconds(s int64) Timestamp {
	return Timestamp(time.Duration(s) * time.Second)
}

// FromFrame returns floor(frame / fps) seconds. fps must be positive.
func FromFrame(frame, fps int) Timestamp {
	return FromSeconds(int64(frame / fps))
}

// Seconds returns the whole seconds of the timestamp.
func (t Timestamp) Seconds() int64 {
	return int64(time.Duration(t) / time.Second)
}

// Duration returns the timestamp as a time.Duration.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t)
}

// String renders H:MM:SS with an unpadded hour field, prefixed with a day
// count past 24 hours ("1 day, 2:03:04"). This matches the per-frame dataset
// format produced by the reference pipeline.
func (t Timestamp) String() string {
	total := t.Seconds()
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	days := total / 86400
	rem := total % 86400
	hms := fmt.Sprintf("%d:%02d:%02d", rem/3600, (rem%3600)/60, rem%60)
	switch {
	case days == 1:
		return sign + "1 day, " + hms
	case days > 1:
		return fmt.Sprintf("%s%d days, %s", sign, days, hms)
	default:
		return sign + hms
	}
}

// ParseTimestamp parses the String form. Zero-padded hours ("01:02:03") and a
// fractional seconds suffix are accepted; fractions are truncated.
func ParseTimestamp(s string) (Timestamp, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	var days int64
	if idx := strings.Index(raw, ","); idx >= 0 {
		dayPart := strings.Fields(raw[:idx])
		if len(dayPart) != 2 || !strings.HasPrefix(dayPart[1], "day") {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		d, err := strconv.ParseInt(dayPart[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count in %q: %w", s, err)
		}
		days = d
		raw = strings.TrimSpace(raw[idx+1:])
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q: want H:MM:SS", s)
	}
	if dot := strings.Index(parts[2], "."); dot >= 0 {
		parts[2] = parts[2][:dot]
	}

	var fields [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		fields[i] = v
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid timestamp %q: minutes and seconds must be below 60", s)
	}

	return FromSeconds(days*86400 + fields[0]*3600 + fields[1]*60 + fields[2]), nil
}
