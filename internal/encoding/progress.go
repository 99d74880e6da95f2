package encoding

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseProgress reads ffmpeg's key=value progress stream and reports the
// completed percentage after each progress block. Without a known duration
// only the final 100 is reported.
func ParseProgress(r io.Reader, duration float64, report ProgressFunc) error {
	scanner := bufio.NewScanner(r)
	var outSeconds float64
	last := -1.0
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// both keys carry microseconds
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				outSeconds = float64(us) / 1e6
			}
		case "progress":
			percent := -1.0
			switch {
			case value == "end":
				percent = 100
			case duration > 0:
				percent = min(outSeconds/duration*100, 99.9)
			}
			if percent >= 0 && percent != last {
				last = percent
				report(percent)
			}
		}
	}
	return scanner.Err()
}
