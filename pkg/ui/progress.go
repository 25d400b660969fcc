package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// Bar renders processed out of total as a fixed width bar
func Bar(processed, total, width int) string {
	filled := 0
	if total > 0 {
		filled = processed * width / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// ETA estimates the time left from the rate since start
func ETA(processed, total int, elapsed time.Duration) string {
	if processed <= 0 || processed >= total {
		return "--"
	}
	perItem := elapsed / time.Duration(processed)
	return FormatDuration(perItem * time.Duration(total-processed))
}

// FormatDuration renders d compactly, such as 4m05s or 1h02m
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
