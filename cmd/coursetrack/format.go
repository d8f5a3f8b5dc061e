package main

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// formatSeconds renders a duration as h:mm:ss or m:ss.
func formatSeconds(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "0:00"
	}
	total := int64(math.Round(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatOptionalSeconds(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return formatSeconds(*seconds)
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(time.DateTime), humanize.Time(t))
}

func formatPercent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

func formatIndex(v *int) string {
	if v == nil {
		return "-"
	}
	return humanize.Comma(int64(*v))
}
