// Package timeexpr resolves the relative time expressions accepted by graph
// cards and history queries and provides the duration rounding and formatting
// helpers shared by the dashboard and shell front ends.
package timeexpr

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultLookback is the window applied when an expression cannot be parsed.
const DefaultLookback = 24 * time.Hour

// isoLayouts are tried in order for absolute timestamps.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Resolve converts a time expression into an absolute timestamp. Relative
// expressions take the form "-<n><unit>" with unit h, d or m ("-2h", "-7d",
// "-30m"); anything else is tried as an ISO-8601 timestamp. Unparseable
// input, including a bare "24h" without the leading minus, resolves to now
// minus DefaultLookback so callers can always proceed with a query.
func Resolve(expr string, now time.Time) time.Time {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return now.Add(-DefaultLookback)
	}

	if strings.HasPrefix(expr, "-") {
		if len(expr) >= 3 {
			if n, err := strconv.Atoi(expr[1 : len(expr)-1]); err == nil {
				switch expr[len(expr)-1] {
				case 'h':
					return now.Add(-time.Duration(n) * time.Hour)
				case 'd':
					return now.Add(-time.Duration(n) * 24 * time.Hour)
				case 'm':
					return now.Add(-time.Duration(n) * time.Minute)
				}
			}
		}
		return now.Add(-DefaultLookback)
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, expr); err == nil {
			return t
		}
	}
	return now.Add(-DefaultLookback)
}

// RoundNice rounds a duration to the nearest whole unit of its magnitude.
// Durations of a day or more round to whole days, an hour or more to whole
// hours, a minute or more to whole minutes, and anything shorter to whole
// seconds. 1h42m becomes 2h, 6h25m becomes 6h.
func RoundNice(d time.Duration) time.Duration {
	s := d.Seconds()
	switch {
	case s >= 86400:
		return time.Duration(math.Round(s/86400)) * 24 * time.Hour
	case s >= 3600:
		return time.Duration(math.Round(s/3600)) * time.Hour
	case s >= 60:
		return time.Duration(math.Round(s/60)) * time.Minute
	default:
		return time.Duration(math.Round(s)) * time.Second
	}
}

// FormatHuman renders a duration using its one or two most significant
// units: days with hours, hours with minutes, or minutes with seconds.
// Zero and negative durations render as "0s".
func FormatHuman(d time.Duration) string {
	total := int(d.Seconds())
	if total <= 0 {
		return "0s"
	}

	days := total / 86400
	rem := total % 86400
	hours := rem / 3600
	rem %= 3600
	minutes := rem / 60
	seconds := rem % 60

	var parts []string
	if days > 0 {
		parts = append(parts, strconv.Itoa(days)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.Itoa(hours)+"h")
	}
	if minutes > 0 && days == 0 {
		parts = append(parts, strconv.Itoa(minutes)+"m")
	}
	if seconds > 0 && days == 0 && hours == 0 {
		parts = append(parts, strconv.Itoa(seconds)+"s")
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}
