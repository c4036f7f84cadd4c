package sys

import (
	"fmt"
	"strings"
	"time"
)

// ===========================
// Duration formatting
// ===========================

// FormatDurationFR renders a duration in French, the language of the bot's
// user-facing cooldown messages. Units are days, hours and minutes; the last
// two parts are joined with "et", earlier parts with commas:
//
//	90 minutes  -> "1 heure et 30 minutes"
//	25h30       -> "1 jour, 1 heure et 30 minutes"
//	45 seconds  -> "moins d'une minute"
func FormatDurationFR(d time.Duration) string {
	if d < time.Minute {
		return "moins d'une minute"
	}

	totalMinutes := int(d.Minutes())
	days := totalMinutes / (24 * 60)
	hours := (totalMinutes % (24 * 60)) / 60
	minutes := totalMinutes % 60

	var parts []string
	if days > 0 {
		parts = append(parts, pluralFR(days, "jour"))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, pluralFR(hours, "heure"))
	}
	parts = append(parts, pluralFR(minutes, "minute"))

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " et " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " et " + parts[len(parts)-1]
	}
}

func pluralFR(n int, unit string) string {
	if n >= 2 {
		return fmt.Sprintf("%d %ss", n, unit)
	}
	return fmt.Sprintf("%d %s", n, unit)
}
