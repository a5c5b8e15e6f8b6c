// Package sla computes turnaround times and breach state for pending cases.
//
// The clock is an argument everywhere: callers pass requestcontext.Now(ctx) so
// tests can pin time without a mock framework.
package sla

import (
	"fmt"
	"time"
)

// DefaultHours is the turnaround window applied when an institution does not
// configure its own.
const DefaultHours = 48

// TurnaroundSeconds returns whole seconds elapsed since submission, clamped at
// zero so clock skew between writers never yields a negative turnaround.
func TurnaroundSeconds(submittedAt, now time.Time) int64 {
	secs := int64(now.Sub(submittedAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// IsBreached reports whether a still-pending case has exceeded its window.
// Vetted and rejected cases are never breached: the clock stops at decision.
func IsBreached(submittedAt, now time.Time, slaHours int, pending bool) bool {
	if !pending {
		return false
	}
	if slaHours <= 0 {
		slaHours = DefaultHours
	}
	return TurnaroundSeconds(submittedAt, now) > int64(slaHours)*3600
}

// FormatTurnaround renders elapsed seconds for dashboards and exports:
// "2d 03h 04m", "05h 06m", "7m", or "<1m" under a minute.
func FormatTurnaround(seconds int64) string {
	if seconds < 60 {
		return "<1m"
	}
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %02dh %02dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%02dh %02dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
