// Package policy interprets focus rules: time windows, exceptions, the set of
// domains to block and the grayscale target. Everything here is pure; callers
// pass the current time and config snapshot in and persist results themselves.
package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// InWindow reports whether now's wall-clock time falls inside [start, end].
// Both ends are inclusive. A window with start > end wraps past midnight.
func InWindow(now time.Time, start, end domain.ClockTime) bool {
	t := sinceMidnight(now)
	s, e := start.SinceMidnight(), end.SinceMidnight()

	if s <= e {
		return t >= s && t <= e
	}
	return t >= s || t <= e
}

// sinceMidnight keeps seconds and nanoseconds, so 08:00:30 is after an 08:00 end.
func sinceMidnight(now time.Time) time.Duration {
	h, m, s := now.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(now.Nanosecond())
}
