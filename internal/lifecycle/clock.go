// Package lifecycle derives an auction's Open/Closed phase from wall-clock
// time. It holds no state; callers pass one `now` snapshot per logical
// request so two parts of the same response cannot disagree on openness.
package lifecycle

import (
	"time"

	"surplusbid/internal/domain"
)

// Remaining returns the time left until endTime. open is false once now is
// strictly past endTime; at exactly endTime the auction is still open.
func Remaining(endTime, now time.Time) (remaining time.Duration, open bool) {
	if now.After(endTime) {
		return 0, false
	}
	return endTime.Sub(now), true
}

// IsOpen reports whether bids may be accepted. The stored status is
// advisory: an auction explicitly marked ended is closed even before its
// endTime, and a stale active status never keeps a lot open past endTime.
func IsOpen(status domain.Status, endTime, now time.Time) bool {
	if status != domain.StatusActive {
		return false
	}
	_, open := Remaining(endTime, now)
	return open
}
