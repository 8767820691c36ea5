package domain

import "time"

// WorkingWindow bounds the clock times a plan entry may be scheduled into,
// shared by the Planner's learned-adjustment shift (§4.3 step 3) and the
// Nudger's snooze shift (§4.4) so both clamp the same way.
type WorkingWindow struct {
	Start time.Duration // offset from local midnight, e.g. 9h
	End   time.Duration // offset from local midnight, e.g. 18h
}

// DefaultWorkingWindow is used when a user has not configured one.
var DefaultWorkingWindow = WorkingWindow{Start: 9 * time.Hour, End: 18 * time.Hour}

// Clamp pins t's time-of-day into [Start, End] on the same calendar day,
// preserving t's date and location.
func (w WorkingWindow) Clamp(t time.Time) time.Time {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	lower := dayStart.Add(w.Start)
	upper := dayStart.Add(w.End)
	if t.Before(lower) {
		return lower
	}
	if t.After(upper) {
		return upper
	}
	return t
}
