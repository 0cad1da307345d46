package offers

import "time"

// DayBounds returns the UTC bounds [start, end) of the calendar day containing
// now in loc. Daily caps reset at local midnight.
func DayBounds(loc *time.Location, now time.Time) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

// CapRemaining is max(0, capDaily - todayCount).
func CapRemaining(capDaily int, todayCount int64) int {
	remaining := int64(capDaily) - todayCount
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}
