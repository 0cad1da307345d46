package redemptions

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// HoursWindow is a daily window in minutes after local midnight. When End is
// not after Start the window wraps past midnight.
type HoursWindow struct {
	Start int
	End   int
}

var (
	hoursSeparator = regexp.MustCompile(`\s*(?:-|–|—|\bto\b)\s*`)
	clockPattern   = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?$`)
)

// ParseActiveHours reads windows like "9am-5pm", "9:30am to 2pm", "9-5" or
// "17:00-23:30". Values it cannot read are display-only and never restrict
// redemption.
func ParseActiveHours(raw string) (HoursWindow, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return HoursWindow{}, false
	}
	parts := hoursSeparator.Split(value, -1)
	if len(parts) != 2 {
		return HoursWindow{}, false
	}
	startMeridiem := meridiemOf(parts[0])
	endMeridiem := meridiemOf(parts[1])
	end, ok := parseClock(parts[1], endMeridiem)
	if !ok {
		return HoursWindow{}, false
	}
	borrowed := startMeridiem == "" && endMeridiem != ""
	if borrowed {
		startMeridiem = endMeridiem
	}
	start, ok := parseClock(parts[0], startMeridiem)
	if !ok {
		return HoursWindow{}, false
	}
	// "11-2pm" means 11am, "1-5pm" means 1pm.
	if borrowed && endMeridiem == "pm" && start >= end {
		if start, ok = parseClock(parts[0], "am"); !ok {
			return HoursWindow{}, false
		}
	}
	// Bare "9-5" or "10-6" is a daytime window that ends in the afternoon.
	if startMeridiem == "" && endMeridiem == "" && start > end && start < 13*60 && end >= 60 && end < 12*60 {
		end += 12 * 60
	}
	if start == end {
		return HoursWindow{}, false
	}
	return HoursWindow{Start: start, End: end}, true
}

// Contains reports whether the wall clock of t falls inside the window.
func (w HoursWindow) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	if w.Start < w.End {
		return minute >= w.Start && minute < w.End
	}
	return minute >= w.Start || minute < w.End
}

func meridiemOf(part string) string {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(part))
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[3], ".", "")
}

func parseClock(part, meridiem string) (int, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(part))
	if m == nil {
		return 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	minute := 0
	if m[2] != "" {
		if minute, err = strconv.Atoi(m[2]); err != nil || minute > 59 {
			return 0, false
		}
	}
	switch meridiem {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "pm" {
			hour += 12
		}
	default:
		if hour > 24 || (hour == 24 && minute > 0) {
			return 0, false
		}
	}
	return hour*60 + minute, true
}
