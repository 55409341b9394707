// Package availability decides whether a requested service time falls inside
// a listing's operating days and hours. It is a pure function of its inputs
// and is safe to run both in clients (for feedback) and in the server (as the
// authoritative check).
package availability

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultLeadTime is the minimum gap between now and a requested slot.
const DefaultLeadTime = 30 * time.Minute

// Violation identifies which constraint a candidate time broke.
type Violation string

const (
	ViolationNone      Violation = ""
	ViolationLeadTime  Violation = "LEAD_TIME"
	ViolationWeekday   Violation = "WEEKDAY"
	ViolationHourRange Violation = "HOUR_RANGE"
)

// Window is a listing's configured availability.
type Window struct {
	// Days holds weekday names, full or three-letter, any case. Entries may
	// themselves be comma separated ("Mon,Wed,Fri"). Empty means every day.
	Days []string
	// Hours is a free-form range such as "9:00 AM – 6:00 PM" or "09:00-18:00".
	// Empty or unparseable means no hour restriction.
	Hours string
}

// Result is the outcome of a validation.
type Result struct {
	Valid        bool
	Violation    Violation
	Reason       string
	AllowedDays  []string
	AllowedHours string
}

// Validate checks candidate against w at time now with the default lead time.
func Validate(w Window, candidate, now time.Time) Result {
	return ValidateWithLeadTime(w, candidate, now, DefaultLeadTime)
}

// ValidateWithLeadTime is Validate with an explicit minimum lead time.
// Weekday and time-of-day are read in candidate's location.
func ValidateWithLeadTime(w Window, candidate, now time.Time, leadTime time.Duration) Result {
	days := normalizeDays(w.Days)
	res := Result{
		AllowedDays:  splitDays(w.Days),
		AllowedHours: strings.TrimSpace(w.Hours),
	}

	if !candidate.After(now) {
		res.Violation = ViolationLeadTime
		res.Reason = "Requested time is in the past"
		return res
	}
	if candidate.Before(now.Add(leadTime)) {
		res.Violation = ViolationLeadTime
		res.Reason = fmt.Sprintf("Requested time must be at least %d minutes from now", int(leadTime.Minutes()))
		return res
	}

	if len(days) > 0 {
		if _, ok := days[candidate.Weekday()]; !ok {
			res.Violation = ViolationWeekday
			res.Reason = fmt.Sprintf("Service is not available on %s. Available days: %s",
				candidate.Weekday(), strings.Join(res.AllowedDays, ", "))
			return res
		}
	}

	if hr, ok := ParseHourRange(w.Hours); ok && !hr.Contains(candidate) {
		res.Violation = ViolationHourRange
		res.Reason = fmt.Sprintf("Requested time %s is outside service hours %s",
			candidate.Format("15:04"), res.AllowedHours)
		return res
	}

	res.Valid = true
	return res
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

func splitDays(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// normalizeDays maps configured names onto weekdays. Unknown names are
// ignored; if nothing is recognised the set is empty and all days pass.
func normalizeDays(raw []string) map[time.Weekday]struct{} {
	set := make(map[time.Weekday]struct{})
	for _, d := range splitDays(raw) {
		name := strings.ToLower(d)
		if len(name) < 3 {
			continue
		}
		if wd, ok := weekdayNames[name[:3]]; ok {
			set[wd] = struct{}{}
		}
	}
	return set
}

// HourRange is a parsed daily opening window in minutes after midnight.
// End before Start means the window runs past midnight.
type HourRange struct {
	Start int
	End   int
}

// Contains reports whether t's time of day is inside the range. Start is
// inclusive, End is inclusive.
func (r HourRange) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if r.Start <= r.End {
		return m >= r.Start && m <= r.End
	}
	return m >= r.Start || m <= r.End
}

var (
	rangeSeparator = regexp.MustCompile(`\s*(?:-|–|—|‒|−|to)\s*`)
	clockPattern   = regexp.MustCompile(`(?i)^(\d{1,2})(?:[:.](\d{2}))?\s*([ap]\.?m\.?)?$`)
)

// ParseHourRange parses "start–end" in 12- or 24-hour form. The second
// return is false when the input is empty or not understood.
func ParseHourRange(s string) (HourRange, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return HourRange{}, false
	}
	parts := rangeSeparator.Split(s, -1)
	if len(parts) != 2 {
		return HourRange{}, false
	}
	// A side without AM/PM is read as 24-hour time.
	startMeridiem, endMeridiem := meridiemOf(parts[0]), meridiemOf(parts[1])
	start, ok := parseClock(parts[0], startMeridiem)
	if !ok {
		return HourRange{}, false
	}
	end, ok := parseClock(parts[1], endMeridiem)
	if !ok {
		return HourRange{}, false
	}
	// "9 - 5" is a daytime range written without markers, not an overnight
	// one. Only a start past noon makes a bare wrap unambiguous ("22:00-06:00").
	if startMeridiem == "" && endMeridiem == "" && end < start && start < 13*60 {
		return HourRange{}, false
	}
	return HourRange{Start: start, End: end}, true
}

func meridiemOf(s string) string {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || m[3] == "" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(m[3], ".", ""))
}

func parseClock(s, meridiem string) (int, bool) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
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
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 24 || (hour == 24 && minute != 0) {
			return 0, false
		}
		if hour == 24 {
			return 24*60 - 1, true
		}
	}
	return hour*60 + minute, true
}
