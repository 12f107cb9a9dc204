package temporal

import (
	"time"

	"meridian/models"
)

// Symbolic date references understood by ResolveRelativeDate.
const (
	Today    = "today"
	Tomorrow = "tomorrow"
	NextWeek = "next_week"
)

// ResolveRelativeDate maps a symbolic reference to an ISO date anchored on
// tc. Any other value is returned unchanged; validating it is the caller's job.
func ResolveRelativeDate(reference string, tc models.TemporalContext) string {
	switch reference {
	case Today:
		return tc.CurrentDate
	case Tomorrow:
		return shift(tc, 1)
	case NextWeek:
		return shift(tc, 7)
	default:
		return reference
	}
}

// AvailableDates returns daysAhead consecutive dates starting at the
// current date inclusive. A non-positive count selects DefaultDaysAhead.
func AvailableDates(tc models.TemporalContext, daysAhead int) []string {
	if daysAhead <= 0 {
		daysAhead = DefaultDaysAhead
	}
	base, err := civilDate(tc.CurrentDate)
	if err != nil {
		return []string{}
	}
	dates := make([]string, 0, daysAhead)
	for i := 0; i < daysAhead; i++ {
		dates = append(dates, base.AddDate(0, 0, i).Format(isoDate))
	}
	return dates
}

// IsISODate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsISODate(s string) bool {
	_, err := civilDate(s)
	return err == nil
}

// DaysFromToday returns how many days date lies after the current date
// (negative for the past).
func DaysFromToday(date string, tc models.TemporalContext) (int, error) {
	base, err := civilDate(tc.CurrentDate)
	if err != nil {
		return 0, err
	}
	d, err := civilDate(date)
	if err != nil {
		return 0, err
	}
	return int(d.Sub(base).Hours() / 24), nil
}

func shift(tc models.TemporalContext, days int) string {
	base, err := civilDate(tc.CurrentDate)
	if err != nil {
		return tc.CurrentDate
	}
	return base.AddDate(0, 0, days).Format(isoDate)
}

// civilDate parses a date at UTC midnight so that arithmetic never crosses
// a DST transition.
func civilDate(s string) (time.Time, error) {
	return time.ParseInLocation(isoDate, s, time.UTC)
}
