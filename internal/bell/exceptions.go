package bell

import "belltower/internal/domain"

// DayFilter answers whether a schedule is suppressed on one calendar date.
// Absent data yields false: a missing exception always means "ring".
type DayFilter struct {
	day       domain.Date
	all       bool
	allReason string
	scoped    map[string]string // schedule id -> reason
}

// NewDayFilter builds the filter from the date's exceptions. Rows for other
// dates are ignored rather than trusted.
func NewDayFilter(day domain.Date, exceptions []domain.Exception) *DayFilter {
	f := &DayFilter{day: day, scoped: make(map[string]string)}
	for _, e := range exceptions {
		if e.Date != day {
			continue
		}
		if e.ScheduleID == nil {
			f.all = true
			if f.allReason == "" {
				f.allReason = e.Reason
			}
			continue
		}
		if _, ok := f.scoped[*e.ScheduleID]; !ok {
			f.scoped[*e.ScheduleID] = e.Reason
		}
	}
	return f
}

func (f *DayFilter) Suppressed(scheduleID string) bool {
	if f == nil {
		return false
	}
	if f.all {
		return true
	}
	_, ok := f.scoped[scheduleID]
	return ok
}

// Reason returns the recorded reason for a suppression, if any.
func (f *DayFilter) Reason(scheduleID string) string {
	if f == nil {
		return ""
	}
	if r, ok := f.scoped[scheduleID]; ok {
		return r
	}
	if f.all {
		return f.allReason
	}
	return ""
}
