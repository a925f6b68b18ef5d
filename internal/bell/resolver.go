package bell

import (
	"sort"
	"time"

	"belltower/internal/domain"
)

// Resolve returns the schedules due at now: active, weekday in Days,
// wall-clock time within [At, At+window), and not suppressed by the day's
// exceptions. The result is ordered by schedule id ascending so dispatch is
// deterministic. Pure function of its inputs.
//
// With the default 1s window, second-resolution times make the match
// second-exact: a schedule fires only within the single second its time
// names. A wider window tolerates delayed ticks; the occurrence tracker
// keeps the widened match from ringing twice.
func Resolve(now time.Time, schedules []domain.Schedule, filter *DayFilter, window time.Duration) []domain.Schedule {
	winSecs := int(window / time.Second)
	if winSecs < 1 {
		winSecs = 1
	}
	weekday := now.Weekday()
	secs := domain.TimeOfDayOf(now).SecondsFromMidnight()

	var due []domain.Schedule
	for _, s := range schedules {
		if !s.Active || !s.Days.Has(weekday) {
			continue
		}
		start := s.At.SecondsFromMidnight()
		if secs < start || secs >= start+winSecs {
			continue
		}
		if filter.Suppressed(s.ID) {
			continue
		}
		due = append(due, s)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due
}
