package bell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"belltower/internal/domain"
)

var ErrNoUpcomingBell = errors.New("no upcoming bell")

// cronParser enables the seconds field so second-resolution bell times
// resolve exactly.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// CronExpr renders a schedule as a 6-field cron expression.
func CronExpr(s domain.Schedule) string {
	return fmt.Sprintf("%d %d %d * * %s", s.At.Second, s.At.Minute, s.At.Hour, s.Days)
}

// NextOccurrence returns the first instant strictly after `after` at which
// the schedule is due, ignoring exceptions.
func NextOccurrence(s domain.Schedule, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(CronExpr(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %s: %w", s.ID, err)
	}
	return sched.Next(after), nil
}

// nextAllowed walks occurrences forward, skipping dates the exceptions
// suppress, until one is allowed or the horizon is exhausted.
func nextAllowed(ctx context.Context, storage Storage, s domain.Schedule, after time.Time, horizon time.Duration) (time.Time, error) {
	limit := after.Add(horizon)
	probe := after
	for {
		candidate, err := NextOccurrence(s, probe)
		if err != nil {
			return time.Time{}, err
		}
		if candidate.IsZero() || candidate.After(limit) {
			return time.Time{}, ErrNoUpcomingBell
		}
		day := domain.DateOf(candidate)
		exceptions, err := storage.ListExceptionsForDate(ctx, day)
		if err != nil {
			return time.Time{}, err
		}
		if !NewDayFilter(day, exceptions).Suppressed(s.ID) {
			return candidate, nil
		}
		// Skip the whole suppressed date.
		probe = day.AddDays(1).In(candidate.Location()).Add(-time.Nanosecond)
	}
}

// NextBell returns the earliest upcoming bell across all active schedules,
// honoring exceptions, searching up to horizon past `after`. Ties break by
// schedule id for determinism.
func NextBell(ctx context.Context, storage Storage, after time.Time, horizon time.Duration) (domain.Schedule, time.Time, error) {
	schedules, err := storage.ListActiveSchedules(ctx)
	if err != nil {
		return domain.Schedule{}, time.Time{}, err
	}

	var (
		best   domain.Schedule
		bestAt time.Time
	)
	for _, s := range schedules {
		at, err := nextAllowed(ctx, storage, s, after, horizon)
		if errors.Is(err, ErrNoUpcomingBell) {
			continue
		}
		if err != nil {
			return domain.Schedule{}, time.Time{}, err
		}
		if bestAt.IsZero() || at.Before(bestAt) || (at.Equal(bestAt) && s.ID < best.ID) {
			best, bestAt = s, at
		}
	}
	if bestAt.IsZero() {
		return domain.Schedule{}, time.Time{}, ErrNoUpcomingBell
	}
	return best, bestAt, nil
}

// DayBell is one timetable entry for a calendar date.
type DayBell struct {
	Schedule   domain.Schedule `json:"schedule"`
	Suppressed bool            `json:"suppressed"`
	Reason     string          `json:"reason,omitempty"`
}

// ResolveDay lists the schedules that land on a date, in time order, with
// their suppression status. Inactive schedules are excluded.
func ResolveDay(ctx context.Context, storage Storage, day domain.Date) ([]DayBell, error) {
	schedules, err := storage.ListActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}
	exceptions, err := storage.ListExceptionsForDate(ctx, day)
	if err != nil {
		return nil, err
	}
	filter := NewDayFilter(day, exceptions)

	weekday := day.Weekday()
	var bells []DayBell
	for _, s := range schedules {
		if !s.Days.Has(weekday) {
			continue
		}
		suppressed := filter.Suppressed(s.ID)
		bells = append(bells, DayBell{
			Schedule:   s,
			Suppressed: suppressed,
			Reason:     filter.Reason(s.ID),
		})
	}
	return bells, nil
}
