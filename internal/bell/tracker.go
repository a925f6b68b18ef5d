package bell

import (
	"context"

	"github.com/rs/zerolog"

	"belltower/internal/domain"
)

// OccurrenceStore persists fired occurrences so the at-most-once guarantee
// survives a restart within the same day. store.Repository satisfies it; an
// in-memory implementation exists for tests and storage-less runs.
type OccurrenceStore interface {
	InsertOccurrence(ctx context.Context, scheduleID string, day domain.Date, at domain.TimeOfDay) (bool, error)
	ListOccurrencesOn(ctx context.Context, day domain.Date) ([]domain.Occurrence, error)
	PurgeOccurrencesBefore(ctx context.Context, day domain.Date) (int, error)
}

type occKey struct {
	scheduleID string
	date       string
}

// Tracker enforces at most one firing per (schedule, date). It is the single
// source of truth for dedup; callers do not re-check around it. Mutated only
// by the scheduler loop goroutine, so it carries no lock.
type Tracker struct {
	store OccurrenceStore
	log   zerolog.Logger
	fired map[occKey]struct{}
}

func NewTracker(store OccurrenceStore, log zerolog.Logger) *Tracker {
	return &Tracker{store: store, log: log, fired: make(map[occKey]struct{})}
}

// Prime loads the day's persisted occurrences so a restarted process does
// not re-ring bells that already fired today.
func (t *Tracker) Prime(ctx context.Context, day domain.Date) error {
	occ, err := t.store.ListOccurrencesOn(ctx, day)
	if err != nil {
		return err
	}
	for _, o := range occ {
		t.fired[occKey{scheduleID: o.ScheduleID, date: o.Date.String()}] = struct{}{}
	}
	return nil
}

func (t *Tracker) HasFired(scheduleID string, day domain.Date) bool {
	_, ok := t.fired[occKey{scheduleID: scheduleID, date: day.String()}]
	return ok
}

// MarkFired records the occurrence. A duplicate mark is a logged no-op, not
// an error. A store failure is returned but the in-memory record is kept, so
// the current process still won't double-ring.
func (t *Tracker) MarkFired(ctx context.Context, scheduleID string, day domain.Date, at domain.TimeOfDay) error {
	key := occKey{scheduleID: scheduleID, date: day.String()}
	if _, ok := t.fired[key]; ok {
		t.log.Warn().Str("schedule", scheduleID).Str("date", day.String()).
			Msg("occurrence already marked fired")
		return nil
	}
	t.fired[key] = struct{}{}

	inserted, err := t.store.InsertOccurrence(ctx, scheduleID, day, at)
	if err != nil {
		return err
	}
	if !inserted {
		t.log.Warn().Str("schedule", scheduleID).Str("date", day.String()).
			Msg("occurrence already persisted")
	}
	return nil
}

// PurgeStale drops records for dates strictly before day, bounding memory.
func (t *Tracker) PurgeStale(ctx context.Context, day domain.Date) (int, error) {
	cutoff := day.String()
	for key := range t.fired {
		if key.date < cutoff {
			delete(t.fired, key)
		}
	}
	return t.store.PurgeOccurrencesBefore(ctx, day)
}
