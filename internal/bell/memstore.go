package bell

import (
	"context"

	"belltower/internal/domain"
)

// MemOccurrenceStore is an in-memory OccurrenceStore. Dedup then holds only
// for the current process lifetime.
type MemOccurrenceStore struct {
	records map[occKey]domain.Occurrence
}

func NewMemOccurrenceStore() *MemOccurrenceStore {
	return &MemOccurrenceStore{records: make(map[occKey]domain.Occurrence)}
}

func (m *MemOccurrenceStore) InsertOccurrence(_ context.Context, scheduleID string, day domain.Date, at domain.TimeOfDay) (bool, error) {
	key := occKey{scheduleID: scheduleID, date: day.String()}
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = domain.Occurrence{ScheduleID: scheduleID, Date: day, FiredAt: at}
	return true, nil
}

func (m *MemOccurrenceStore) ListOccurrencesOn(_ context.Context, day domain.Date) ([]domain.Occurrence, error) {
	var out []domain.Occurrence
	for _, o := range m.records {
		if o.Date == day {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MemOccurrenceStore) PurgeOccurrencesBefore(_ context.Context, day domain.Date) (int, error) {
	n := 0
	cutoff := day.String()
	for key := range m.records {
		if key.date < cutoff {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}
