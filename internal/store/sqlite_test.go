package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"belltower/internal/domain"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)",
		filepath.Join(t.TempDir(), "test.db"))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return NewSQLiteRepo(db)
}

func TestScheduleRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	trackID, err := repo.CreateTrack(ctx, domain.Track{Name: "chime", Path: "/media/chime.wav", Format: "wav"})
	if err != nil {
		t.Fatalf("CreateTrack: %v", err)
	}

	in := domain.Schedule{
		Name:    "Morning assembly",
		Days:    domain.NewDaySet(time.Monday, time.Wednesday),
		At:      domain.TimeOfDay{Hour: 7, Minute: 30},
		TrackID: &trackID,
		Active:  true,
	}
	id, err := repo.CreateSchedule(ctx, in)
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	got, err := repo.GetSchedule(ctx, id)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.Name != in.Name || got.Days != in.Days || got.At != in.At || !got.Active {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.TrackID == nil || *got.TrackID != trackID {
		t.Fatalf("track reference lost: %+v", got.TrackID)
	}
}

func TestCreateScheduleRejectsEmptyDays(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	_, err := repo.CreateSchedule(context.Background(), domain.Schedule{
		Name: "broken", At: domain.TimeOfDay{Hour: 8}, Active: true,
	})
	if err == nil {
		t.Fatal("schedule with empty day set accepted")
	}
}

func TestListActiveSchedulesFiltersInactive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	mk := func(name string, active bool) {
		t.Helper()
		_, err := repo.CreateSchedule(ctx, domain.Schedule{
			Name: name, Days: domain.NewDaySet(time.Monday),
			At: domain.TimeOfDay{Hour: 8}, Active: active,
		})
		if err != nil {
			t.Fatalf("CreateSchedule(%s): %v", name, err)
		}
	}
	mk("on", true)
	mk("off", false)

	active, err := repo.ListActiveSchedules(ctx)
	if err != nil {
		t.Fatalf("ListActiveSchedules: %v", err)
	}
	if len(active) != 1 || active[0].Name != "on" {
		t.Fatalf("active = %+v, want only the active schedule", active)
	}

	all, err := repo.ListSchedules(ctx)
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListSchedules returned %d rows, want 2", len(all))
	}
}

func TestExceptionsForDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	schedID, err := repo.CreateSchedule(ctx, domain.Schedule{
		Name: "s", Days: domain.NewDaySet(time.Monday),
		At: domain.TimeOfDay{Hour: 8}, Active: true,
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	day, _ := domain.ParseDate("2025-06-02")
	other, _ := domain.ParseDate("2025-06-03")
	if _, err := repo.CreateException(ctx, domain.Exception{Date: day, Reason: "holiday"}); err != nil {
		t.Fatalf("CreateException(all): %v", err)
	}
	if _, err := repo.CreateException(ctx, domain.Exception{Date: other, ScheduleID: &schedID, Reason: "exam"}); err != nil {
		t.Fatalf("CreateException(scoped): %v", err)
	}

	got, err := repo.ListExceptionsForDate(ctx, day)
	if err != nil {
		t.Fatalf("ListExceptionsForDate: %v", err)
	}
	if len(got) != 1 || got[0].ScheduleID != nil || got[0].Reason != "holiday" {
		t.Fatalf("exceptions for %s = %+v", day, got)
	}

	got, err = repo.ListExceptionsForDate(ctx, other)
	if err != nil {
		t.Fatalf("ListExceptionsForDate: %v", err)
	}
	if len(got) != 1 || got[0].ScheduleID == nil || *got[0].ScheduleID != schedID {
		t.Fatalf("exceptions for %s = %+v", other, got)
	}
}

func TestOccurrenceDedup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	day, _ := domain.ParseDate("2025-06-02")
	tod := domain.TimeOfDay{Hour: 8}

	inserted, err := repo.InsertOccurrence(ctx, "sch_a", day, tod)
	if err != nil {
		t.Fatalf("InsertOccurrence: %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported duplicate")
	}

	inserted, err = repo.InsertOccurrence(ctx, "sch_a", day, tod)
	if err != nil {
		t.Fatalf("duplicate InsertOccurrence: %v", err)
	}
	if inserted {
		t.Fatal("duplicate insert reported as new")
	}

	fired, err := repo.HasFired(ctx, "sch_a", day)
	if err != nil {
		t.Fatalf("HasFired: %v", err)
	}
	if !fired {
		t.Fatal("HasFired lost the record")
	}
}

func TestPurgeOccurrencesBefore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	yesterday, _ := domain.ParseDate("2025-06-01")
	today, _ := domain.ParseDate("2025-06-02")
	tod := domain.TimeOfDay{Hour: 8}

	if _, err := repo.InsertOccurrence(ctx, "sch_a", yesterday, tod); err != nil {
		t.Fatalf("insert yesterday: %v", err)
	}
	if _, err := repo.InsertOccurrence(ctx, "sch_a", today, tod); err != nil {
		t.Fatalf("insert today: %v", err)
	}

	n, err := repo.PurgeOccurrencesBefore(ctx, today)
	if err != nil {
		t.Fatalf("PurgeOccurrencesBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d rows, want 1", n)
	}
	if occ, _ := repo.ListOccurrencesOn(ctx, today); len(occ) != 1 {
		t.Fatalf("today's record missing after purge: %+v", occ)
	}
}

func TestGetScheduleNotFound(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	_, err := repo.GetSchedule(context.Background(), "sch_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
