package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"belltower/internal/domain"
)

var ErrNotFound = errors.New("not found")

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS tracks (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  path TEXT NOT NULL,
  format TEXT NOT NULL DEFAULT '',
  duration_seconds REAL NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS schedules (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  days TEXT NOT NULL,
  at_time TEXT NOT NULL,
  track_id TEXT REFERENCES tracks(id) ON DELETE SET NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_schedules_active ON schedules(active, at_time);
CREATE TABLE IF NOT EXISTS exceptions (
  id TEXT PRIMARY KEY,
  date TEXT NOT NULL,
  schedule_id TEXT REFERENCES schedules(id) ON DELETE CASCADE,
  reason TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_exceptions_date ON exceptions(date);
CREATE TABLE IF NOT EXISTS occurrences (
  schedule_id TEXT NOT NULL,
  date TEXT NOT NULL,
  fired_at TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(schedule_id, date)
);
CREATE INDEX IF NOT EXISTS idx_occurrences_date ON occurrences(date);
`
	_, err := db.Exec(schema)
	return err
}

type Repository interface {
	// Schedule operations
	CreateSchedule(ctx context.Context, s domain.Schedule) (string, error)
	GetSchedule(ctx context.Context, id string) (domain.Schedule, error)
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)
	ListActiveSchedules(ctx context.Context) ([]domain.Schedule, error)
	UpdateSchedule(ctx context.Context, s domain.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error

	// Exception operations
	CreateException(ctx context.Context, e domain.Exception) (string, error)
	ListExceptions(ctx context.Context) ([]domain.Exception, error)
	ListExceptionsForDate(ctx context.Context, day domain.Date) ([]domain.Exception, error)
	DeleteException(ctx context.Context, id string) error

	// Track operations
	CreateTrack(ctx context.Context, t domain.Track) (string, error)
	GetTrack(ctx context.Context, id string) (domain.Track, error)
	ListTracks(ctx context.Context) ([]domain.Track, error)
	DeleteTrack(ctx context.Context, id string) error

	// Occurrence operations
	InsertOccurrence(ctx context.Context, scheduleID string, day domain.Date, at domain.TimeOfDay) (bool, error)
	HasFired(ctx context.Context, scheduleID string, day domain.Date) (bool, error)
	ListOccurrencesOn(ctx context.Context, day domain.Date) ([]domain.Occurrence, error)
	PurgeOccurrencesBefore(ctx context.Context, day domain.Date) (int, error)
}

type sqliteRepo struct{ db *sql.DB }

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db} }

func (r *sqliteRepo) CreateSchedule(ctx context.Context, s domain.Schedule) (string, error) {
	id := s.ID
	if id == "" {
		id = "sch_" + uuid.NewString()
	}
	if s.Days.Empty() {
		return "", fmt.Errorf("schedule needs at least one weekday")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO schedules (id,name,days,at_time,track_id,active,created_at,updated_at)
VALUES (?,?,?,?,?,?,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
`, id, s.Name, s.Days.String(), s.At.String(), s.TrackID, s.Active)
	return id, err
}

func (r *sqliteRepo) GetSchedule(ctx context.Context, id string) (domain.Schedule, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,name,days,at_time,track_id,active,created_at,updated_at
FROM schedules WHERE id=?`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, ErrNotFound
	}
	return s, err
}

func (r *sqliteRepo) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	return r.querySchedules(ctx, `
SELECT id,name,days,at_time,track_id,active,created_at,updated_at
FROM schedules ORDER BY at_time, id`)
}

func (r *sqliteRepo) ListActiveSchedules(ctx context.Context) ([]domain.Schedule, error) {
	return r.querySchedules(ctx, `
SELECT id,name,days,at_time,track_id,active,created_at,updated_at
FROM schedules WHERE active=1 ORDER BY at_time, id`)
}

func (r *sqliteRepo) querySchedules(ctx context.Context, query string) ([]domain.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanSchedule(row scanner) (domain.Schedule, error) {
	var (
		s       domain.Schedule
		days    string
		at      string
		trackID sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Name, &days, &at, &trackID, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Schedule{}, err
	}
	var err error
	if s.Days, err = domain.ParseDaySet(days); err != nil {
		return domain.Schedule{}, fmt.Errorf("schedule %s: %w", s.ID, err)
	}
	if s.At, err = domain.ParseTimeOfDay(at); err != nil {
		return domain.Schedule{}, fmt.Errorf("schedule %s: %w", s.ID, err)
	}
	if trackID.Valid {
		v := trackID.String
		s.TrackID = &v
	}
	return s, nil
}

func (r *sqliteRepo) UpdateSchedule(ctx context.Context, s domain.Schedule) error {
	if s.Days.Empty() {
		return fmt.Errorf("schedule needs at least one weekday")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE schedules SET name=?,days=?,at_time=?,track_id=?,active=?,updated_at=CURRENT_TIMESTAMP
WHERE id=?`, s.Name, s.Days.String(), s.At.String(), s.TrackID, s.Active, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepo) DeleteSchedule(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id=?", id)
	return err
}

func (r *sqliteRepo) CreateException(ctx context.Context, e domain.Exception) (string, error) {
	id := e.ID
	if id == "" {
		id = "exc_" + uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO exceptions (id,date,schedule_id,reason,created_at)
VALUES (?,?,?,?,CURRENT_TIMESTAMP)
`, id, e.Date.String(), e.ScheduleID, e.Reason)
	return id, err
}

func (r *sqliteRepo) ListExceptions(ctx context.Context) ([]domain.Exception, error) {
	return r.queryExceptions(ctx, `
SELECT id,date,schedule_id,reason,created_at
FROM exceptions ORDER BY date DESC, id`)
}

func (r *sqliteRepo) ListExceptionsForDate(ctx context.Context, day domain.Date) ([]domain.Exception, error) {
	return r.queryExceptions(ctx, `
SELECT id,date,schedule_id,reason,created_at
FROM exceptions WHERE date=? ORDER BY id`, day.String())
}

func (r *sqliteRepo) queryExceptions(ctx context.Context, query string, args ...any) ([]domain.Exception, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exceptions []domain.Exception
	for rows.Next() {
		var (
			e          domain.Exception
			date       string
			scheduleID sql.NullString
		)
		if err := rows.Scan(&e.ID, &date, &scheduleID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Date, err = domain.ParseDate(date); err != nil {
			return nil, fmt.Errorf("exception %s: %w", e.ID, err)
		}
		if scheduleID.Valid {
			v := scheduleID.String
			e.ScheduleID = &v
		}
		exceptions = append(exceptions, e)
	}
	return exceptions, rows.Err()
}

func (r *sqliteRepo) DeleteException(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM exceptions WHERE id=?", id)
	return err
}

func (r *sqliteRepo) CreateTrack(ctx context.Context, t domain.Track) (string, error) {
	id := t.ID
	if id == "" {
		id = "trk_" + uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tracks (id,name,path,format,duration_seconds,created_at)
VALUES (?,?,?,?,?,CURRENT_TIMESTAMP)
`, id, t.Name, t.Path, t.Format, t.Duration)
	return id, err
}

func (r *sqliteRepo) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,name,path,format,duration_seconds,created_at
FROM tracks WHERE id=?`, id)
	var t domain.Track
	err := row.Scan(&t.ID, &t.Name, &t.Path, &t.Format, &t.Duration, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Track{}, ErrNotFound
	}
	return t, err
}

func (r *sqliteRepo) ListTracks(ctx context.Context) ([]domain.Track, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,name,path,format,duration_seconds,created_at
FROM tracks ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []domain.Track
	for rows.Next() {
		var t domain.Track
		if err := rows.Scan(&t.ID, &t.Name, &t.Path, &t.Format, &t.Duration, &t.CreatedAt); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func (r *sqliteRepo) DeleteTrack(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tracks WHERE id=?", id)
	return err
}

// InsertOccurrence writes the dedup record for one (schedule, date) pair.
// The INSERT OR IGNORE runs as a single statement, so a concurrent reader
// never observes a half-written record. Returns false if the pair had
// already fired.
func (r *sqliteRepo) InsertOccurrence(ctx context.Context, scheduleID string, day domain.Date, at domain.TimeOfDay) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO occurrences (schedule_id,date,fired_at) VALUES (?,?,?)
`, scheduleID, day.String(), at.String())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *sqliteRepo) HasFired(ctx context.Context, scheduleID string, day domain.Date) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM occurrences WHERE schedule_id=? AND date=?", scheduleID, day.String())
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *sqliteRepo) ListOccurrencesOn(ctx context.Context, day domain.Date) ([]domain.Occurrence, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT schedule_id,date,fired_at FROM occurrences WHERE date=?", day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occ []domain.Occurrence
	for rows.Next() {
		var (
			o    domain.Occurrence
			date string
			at   string
		)
		if err := rows.Scan(&o.ScheduleID, &date, &at); err != nil {
			return nil, err
		}
		if o.Date, err = domain.ParseDate(date); err != nil {
			return nil, err
		}
		if o.FiredAt, err = domain.ParseTimeOfDay(at); err != nil {
			return nil, err
		}
		occ = append(occ, o)
	}
	return occ, rows.Err()
}

// PurgeOccurrencesBefore drops records strictly older than day. Date strings
// sort lexicographically, so a plain comparison is enough.
func (r *sqliteRepo) PurgeOccurrencesBefore(ctx context.Context, day domain.Date) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM occurrences WHERE date < ?", day.String())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
