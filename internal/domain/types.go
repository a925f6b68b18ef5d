package domain

import "time"

// Schedule is a recurring bell: ring At on every weekday in Days.
// Multiple schedules may share the same time; all of them ring.
type Schedule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Days      DaySet    `json:"days"`
	At        TimeOfDay `json:"at"`
	TrackID   *string   `json:"track_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exception suppresses ringing on one calendar date. A nil ScheduleID
// suppresses every schedule that day; otherwise only the referenced one.
type Exception struct {
	ID         string    `json:"id"`
	Date       Date      `json:"date"`
	ScheduleID *string   `json:"schedule_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// Track is an uploaded audio file. Duration is informational only;
// playback never depends on it being accurate.
type Track struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	Duration  float64   `json:"duration_seconds"`
	CreatedAt time.Time `json:"created_at"`
}

// Occurrence records that a schedule rang (or was attempted) on a date.
// At most one exists per (ScheduleID, Date).
type Occurrence struct {
	ScheduleID string    `json:"schedule_id"`
	Date       Date      `json:"date"`
	FiredAt    TimeOfDay `json:"fired_at"`
}
