package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want TimeOfDay
		ok   bool
	}{
		{raw: "08:00:00", want: TimeOfDay{Hour: 8}, ok: true},
		{raw: "08:00", want: TimeOfDay{Hour: 8}, ok: true},
		{raw: "23:59:59", want: TimeOfDay{Hour: 23, Minute: 59, Second: 59}, ok: true},
		{raw: "24:00:00", ok: false},
		{raw: "8am", ok: false},
		{raw: "", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.raw)
			if tt.ok != (err == nil) {
				t.Fatalf("ParseTimeOfDay(%q) error = %v, want ok=%v", tt.raw, err, tt.ok)
			}
			if tt.ok && got != tt.want {
				t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTimeOfDayString(t *testing.T) {
	t.Parallel()
	got := TimeOfDay{Hour: 7, Minute: 5, Second: 9}.String()
	if got != "07:05:09" {
		t.Fatalf("String() = %q", got)
	}
}

func TestDateOrdering(t *testing.T) {
	t.Parallel()
	a, _ := ParseDate("2025-06-02")
	b, _ := ParseDate("2025-06-03")
	if !a.Before(b) || b.Before(a) {
		t.Fatal("date ordering broken")
	}
	if a.AddDays(1) != b {
		t.Fatalf("AddDays(1) = %v, want %v", a.AddDays(1), b)
	}
	if a.Weekday() != time.Monday {
		t.Fatalf("2025-06-02 weekday = %v, want Monday", a.Weekday())
	}
}

func TestParseDaySet(t *testing.T) {
	t.Parallel()
	s, err := ParseDaySet("mon, Wed,FRI")
	if err != nil {
		t.Fatalf("ParseDaySet error: %v", err)
	}
	for _, d := range []time.Weekday{time.Monday, time.Wednesday, time.Friday} {
		if !s.Has(d) {
			t.Fatalf("missing %v", d)
		}
	}
	if s.Has(time.Sunday) {
		t.Fatal("unexpected Sunday")
	}
	if got := s.String(); got != "Mon,Wed,Fri" {
		t.Fatalf("String() = %q", got)
	}

	if _, err := ParseDaySet(""); err == nil {
		t.Fatal("expected error for empty day set")
	}
	if _, err := ParseDaySet("funday"); err == nil {
		t.Fatal("expected error for bogus weekday")
	}
}

func TestScheduleJSONRoundTrip(t *testing.T) {
	t.Parallel()
	trackID := "trk_1"
	in := Schedule{
		ID:      "sch_1",
		Name:    "Morning assembly",
		Days:    NewDaySet(time.Monday, time.Friday),
		At:      TimeOfDay{Hour: 8},
		TrackID: &trackID,
		Active:  true,
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Schedule
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Days != in.Days || out.At != in.At || out.Name != in.Name {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
