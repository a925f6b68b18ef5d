package bell

import (
	"testing"
	"time"

	"belltower/internal/domain"
)

// monday is 2025-06-02, a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(h, m, s int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

func sched(id string, days domain.DaySet, tod domain.TimeOfDay) domain.Schedule {
	return domain.Schedule{ID: id, Name: id, Days: days, At: tod, Active: true}
}

func noFilter() *DayFilter { return NewDayFilter(domain.DateOf(monday), nil) }

func TestResolveExactSecond(t *testing.T) {
	t.Parallel()
	schedules := []domain.Schedule{
		sched("sch_a", domain.NewDaySet(time.Monday), domain.TimeOfDay{Hour: 8}),
	}
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "one second early", now: at(7, 59, 59), want: 0},
		{name: "on the second", now: at(8, 0, 0), want: 1},
		{name: "one second late", now: at(8, 0, 1), want: 0},
		{name: "wrong weekday", now: at(8, 0, 0).AddDate(0, 0, 1), want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			due := Resolve(tt.now, schedules, noFilter(), time.Second)
			if len(due) != tt.want {
				t.Fatalf("Resolve at %v returned %d schedules, want %d", tt.now, len(due), tt.want)
			}
		})
	}
}

func TestResolveWidenedWindow(t *testing.T) {
	t.Parallel()
	schedules := []domain.Schedule{
		sched("sch_a", domain.NewDaySet(time.Monday), domain.TimeOfDay{Hour: 8}),
	}
	if got := Resolve(at(8, 0, 3), schedules, noFilter(), 5*time.Second); len(got) != 1 {
		t.Fatalf("delayed tick inside window: got %d matches", len(got))
	}
	if got := Resolve(at(8, 0, 5), schedules, noFilter(), 5*time.Second); len(got) != 0 {
		t.Fatalf("tick past window: got %d matches", len(got))
	}
}

func TestResolveSkipsInactive(t *testing.T) {
	t.Parallel()
	s := sched("sch_a", domain.NewDaySet(time.Monday), domain.TimeOfDay{Hour: 8})
	s.Active = false
	if got := Resolve(at(8, 0, 0), []domain.Schedule{s}, noFilter(), time.Second); len(got) != 0 {
		t.Fatal("inactive schedule resolved as due")
	}
}

func TestResolveOrderAndSharedSecond(t *testing.T) {
	t.Parallel()
	tod := domain.TimeOfDay{Hour: 8}
	schedules := []domain.Schedule{
		sched("sch_b", domain.NewDaySet(time.Monday), tod),
		sched("sch_a", domain.NewDaySet(time.Monday), tod),
		sched("sch_c", domain.NewDaySet(time.Monday), tod),
	}
	due := Resolve(at(8, 0, 0), schedules, noFilter(), time.Second)
	if len(due) != 3 {
		t.Fatalf("want all 3 schedules due, got %d", len(due))
	}
	for i, want := range []string{"sch_a", "sch_b", "sch_c"} {
		if due[i].ID != want {
			t.Fatalf("dispatch order[%d] = %s, want %s", i, due[i].ID, want)
		}
	}
}

func TestResolveScopedException(t *testing.T) {
	t.Parallel()
	day := domain.DateOf(monday)
	target := "sch_a"
	filter := NewDayFilter(day, []domain.Exception{
		{ID: "exc_1", Date: day, ScheduleID: &target, Reason: "exam day"},
	})
	tod := domain.TimeOfDay{Hour: 8}
	schedules := []domain.Schedule{
		sched("sch_a", domain.NewDaySet(time.Monday), tod),
		sched("sch_b", domain.NewDaySet(time.Monday), tod),
	}
	due := Resolve(at(8, 0, 0), schedules, filter, time.Second)
	if len(due) != 1 || due[0].ID != "sch_b" {
		t.Fatalf("scoped exception: due = %+v, want only sch_b", due)
	}
}

func TestResolveGlobalException(t *testing.T) {
	t.Parallel()
	day := domain.DateOf(monday)
	filter := NewDayFilter(day, []domain.Exception{
		{ID: "exc_1", Date: day, Reason: "public holiday"},
	})
	schedules := []domain.Schedule{
		sched("sch_a", domain.NewDaySet(time.Monday), domain.TimeOfDay{Hour: 8}),
		sched("sch_b", domain.NewDaySet(time.Monday), domain.TimeOfDay{Hour: 12}),
	}
	for _, now := range []time.Time{at(8, 0, 0), at(12, 0, 0)} {
		if got := Resolve(now, schedules, filter, time.Second); len(got) != 0 {
			t.Fatalf("global exception: %v still due at %v", got, now)
		}
	}
}

func TestDayFilterIgnoresOtherDates(t *testing.T) {
	t.Parallel()
	day := domain.DateOf(monday)
	filter := NewDayFilter(day, []domain.Exception{
		{ID: "exc_1", Date: day.AddDays(1)}, // tomorrow, not today
	})
	if filter.Suppressed("sch_a") {
		t.Fatal("exception for another date suppressed today")
	}
}

func TestResolveIsPure(t *testing.T) {
	t.Parallel()
	schedules := []domain.Schedule{
		sched("sch_a", domain.NewDaySet(time.Monday), domain.TimeOfDay{Hour: 8}),
	}
	first := Resolve(at(8, 0, 0), schedules, noFilter(), time.Second)
	second := Resolve(at(8, 0, 0), schedules, noFilter(), time.Second)
	if len(first) != len(second) || first[0].ID != second[0].ID {
		t.Fatal("identical inputs resolved differently")
	}
}
