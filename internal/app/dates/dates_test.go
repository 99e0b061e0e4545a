package dates

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDayBounds(t *testing.T) {
	noon := time.Date(2026, time.March, 14, 12, 30, 45, 123, time.UTC)

	start := DayStart(noon)
	if !start.Equal(date(2026, time.March, 14)) {
		t.Fatalf("DayStart = %v", start)
	}

	end := DayEnd(noon)
	if end.Day() != 14 || end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
		t.Fatalf("DayEnd = %v", end)
	}
	if !end.Before(date(2026, time.March, 15)) {
		t.Fatalf("DayEnd crossed into the next day: %v", end)
	}
}

func TestBeforeDay(t *testing.T) {
	lateMonday := time.Date(2026, time.March, 2, 23, 0, 0, 0, time.UTC)
	earlyTuesday := time.Date(2026, time.March, 3, 1, 0, 0, 0, time.UTC)

	if !BeforeDay(lateMonday, earlyTuesday) {
		t.Fatal("monday should precede tuesday regardless of time of day")
	}
	if BeforeDay(earlyTuesday, lateMonday) {
		t.Fatal("tuesday is not before monday")
	}
	if BeforeDay(lateMonday, lateMonday.Add(30*time.Minute)) {
		t.Fatal("same calendar day must not compare as before")
	}
}

func TestRangeContains(t *testing.T) {
	window := Range{Start: date(2026, time.January, 10), End: date(2026, time.January, 20)}

	cases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"inside", date(2026, time.January, 15), true},
		{"start day late evening", time.Date(2026, time.January, 10, 23, 59, 0, 0, time.UTC), true},
		{"end day late evening", time.Date(2026, time.January, 20, 23, 59, 0, 0, time.UTC), true},
		{"day before start", date(2026, time.January, 9), false},
		{"day after end", date(2026, time.January, 21), false},
	}
	for _, tc := range cases {
		if got := window.Contains(tc.t); got != tc.want {
			t.Errorf("%s: Contains(%v) = %v, want %v", tc.name, tc.t, got, tc.want)
		}
	}
}

func TestRangeOpenEnds(t *testing.T) {
	onlyStart := Range{Start: date(2026, time.January, 10)}
	if onlyStart.Contains(date(2026, time.January, 9)) {
		t.Fatal("open-ended range must still honour its start bound")
	}
	if !onlyStart.Contains(date(2030, time.December, 31)) {
		t.Fatal("open-ended range must accept any later date")
	}

	var zero Range
	if !zero.IsZero() {
		t.Fatal("zero range should report IsZero")
	}
	if !zero.Contains(date(1990, time.June, 1)) {
		t.Fatal("zero range constrains nothing")
	}
}
