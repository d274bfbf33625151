package localtime

import (
	"strings"
	"testing"
)

func TestWallClockKnownZone(t *testing.T) {
	clock := NewWallClock()

	date, err := clock.Date("Asia/Shanghai")
	if err != nil {
		t.Fatalf("Date failed: %v", err)
	}
	if len(date) != len(DateLayout) || strings.Count(date, "-") != 2 {
		t.Errorf("unexpected date format: %q", date)
	}

	hour, err := clock.Hour("Asia/Shanghai")
	if err != nil {
		t.Fatalf("Hour failed: %v", err)
	}
	if hour < 0 || hour > 23 {
		t.Errorf("hour out of range: %d", hour)
	}

	dt, err := clock.DateTime("Asia/Shanghai")
	if err != nil {
		t.Fatalf("DateTime failed: %v", err)
	}
	if !strings.HasPrefix(dt, date[:8]) {
		t.Errorf("datetime %q does not share the date prefix with %q", dt, date)
	}
}

func TestWallClockUnknownZone(t *testing.T) {
	clock := NewWallClock()

	if _, err := clock.Date("Not/AZone"); err == nil {
		t.Error("expected error for unknown zone")
	}
	if _, err := clock.Hour("Not/AZone"); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestWallClockCachesLocation(t *testing.T) {
	clock := NewWallClock()

	if _, err := clock.Date("UTC"); err != nil {
		t.Fatalf("Date failed: %v", err)
	}
	if len(clock.locations) != 1 {
		t.Errorf("expected 1 cached location, got %d", len(clock.locations))
	}

	clock.Date("UTC")
	if len(clock.locations) != 1 {
		t.Errorf("repeat lookup grew the cache: %d", len(clock.locations))
	}
}
