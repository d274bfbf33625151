// Package localtime derives calendar dates and hours from wall-clock time
// in a named IANA time zone. The scheduler's daily rollover and threshold
// gate both run on these values rather than on server-local time.
package localtime

import (
	"fmt"
	"sync"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Provider is the clock surface the scheduler depends on. Tests substitute
// a fixed implementation to simulate date rollover without real delay.
type Provider interface {
	Date(timezone string) (string, error)
	Hour(timezone string) (int, error)
	DateTime(timezone string) (string, error)
}

// WallClock implements Provider from the system clock, caching resolved
// time zone locations.
type WallClock struct {
	mu        sync.Mutex
	locations map[string]*time.Location
}

func NewWallClock() *WallClock {
	return &WallClock{locations: make(map[string]*time.Location)}
}

func (w *WallClock) location(timezone string) (*time.Location, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if loc, ok := w.locations[timezone]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", timezone, err)
	}
	w.locations[timezone] = loc
	return loc, nil
}

func (w *WallClock) Date(timezone string) (string, error) {
	loc, err := w.location(timezone)
	if err != nil {
		return "", err
	}
	return time.Now().In(loc).Format(DateLayout), nil
}

func (w *WallClock) Hour(timezone string) (int, error) {
	loc, err := w.location(timezone)
	if err != nil {
		return 0, err
	}
	return time.Now().In(loc).Hour(), nil
}

func (w *WallClock) DateTime(timezone string) (string, error) {
	loc, err := w.location(timezone)
	if err != nil {
		return "", err
	}
	return time.Now().In(loc).Format(DateTimeLayout), nil
}
