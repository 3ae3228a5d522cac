// Package window maps an instant to the recurring selection window that
// contains it.
//
// A window is either a local calendar day or one half of it, evaluated in a
// named IANA timezone. Each window has a canonical key ("2025-09-17" for a
// day, "2025-09-17_00" or "2025-09-17_12" for a half-day) that identifies
// the persisted selection for that window.
package window

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type Mode string

const (
	Daily   Mode = "daily"
	HalfDay Mode = "half-day"
)

// ParseMode accepts "daily", "half-day" and the legacy "halfday" spelling.
// An empty string selects Daily.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "daily", "day":
		return Daily, nil
	case "half-day", "halfday", "half_day":
		return HalfDay, nil
	}
	return "", fmt.Errorf("unknown window mode %q", s)
}

func (m Mode) String() string {
	return string(m)
}

// Descriptor is the window containing a particular instant. Start is
// inclusive and End exclusive.
type Descriptor struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Date is the local calendar date of the window.
func (d Descriptor) Date() string {
	return d.Start.Format(time.DateOnly)
}

func (d Descriptor) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

// Bounds computes the window for now in loc. End is the next local midnight
// (or noon), so a window spanning a DST transition is 23 or 25 hours long.
// In zones where the clocks skip midnight the day starts at the transition.
func Bounds(now time.Time, loc *time.Location, mode Mode) Descriptor {
	local := now.In(loc)
	y, m, d := local.Date()

	midnight := wallClock(y, m, d, 0, loc)
	next := wallClock(y, m, d+1, 0, loc)
	date := fmt.Sprintf("%04d-%02d-%02d", y, m, d)

	if mode != HalfDay {
		return Descriptor{Key: date, Start: midnight, End: next}
	}

	noon := wallClock(y, m, d, 12, loc)
	if !local.Before(noon) {
		return Descriptor{Key: date + "_12", Start: noon, End: next}
	}
	return Descriptor{Key: date + "_00", Start: midnight, End: noon}
}

// wallClock returns the first instant at or after hour:00 on the given local
// date. When that wall time does not exist, time.Date may normalize it to an
// earlier instant; the zone transition that skipped it is used instead.
func wallClock(y int, m time.Month, d, hour int, loc *time.Location) time.Time {
	t := time.Date(y, m, d, hour, 0, 0, 0, loc)

	want := time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
	got := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	if got.Before(want) {
		if _, end := t.ZoneBounds(); !end.IsZero() {
			return end
		}
	}
	return t
}

// Clock resolves timezone names for Bounds. Unknown names fall back to the
// system local zone; each unknown name is looked up and logged once per
// Clock.
type Clock struct {
	log *slog.Logger

	mu      sync.Mutex
	zones   map[string]*time.Location
	invalid map[string]bool
}

func NewClock(log *slog.Logger) *Clock {
	if log == nil {
		log = slog.Default()
	}
	return &Clock{
		log:     log,
		zones:   map[string]*time.Location{},
		invalid: map[string]bool{},
	}
}

// Location returns the zone for name and whether name was valid.
func (c *Clock) Location(name string) (*time.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if loc, ok := c.zones[name]; ok {
		return loc, true
	}
	if c.invalid[name] {
		return time.Local, false
	}

	// LoadLocation("") is UTC, which would hide a missing setting.
	var (
		loc *time.Location
		err = fmt.Errorf("empty timezone")
	)
	if name != "" {
		loc, err = time.LoadLocation(name)
	}
	if err != nil {
		c.invalid[name] = true
		c.log.Warn("invalid timezone, using system local zone",
			"timezone", name, "local", time.Local.String(), "err", err)
		return time.Local, false
	}

	c.zones[name] = loc
	return loc, true
}

// Current returns the window containing now for the named timezone.
func (c *Clock) Current(now time.Time, tz string, mode Mode) Descriptor {
	loc, _ := c.Location(tz)
	return Bounds(now, loc, mode)
}
