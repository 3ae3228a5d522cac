package window

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestBoundsDaily(t *testing.T) {
	dhaka := mustZone(t, "Asia/Dhaka")
	now := time.Date(2025, 9, 17, 10, 15, 0, 0, dhaka)

	d := Bounds(now, dhaka, Daily)
	assert.Equal(t, "2025-09-17", d.Key)
	assert.Equal(t, "2025-09-17", d.Date())
	assert.True(t, d.Start.Equal(time.Date(2025, 9, 16, 18, 0, 0, 0, time.UTC)))
	assert.True(t, d.End.Equal(time.Date(2025, 9, 17, 18, 0, 0, 0, time.UTC)))
	assert.True(t, d.Contains(now))
	assert.Equal(t, 24*time.Hour, d.End.Sub(d.Start))

	t.Run("utc instant on the previous utc day", func(t *testing.T) {
		// 20:00Z on the 16th is already 02:00 on the 17th in Dhaka
		d := Bounds(time.Date(2025, 9, 16, 20, 0, 0, 0, time.UTC), dhaka, Daily)
		assert.Equal(t, "2025-09-17", d.Key)
	})

	t.Run("start is inclusive and end exclusive", func(t *testing.T) {
		start := time.Date(2025, 9, 17, 0, 0, 0, 0, dhaka)
		assert.Equal(t, "2025-09-17", Bounds(start, dhaka, Daily).Key)
		assert.Equal(t, "2025-09-16", Bounds(start.Add(-time.Nanosecond), dhaka, Daily).Key)
	})
}

func TestBoundsHalfDay(t *testing.T) {
	dhaka := mustZone(t, "Asia/Dhaka")

	tests := []struct {
		name  string
		hour  int
		key   string
		start time.Time
		end   time.Time
	}{
		{"morning", 10, "2025-09-17_00",
			time.Date(2025, 9, 17, 0, 0, 0, 0, dhaka), time.Date(2025, 9, 17, 12, 0, 0, 0, dhaka)},
		{"afternoon", 14, "2025-09-17_12",
			time.Date(2025, 9, 17, 12, 0, 0, 0, dhaka), time.Date(2025, 9, 18, 0, 0, 0, 0, dhaka)},
		{"noon exactly", 12, "2025-09-17_12",
			time.Date(2025, 9, 17, 12, 0, 0, 0, dhaka), time.Date(2025, 9, 18, 0, 0, 0, 0, dhaka)},
		{"midnight", 0, "2025-09-17_00",
			time.Date(2025, 9, 17, 0, 0, 0, 0, dhaka), time.Date(2025, 9, 17, 12, 0, 0, 0, dhaka)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2025, 9, 17, tt.hour, 15, 0, 0, dhaka)
			d := Bounds(now, dhaka, HalfDay)
			assert.Equal(t, tt.key, d.Key)
			assert.True(t, d.Start.Equal(tt.start), "start %s", d.Start)
			assert.True(t, d.End.Equal(tt.end), "end %s", d.End)
			assert.Equal(t, 12*time.Hour, d.End.Sub(d.Start))
			assert.Equal(t, "2025-09-17", d.Date())
		})
	}
}

func TestBoundsDST(t *testing.T) {
	ny := mustZone(t, "America/New_York")

	spring := Bounds(time.Date(2025, 3, 9, 15, 0, 0, 0, ny), ny, Daily)
	assert.Equal(t, "2025-03-09", spring.Key)
	assert.Equal(t, 23*time.Hour, spring.End.Sub(spring.Start))

	fall := Bounds(time.Date(2025, 11, 2, 15, 0, 0, 0, ny), ny, Daily)
	assert.Equal(t, "2025-11-02", fall.Key)
	assert.Equal(t, 25*time.Hour, fall.End.Sub(fall.Start))

	// the morning half absorbs the transition
	am := Bounds(time.Date(2025, 3, 9, 9, 0, 0, 0, ny), ny, HalfDay)
	assert.Equal(t, "2025-03-09_00", am.Key)
	assert.Equal(t, 11*time.Hour, am.End.Sub(am.Start))
}

// Chile and Cuba move their clocks forward at midnight, so the first
// instant of the day is 01:00.
func TestBoundsSkippedMidnight(t *testing.T) {
	tests := []struct {
		zone      string
		day       [3]int
		start     time.Time // first instant of day, UTC
		end       time.Time // first instant of the next day, UTC
		dayLength time.Duration
	}{
		{"America/Santiago", [3]int{2024, 9, 8},
			time.Date(2024, 9, 8, 4, 0, 0, 0, time.UTC),
			time.Date(2024, 9, 9, 3, 0, 0, 0, time.UTC), 23 * time.Hour},
		{"America/Havana", [3]int{2024, 3, 10},
			time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 11, 4, 0, 0, 0, time.UTC), 23 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			loc := mustZone(t, tt.zone)
			y, m, d := tt.day[0], time.Month(tt.day[1]), tt.day[2]
			key := fmt.Sprintf("%04d-%02d-%02d", y, m, d)
			prevKey := time.Date(y, m, d-1, 12, 0, 0, 0, time.UTC).Format(time.DateOnly)

			morning := time.Date(y, m, d, 10, 0, 0, 0, loc)
			day := Bounds(morning, loc, Daily)
			assert.Equal(t, key, day.Key)
			assert.Equal(t, key, day.Date())
			assert.True(t, day.Start.Equal(tt.start), "start %s", day.Start)
			assert.True(t, day.End.Equal(tt.end), "end %s", day.End)
			assert.Equal(t, tt.dayLength, day.End.Sub(day.Start))
			assert.True(t, day.Contains(morning))

			am := Bounds(morning, loc, HalfDay)
			assert.Equal(t, key+"_00", am.Key)
			assert.True(t, am.Start.Equal(tt.start), "start %s", am.Start)
			assert.Equal(t, 11*time.Hour, am.End.Sub(am.Start))

			// the last half hour of the previous day still belongs to it
			late := tt.start.Add(-30 * time.Minute)
			prev := Bounds(late, loc, Daily)
			assert.Equal(t, prevKey, prev.Key)
			assert.True(t, prev.Contains(late), "%s not in [%s, %s)", late, prev.Start, prev.End)
			assert.True(t, prev.End.Equal(tt.start), "end %s", prev.End)
			assert.Equal(t, 24*time.Hour, prev.End.Sub(prev.Start))

			pm := Bounds(late, loc, HalfDay)
			assert.Equal(t, prevKey+"_12", pm.Key)
			assert.True(t, pm.Contains(late))

			// every instant of the day maps to the day's key
			assert.Equal(t, key, Bounds(tt.start, loc, Daily).Key)
			assert.Equal(t, key, Bounds(tt.end.Add(-time.Nanosecond), loc, Daily).Key)
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":         Daily,
		"daily":    Daily,
		"DAILY":    Daily,
		"half-day": HalfDay,
		"halfday":  HalfDay,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("weekly")
	assert.Error(t, err)
}

func TestClockInvalidTimezone(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	c := NewClock(log)

	now := time.Date(2025, 9, 17, 4, 15, 0, 0, time.UTC)

	for range 3 {
		d := c.Current(now, "Mars/Olympus_Mons", Daily)
		assert.Equal(t, Bounds(now, time.Local, Daily), d)
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "invalid timezone"))

	loc, ok := c.Location("Mars/Olympus_Mons")
	assert.False(t, ok)
	assert.Equal(t, time.Local, loc)
	assert.True(t, c.invalid["Mars/Olympus_Mons"], "bad name is remembered")
	assert.NotContains(t, c.zones, "Mars/Olympus_Mons")

	c.Current(now, "", Daily)
	assert.Equal(t, 2, strings.Count(buf.String(), "invalid timezone"))

	loc, ok = c.Location("Asia/Dhaka")
	assert.True(t, ok)
	assert.Equal(t, "Asia/Dhaka", loc.String())
	assert.Equal(t, "2025-09-17_00", c.Current(now, "Asia/Dhaka", HalfDay).Key)
	assert.Equal(t, 2, strings.Count(buf.String(), "invalid timezone"))
}
