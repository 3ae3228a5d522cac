package selector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	jsonpatch "github.com/evanphx/json-patch"

	"go.readwell.dev/highlights/window"
)

// SettingsName is the system_settings row holding runtime overrides.
const SettingsName = "selection"

// Config is the command line and environment configuration for selection.
type Config struct {
	Timezone     string        `default:"Asia/Dhaka" env:"HIGHLIGHTS_TZ" help:"IANA timezone the windows are evaluated in"`
	Mode         string        `default:"daily" enum:"daily,half-day,halfday" env:"HIGHLIGHTS_WINDOW_MODE" help:"Window length (daily or half-day)"`
	Capacity     int           `default:"10" env:"HIGHLIGHTS_DAILY_MAX_LIMIT" help:"Maximum number of items selected per window"`
	NoRepeat     time.Duration `default:"360h" env:"HIGHLIGHTS_NO_REPEAT" help:"Minimum rest before an item is eligible again (0 disables)"`
	DefaultLimit int           `default:"5" env:"HIGHLIGHTS_DEFAULT_LIMIT" help:"Items returned when a reader asks for no specific count"`
}

// Settings are the effective parameters for one selection run.
type Settings struct {
	Timezone string
	Mode     window.Mode
	Capacity int
	NoRepeat time.Duration
}

// settingsDoc is the JSON form used for the runtime override.
//
//	{"timezone": "UTC", "mode": "half-day", "capacity": 8, "no_repeat_days": 15}
type settingsDoc struct {
	Timezone     string  `json:"timezone"`
	Mode         string  `json:"mode"`
	Capacity     int     `json:"capacity"`
	NoRepeatDays float64 `json:"no_repeat_days"`
}

const day = 24 * time.Hour

// maxNoRepeatDays is the longest rest that fits in a time.Duration.
const maxNoRepeatDays = math.MaxInt64 / int64(day)

// Settings validates the configuration.
func (c Config) Settings() (Settings, error) {
	mode, err := window.ParseMode(c.Mode)
	if err != nil {
		return Settings{}, err
	}
	st := Settings{
		Timezone: c.Timezone,
		Mode:     mode,
		Capacity: c.Capacity,
		NoRepeat: c.NoRepeat,
	}
	return st, st.validate()
}

func (st Settings) validate() error {
	if st.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", st.Capacity)
	}
	if st.NoRepeat < 0 {
		return fmt.Errorf("no-repeat must not be negative, got %s", st.NoRepeat)
	}
	return nil
}

func (st Settings) doc() settingsDoc {
	return settingsDoc{
		Timezone:     st.Timezone,
		Mode:         st.Mode.String(),
		Capacity:     st.Capacity,
		NoRepeatDays: float64(st.NoRepeat) / float64(day),
	}
}

// MergeSettings applies a JSON merge patch (RFC 7386) to base. An empty
// or null override returns base unchanged.
func MergeSettings(base Settings, override []byte) (Settings, error) {
	override = bytes.TrimSpace(override)
	if len(override) == 0 || bytes.Equal(override, []byte("null")) {
		return base, nil
	}

	defaults, err := json.Marshal(base.doc())
	if err != nil {
		return base, err
	}

	merged, err := jsonpatch.MergePatch(defaults, override)
	if err != nil {
		return base, fmt.Errorf("merge settings: %w", err)
	}

	var doc settingsDoc
	if err := json.Unmarshal(merged, &doc); err != nil {
		return base, fmt.Errorf("parse settings: %w", err)
	}

	mode, err := window.ParseMode(doc.Mode)
	if err != nil {
		return base, err
	}
	if doc.NoRepeatDays < 0 || math.IsNaN(doc.NoRepeatDays) {
		return base, fmt.Errorf("no_repeat_days must not be negative")
	}
	if doc.NoRepeatDays > float64(maxNoRepeatDays) {
		return base, fmt.Errorf("no_repeat_days must be at most %d, got %g", maxNoRepeatDays, doc.NoRepeatDays)
	}

	st := Settings{
		Timezone: doc.Timezone,
		Mode:     mode,
		Capacity: doc.Capacity,
		NoRepeat: time.Duration(doc.NoRepeatDays * float64(day)),
	}
	if err := st.validate(); err != nil {
		return base, err
	}
	return st, nil
}

// Settings returns the configured settings with the runtime override from
// the store applied. A broken override is logged and ignored.
func (sl *Selector) Settings(ctx context.Context) Settings {
	raw, err := sl.store.SystemSetting(ctx, SettingsName)
	if err != nil {
		sl.log.WarnContext(ctx, "could not fetch selection settings", "err", err)
		return sl.base
	}

	st, err := MergeSettings(sl.base, []byte(raw))
	if err != nil {
		sl.log.WarnContext(ctx, "could not apply selection settings", "err", err)
		return sl.base
	}
	return st
}
