package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.ntppool.org/common/logger"

	"go.readwell.dev/highlights/hldb"
)

// Cmd provides the command structure for CLI integration
type Cmd struct {
	Ensure   EnsureCmd   `cmd:"" help:"create the current window's selection if missing"`
	Show     ShowCmd     `cmd:"" help:"print the current window's highlights as JSON"`
	Status   StatusCmd   `cmd:"" help:"show the current window and selection state"`
	Reset    ResetCmd    `cmd:"" help:"delete and regenerate the current window's selection"`
	Simulate SimulateCmd `cmd:"" help:"show what would be selected without saving anything"`
	History  HistoryCmd  `cmd:"" help:"list recent selections"`
	Settings SettingsCmd `cmd:"" help:"show or change the runtime selection settings"`
}

type (
	EnsureCmd struct{}
	ShowCmd   struct {
		Limit int `short:"n" default:"0" help:"Number of highlights (0 for the default)"`
	}
	StatusCmd struct{}
	ResetCmd  struct {
		Yes bool `help:"Confirm the reset"`
	}
	SimulateCmd struct {
		Verbose bool `flag:"verbose" short:"v" help:"Enable verbose debug logging"`
	}
	HistoryCmd struct {
		Limit int `short:"n" default:"10" help:"Number of selections"`
	}
	SettingsCmd struct {
		Set string `help:"JSON merge patch to store as the runtime override (use 'null' to clear)"`
	}
)

// Open connects to the database and returns a selector using it. The
// returned function closes the database.
func Open(ctx context.Context, dbcfg *hldb.DBConfig, cfg *Config, metrics *Metrics) (*Selector, *DBStore, func(), error) {
	dbconn, err := hldb.OpenDB(ctx, *dbcfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := NewDBStore(dbconn)
	sl, err := NewSelector(store, *cfg, logger.FromContext(ctx), metrics)
	if err != nil {
		dbconn.Close()
		return nil, nil, nil, err
	}
	return sl, store, func() { dbconn.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (cmd EnsureCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig, cfg *Config) error {
	sl, _, closeDB, err := Open(ctx, dbcfg, cfg, nil)
	if err != nil {
		return err
	}
	defer closeDB()

	sel, win, err := sl.EnsureSelection(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d highlights (window ends %s)\n", win.Key, sel.Size(), win.End.Format(time.RFC3339))
	return nil
}

type highlightView struct {
	ID        string     `json:"id"`
	BookTitle string     `json:"bookTitle,omitempty"`
	Author    string     `json:"author,omitempty"`
	Location  string     `json:"location,omitempty"`
	Page      string     `json:"page,omitempty"`
	DateAdded *time.Time `json:"dateAdded,omitempty"`
	Content   string     `json:"content"`
	Lang      string     `json:"lang,omitempty"`
}

func newHighlightView(h hldb.Highlight) highlightView {
	v := highlightView{
		ID:        h.ID,
		BookTitle: h.BookTitle.String,
		Author:    h.Author.String,
		Location:  h.Location.String,
		Page:      h.Page.String,
		Content:   h.Content,
		Lang:      h.Lang.String,
	}
	if h.DateAdded.Valid {
		t := h.DateAdded.Time
		v.DateAdded = &t
	}
	return v
}

type showResponse struct {
	WindowKey  string          `json:"windowKey"`
	Date       string          `json:"date"`
	Timezone   string          `json:"timezone"`
	Count      int             `json:"count"`
	Highlights []highlightView `json:"highlights"`
}

func (cmd ShowCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig, cfg *Config) error {
	sl, store, closeDB, err := Open(ctx, dbcfg, cfg, nil)
	if err != nil {
		return err
	}
	defer closeDB()

	resp, err := show(ctx, sl, store, cmd.Limit)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, resp)
}

func show(ctx context.Context, sl *Selector, store *DBStore, limit int) (*showResponse, error) {
	sel, win, err := sl.EnsureSelection(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := Resolve[hldb.Highlight](ctx, store, sel, limit, sl.DefaultLimit())
	if err != nil {
		return nil, err
	}

	resp := &showResponse{
		WindowKey:  win.Key,
		Date:       win.Date(),
		Timezone:   sel.Timezone,
		Count:      len(rows),
		Highlights: make([]highlightView, 0, len(rows)),
	}
	for _, h := range rows {
		resp.Highlights = append(resp.Highlights, newHighlightView(h))
	}
	return resp, nil
}

func (cmd StatusCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig, cfg *Config) error {
	sl, _, closeDB, err := Open(ctx, dbcfg, cfg, nil)
	if err != nil {
		return err
	}
	defer closeDB()

	status, err := sl.Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, status)
}

func (cmd ResetCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig, cfg *Config) error {
	if !cmd.Yes {
		return fmt.Errorf("reset replaces the selection readers may already have seen; add --yes to confirm")
	}

	sl, _, closeDB, err := Open(ctx, dbcfg, cfg, nil)
	if err != nil {
		return err
	}
	defer closeDB()

	sel, win, err := sl.Reset(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s: reset, %d highlights\n", win.Key, sel.Size())
	return nil
}

func (cmd SimulateCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig, cfg *Config) error {
	log := logger.FromContext(ctx)

	if cmd.Verbose {
		debugHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		log = slog.New(debugHandler)
		ctx = logger.NewContext(ctx, log)
	}

	sl, _, closeDB, err := Open(ctx, dbcfg, cfg, nil)
	if err != nil {
		return err
	}
	defer closeDB()

	sel, win, persisted, err := sl.Preview(ctx)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	log.InfoContext(ctx, "simulation completed",
		"key", win.Key,
		"persisted", persisted,
		"size", sel.Size())

	return printJSON(os.Stdout, struct {
		Persisted bool       `json:"persisted"`
		Selection *Selection `json:"selection"`
	}{persisted, sel})
}

func (cmd HistoryCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig, cfg *Config) error {
	sl, _, closeDB, err := Open(ctx, dbcfg, cfg, nil)
	if err != nil {
		return err
	}
	defer closeDB()

	sels, err := sl.History(ctx, cmd.Limit)
	if err != nil {
		return err
	}
	for _, s := range sels {
		fmt.Printf("%-16s %-20s %3d/%-3d %s\n", s.Key, s.Timezone, len(s.ItemIDs), s.Capacity, s.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func (cmd SettingsCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig, cfg *Config) error {
	sl, store, closeDB, err := Open(ctx, dbcfg, cfg, nil)
	if err != nil {
		return err
	}
	defer closeDB()

	if len(cmd.Set) > 0 {
		// validate against the configured defaults before storing
		if _, err := MergeSettings(sl.base, []byte(cmd.Set)); err != nil {
			return err
		}
		if err := store.SetSystemSetting(ctx, SettingsName, cmd.Set, sl.Now()); err != nil {
			return err
		}
	}

	st := sl.Settings(ctx)
	return printJSON(os.Stdout, st.doc())
}
