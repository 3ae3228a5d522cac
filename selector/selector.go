package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.ntppool.org/common/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go.readwell.dev/highlights/seeded"
	"go.readwell.dev/highlights/ulid"
	"go.readwell.dev/highlights/window"
)

// Selector materializes selections for the current window
type Selector struct {
	store        Store
	base         Settings
	defaultLimit int
	clock        *window.Clock
	log          *slog.Logger
	metrics      *Metrics
	now          func() time.Time
}

type Option func(*Selector)

// WithNow replaces the wall clock, for tests and simulations.
func WithNow(fn func() time.Time) Option {
	return func(sl *Selector) {
		sl.now = fn
	}
}

// NewSelector creates a new selector instance. metrics may be nil.
func NewSelector(store Store, cfg Config, log *slog.Logger, metrics *Metrics, opts ...Option) (*Selector, error) {
	base, err := cfg.Settings()
	if err != nil {
		return nil, fmt.Errorf("selection config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	sl := &Selector{
		store:        store,
		base:         base,
		defaultLimit: cfg.DefaultLimit,
		clock:        window.NewClock(log),
		log:          log,
		metrics:      metrics,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(sl)
	}
	return sl, nil
}

func (sl *Selector) Now() time.Time {
	return sl.now()
}

func (sl *Selector) DefaultLimit() int {
	return sl.defaultLimit
}

// Window returns the window containing now under the effective settings.
func (sl *Selector) Window(ctx context.Context, now time.Time) (window.Descriptor, Settings) {
	st := sl.Settings(ctx)
	return sl.clock.Current(now, st.Timezone, st.Mode), st
}

// EnsureSelection returns the selection for the current window, creating
// it if this is the first request for the window.
func (sl *Selector) EnsureSelection(ctx context.Context) (*Selection, window.Descriptor, error) {
	return sl.EnsureSelectionAt(ctx, sl.now())
}

// EnsureSelectionAt is EnsureSelection for the window containing now.
func (sl *Selector) EnsureSelectionAt(ctx context.Context, now time.Time) (*Selection, window.Descriptor, error) {
	ctx, span := tracing.Start(ctx, "selector.EnsureSelection")
	defer span.End()

	start := time.Now()
	result := "error"
	defer func() {
		if sl.metrics != nil {
			sl.metrics.EnsureDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		}
	}()

	win, st := sl.Window(ctx, now)
	span.SetAttributes(attribute.String("window.key", win.Key))

	sel, err := sl.store.GetSelection(ctx, win.Key)
	switch {
	case err == nil:
		result = "hit"
		sl.log.DebugContext(ctx, "selection exists", "key", win.Key, "size", sel.Size())
		sl.observeSize(sel)
		return sel, win, nil
	case !errors.Is(err, ErrNotFound):
		return nil, win, spanError(span, fmt.Errorf("get selection %q: %w", win.Key, err))
	}

	sel, err = sl.build(ctx, sl.store, win, st, now)
	if err != nil {
		return nil, win, spanError(span, err)
	}

	err = sl.store.Transaction(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.InsertSelection(ctx, sel); err != nil {
			return err
		}
		if len(sel.ItemIDs) == 0 {
			return nil
		}
		n, err := tx.MarkServed(ctx, sel.ItemIDs, now)
		if err != nil {
			return fmt.Errorf("mark served: %w", err)
		}
		if sl.metrics != nil {
			sl.metrics.ItemsMarked.Add(float64(n))
		}
		return nil
	})

	if errors.Is(err, ErrConflict) {
		result = "conflict"
		if sl.metrics != nil {
			sl.metrics.SelectionConflicts.Inc()
		}
		sl.log.DebugContext(ctx, "selection created concurrently, using stored record", "key", win.Key)

		existing, err := sl.store.GetSelection(ctx, win.Key)
		if err != nil {
			return nil, win, spanError(span, fmt.Errorf("get selection %q after conflict: %w", win.Key, err))
		}
		sl.observeSize(existing)
		return existing, win, nil
	}
	if err != nil {
		return nil, win, spanError(span, fmt.Errorf("save selection %q: %w", win.Key, err))
	}

	result = "created"
	if sl.metrics != nil {
		sl.metrics.SelectionsCreated.Inc()
	}
	sl.observeSize(sel)
	sl.log.InfoContext(ctx, "selection created",
		"key", win.Key,
		"timezone", st.Timezone,
		"size", len(sel.ItemIDs),
		"capacity", st.Capacity,
	)

	return sel, win, nil
}

// build computes, without saving, the selection for win.
func (sl *Selector) build(ctx context.Context, store Store, win window.Descriptor, st Settings, now time.Time) (*Selection, error) {
	cutoff := Cutoff(now, st.NoRepeat)

	pool, err := sl.loadPool(ctx, store, cutoff, st.Capacity)
	if err != nil {
		return nil, err
	}

	candidates := SelectCandidates(pool, cutoff, st.Capacity)
	ids := seeded.Shuffle(candidates, win.Key)
	if len(ids) > st.Capacity {
		ids = ids[:st.Capacity]
	}

	id, err := ulid.String(now)
	if err != nil {
		return nil, fmt.Errorf("selection id: %w", err)
	}

	return &Selection{
		ID:        id,
		Key:       win.Key,
		Timezone:  st.Timezone,
		Capacity:  st.Capacity,
		ItemIDs:   ids,
		CreatedAt: now,
	}, nil
}

// loadPool reads the eligible items and, when they cannot fill capacity,
// just enough of the longest-rested recent items to make up the shortfall.
func (sl *Selector) loadPool(ctx context.Context, store Store, cutoff time.Time, capacity int) ([]Item, error) {
	if capacity <= 0 {
		return nil, nil
	}

	filter := ItemFilter{}
	if !cutoff.IsZero() {
		filter.ServedBefore = &cutoff
	}
	eligible, err := store.FindItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find eligible items: %w", err)
	}
	if sl.metrics != nil {
		sl.metrics.EligibleItems.Set(float64(len(eligible)))
	}
	if len(eligible) >= capacity || cutoff.IsZero() {
		return eligible, nil
	}

	exclude := make([]string, 0, len(eligible))
	for _, it := range eligible {
		exclude = append(exclude, it.ID)
	}
	recent, err := store.FindItems(ctx, ItemFilter{
		ExcludeIDs:    exclude,
		OrderByServed: true,
		Limit:         capacity - len(eligible),
	})
	if err != nil {
		return nil, fmt.Errorf("find recent items: %w", err)
	}
	if sl.metrics != nil {
		sl.metrics.RecentItems.Set(float64(len(recent)))
	}

	sl.log.DebugContext(ctx, "eligible pool short, using recent items",
		"eligible", len(eligible), "recent", len(recent), "capacity", capacity)

	return append(eligible, recent...), nil
}

func (sl *Selector) observeSize(sel *Selection) {
	if sl.metrics != nil {
		sl.metrics.SelectionSize.Set(float64(sel.Size()))
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
