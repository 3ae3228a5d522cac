package selector

import (
	"context"
	"errors"
	"fmt"

	"go.ntppool.org/common/tracing"
	"go.opentelemetry.io/otel/attribute"

	"go.readwell.dev/highlights/window"
)

// Status describes the current window and its selection.
type Status struct {
	Key           string            `json:"key"`
	Timezone      string            `json:"timezone"`
	Mode          window.Mode       `json:"mode"`
	Window        window.Descriptor `json:"window"`
	HasSelection  bool              `json:"hasSelection"`
	SelectionSize int               `json:"selectionSize"`
	Capacity      int               `json:"capacity"`
	TotalItems    int64             `json:"totalItems"`
}

// Status reports on the current window without creating anything.
func (sl *Selector) Status(ctx context.Context) (*Status, error) {
	ctx, span := tracing.Start(ctx, "selector.Status")
	defer span.End()

	win, st := sl.Window(ctx, sl.now())

	status := &Status{
		Key:      win.Key,
		Timezone: st.Timezone,
		Mode:     st.Mode,
		Window:   win,
		Capacity: st.Capacity,
	}

	sel, err := sl.store.GetSelection(ctx, win.Key)
	switch {
	case err == nil:
		status.HasSelection = true
		status.SelectionSize = sel.Size()
	case !errors.Is(err, ErrNotFound):
		return nil, spanError(span, fmt.Errorf("get selection %q: %w", win.Key, err))
	}

	total, err := sl.store.CountItems(ctx)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("count items: %w", err))
	}
	status.TotalItems = total

	return status, nil
}

// Reset deletes the current window's selection and creates a new one. Items
// marked by the deleted selection keep their served time, so the new
// selection prefers other items where the pool allows.
func (sl *Selector) Reset(ctx context.Context) (*Selection, window.Descriptor, error) {
	ctx, span := tracing.Start(ctx, "selector.Reset")
	defer span.End()

	now := sl.now()
	win, _ := sl.Window(ctx, now)
	span.SetAttributes(attribute.String("window.key", win.Key))

	deleted, err := sl.store.DeleteSelection(ctx, win.Key)
	if err != nil {
		return nil, win, spanError(span, fmt.Errorf("delete selection %q: %w", win.Key, err))
	}
	if deleted {
		sl.log.InfoContext(ctx, "selection reset", "key", win.Key)
		if sl.metrics != nil {
			sl.metrics.SelectionResets.Inc()
		}
	}

	return sl.EnsureSelectionAt(ctx, now)
}

// Preview returns the selection for the current window without saving
// anything. If the window already has a selection it is returned with
// persisted set.
func (sl *Selector) Preview(ctx context.Context) (sel *Selection, win window.Descriptor, persisted bool, err error) {
	now := sl.now()
	win, st := sl.Window(ctx, now)

	sel, err = sl.store.GetSelection(ctx, win.Key)
	switch {
	case err == nil:
		return sel, win, true, nil
	case !errors.Is(err, ErrNotFound):
		return nil, win, false, fmt.Errorf("get selection %q: %w", win.Key, err)
	}

	sel, err = sl.build(ctx, sl.store, win, st, now)
	if err != nil {
		return nil, win, false, err
	}
	return sel, win, false, nil
}

// History returns the most recent selections, newest first.
func (sl *Selector) History(ctx context.Context, limit int) ([]*Selection, error) {
	if limit <= 0 {
		limit = 10
	}
	sels, err := sl.store.ListSelections(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	return sels, nil
}
