package selector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.readwell.dev/highlights/hldb"
	"go.readwell.dev/highlights/seeded"
	"go.readwell.dev/highlights/testutil"
)

func TestDBStore(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	df := testutil.NewDataFactory(tdb)
	ctx := tdb.Context()

	now := time.Date(2025, 9, 17, 10, 15, 0, 0, dhaka(t))
	tc := testutil.NewTimeController()
	tc.SetTime(now)

	recent := now.Add(-72 * time.Hour)
	all := df.CreateHighlights(t, "h", 12)
	df.CreateHighlight(t, "r001", &recent)
	df.CreateHighlight(t, "r002", &recent)

	store := NewDBStore(tdb.DB)
	sl := newTestSelector(t, store, testConfig(), tc)

	sel, win, err := sl.EnsureSelection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-17", win.Key)
	assert.Equal(t, seeded.Shuffle(all, "2025-09-17")[:10], sel.ItemIDs)

	stored, err := store.GetSelection(ctx, "2025-09-17")
	require.NoError(t, err)
	assert.Equal(t, sel.ItemIDs, stored.ItemIDs)
	assert.Equal(t, sel.ID, stored.ID)
	assert.True(t, stored.CreatedAt.Equal(now))

	for _, id := range sel.ItemIDs {
		h, err := tdb.Queries().GetHighlight(ctx, id)
		require.NoError(t, err)
		require.True(t, h.LastServedAt.Valid, id)
		assert.True(t, h.LastServedAt.Time.Equal(now), id)
	}

	t.Run("conflict maps to ErrConflict", func(t *testing.T) {
		dup := *sel
		dup.ID = "01K5BZ0000000000000000000D"
		err := store.InsertSelection(ctx, &dup)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("missing selection", func(t *testing.T) {
		_, err := store.GetSelection(ctx, "1999-01-01")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("resolve", func(t *testing.T) {
		rows, err := Resolve[hldb.Highlight](ctx, store, sel, 3, 5)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		for i, h := range rows {
			assert.Equal(t, sel.ItemIDs[i], h.ID)
		}
	})

	t.Run("show", func(t *testing.T) {
		resp, err := show(ctx, sl, store, 0)
		require.NoError(t, err)
		assert.Equal(t, "2025-09-17", resp.WindowKey)
		assert.Equal(t, "2025-09-17", resp.Date)
		assert.Equal(t, "Asia/Dhaka", resp.Timezone)
		assert.Equal(t, 5, resp.Count)
		assert.Equal(t, sel.ItemIDs[0], resp.Highlights[0].ID)
		assert.Equal(t, "Highlight "+sel.ItemIDs[0], resp.Highlights[0].Content)
	})

	t.Run("settings override from the database", func(t *testing.T) {
		require.NoError(t, store.SetSystemSetting(ctx, SettingsName, `{"capacity": 2}`, now))
		assert.Equal(t, 2, sl.Settings(ctx).Capacity)
		require.NoError(t, store.SetSystemSetting(ctx, SettingsName, `null`, now))
		assert.Equal(t, 10, sl.Settings(ctx).Capacity)
	})

	t.Run("reset and history", func(t *testing.T) {
		next, _, err := sl.Reset(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, sel.ID, next.ID)
		// two never-served items remain, the rest tops up from the oldest serves
		assert.Len(t, next.ItemIDs, 10)
		assert.Contains(t, next.ItemIDs, "r001")
		assert.Contains(t, next.ItemIDs, "r002")

		hist, err := sl.History(ctx, 5)
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.Equal(t, next.ID, hist[0].ID)
	})

	status, err := sl.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.HasSelection)
	assert.EqualValues(t, 14, status.TotalItems)
}

func TestDBStoreConcurrentEnsure(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	df := testutil.NewDataFactory(tdb)
	ctx := tdb.Context()

	tc := testutil.NewTimeController()
	tc.SetTime(time.Date(2025, 9, 17, 14, 0, 0, 0, dhaka(t)))
	df.CreateHighlights(t, "h", 30)

	cfg := testConfig()
	cfg.Mode = "half-day"

	const callers = 8
	results := make([][]string, callers)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := range callers {
		sl := newTestSelector(t, NewDBStore(tdb.DB), cfg, tc)
		wg.Go(func() {
			<-start
			sel, win, err := sl.EnsureSelection(context.WithoutCancel(ctx))
			if assert.NoError(t, err) {
				assert.Equal(t, "2025-09-17_12", win.Key)
				results[i] = sel.ItemIDs
			}
		})
	}
	close(start)
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, results[0], results[i])
	}

	sets, err := tdb.Queries().ListDailySets(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, sets, 1)

	refs, err := tdb.Queries().ListHighlightRefs(ctx, hldb.ListHighlightRefsParams{})
	require.NoError(t, err)
	var served int
	for _, r := range refs {
		if r.LastServedAt.Valid {
			served++
		}
	}
	assert.Equal(t, 10, served)
}
