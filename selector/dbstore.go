package selector

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.readwell.dev/highlights/hldb"
)

// DBStore is the Store backed by the hldb tables.
type DBStore struct {
	q hldb.QuerierTx
}

func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{q: hldb.New(db)}
}

var (
	_ Store                        = (*DBStore)(nil)
	_ ItemResolver[hldb.Highlight] = (*DBStore)(nil)
)

func (s *DBStore) FindItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	arg := hldb.ListHighlightRefsParams{
		ExcludeIds:    filter.ExcludeIDs,
		OrderByServed: filter.OrderByServed,
	}
	if filter.ServedBefore != nil {
		arg.ServedBefore = sql.NullTime{Time: *filter.ServedBefore, Valid: true}
	}
	if filter.Limit > 0 {
		arg.Limit = int32(min(filter.Limit, math.MaxInt32))
	}

	refs, err := s.q.ListHighlightRefs(ctx, arg)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(refs))
	for _, r := range refs {
		it := Item{ID: r.ID}
		if r.LastServedAt.Valid {
			t := r.LastServedAt.Time
			it.LastServedAt = &t
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *DBStore) CountItems(ctx context.Context) (int64, error) {
	return s.q.CountHighlights(ctx)
}

func (s *DBStore) MarkServed(ctx context.Context, ids []string, at time.Time) (int64, error) {
	return s.q.MarkHighlightsServed(ctx, hldb.MarkHighlightsServedParams{
		ServedAt: at,
		Ids:      ids,
	})
}

func selectionFromDB(ds hldb.DailySet) *Selection {
	ids := []string(ds.HighlightIds)
	if ids == nil {
		ids = []string{}
	}
	return &Selection{
		ID:        ds.ID,
		Key:       ds.WindowKey,
		Timezone:  ds.Timezone,
		Capacity:  int(ds.Capacity),
		ItemIDs:   ids,
		CreatedAt: ds.CreatedOn,
	}
}

func (s *DBStore) GetSelection(ctx context.Context, key string) (*Selection, error) {
	ds, err := s.q.GetDailySet(ctx, key)
	if err != nil {
		if hldb.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return selectionFromDB(ds), nil
}

func (s *DBStore) InsertSelection(ctx context.Context, sel *Selection) error {
	err := s.q.InsertDailySet(ctx, hldb.InsertDailySetParams{
		ID:           sel.ID,
		WindowKey:    sel.Key,
		Timezone:     sel.Timezone,
		Capacity:     int32(min(sel.Capacity, math.MaxInt32)),
		HighlightIds: hldb.IDList(sel.ItemIDs),
		CreatedOn:    sel.CreatedAt,
	})
	if hldb.IsDuplicateKey(err) {
		return errors.Join(ErrConflict, err)
	}
	return err
}

func (s *DBStore) DeleteSelection(ctx context.Context, key string) (bool, error) {
	n, err := s.q.DeleteDailySet(ctx, key)
	return n > 0, err
}

func (s *DBStore) ListSelections(ctx context.Context, limit int) ([]*Selection, error) {
	sets, err := s.q.ListDailySets(ctx, int32(min(limit, math.MaxInt32)))
	if err != nil {
		return nil, err
	}
	sels := make([]*Selection, 0, len(sets))
	for _, ds := range sets {
		sels = append(sels, selectionFromDB(ds))
	}
	return sels, nil
}

func (s *DBStore) SystemSetting(ctx context.Context, name string) (string, error) {
	v, err := s.q.GetSystemSetting(ctx, name)
	if hldb.IsNotFound(err) {
		return "", nil
	}
	return v, err
}

// SetSystemSetting stores a runtime setting such as the SettingsName
// override.
func (s *DBStore) SetSystemSetting(ctx context.Context, name, value string, now time.Time) error {
	return s.q.SetSystemSetting(ctx, hldb.SetSystemSettingParams{
		Name:  name,
		Value: value,
		Now:   now,
	})
}

func (s *DBStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return hldb.WithTransaction(ctx, s.q, func(ctx context.Context, tx hldb.QuerierTx) error {
		return fn(ctx, &DBStore{q: tx})
	})
}

// ResolveItems loads the highlights for ids.
func (s *DBStore) ResolveItems(ctx context.Context, ids []string) (map[string]hldb.Highlight, error) {
	rows, err := s.q.GetHighlightsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	m := make(map[string]hldb.Highlight, len(rows))
	for _, h := range rows {
		m[h.ID] = h
	}
	return m, nil
}
