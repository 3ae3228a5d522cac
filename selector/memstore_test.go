package selector

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store. Transactions are serialized and applied
// on commit only.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	items    map[string]*time.Time
	sels     map[string]*Selection
	settings map[string]string

	markCalls int

	findErr   error
	getErr    error
	insertErr error
	markErr   error
	countErr  error

	// staleReads makes the next GetSelection calls report ErrNotFound,
	// as if another process inserted after the read
	staleReads int
}

func newMemStore() *memStore {
	return &memStore{
		items:    map[string]*time.Time{},
		sels:     map[string]*Selection{},
		settings: map[string]string{},
	}
}

func (m *memStore) addItems(lastServed *time.Time, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if lastServed == nil {
			m.items[id] = nil
			continue
		}
		t := *lastServed
		m.items[id] = &t
	}
}

func (m *memStore) servedAt(id string) *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *memStore) selectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sels)
}

func (m *memStore) FindItems(ctx context.Context, f ItemFilter) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}

	var out []Item
	for id, ts := range m.items {
		if f.ServedBefore != nil && ts != nil && !ts.Before(*f.ServedBefore) {
			continue
		}
		if slices.Contains(f.ExcludeIDs, id) {
			continue
		}
		it := Item{ID: id}
		if ts != nil {
			t := *ts
			it.LastServedAt = &t
		}
		out = append(out, it)
	}

	slices.SortFunc(out, func(a, b Item) int {
		if f.OrderByServed {
			switch {
			case a.LastServedAt == nil && b.LastServedAt != nil:
				return -1
			case a.LastServedAt != nil && b.LastServedAt == nil:
				return 1
			case a.LastServedAt != nil:
				if c := a.LastServedAt.Compare(*b.LastServedAt); c != 0 {
					return c
				}
			}
		}
		return strings.Compare(a.ID, b.ID)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) CountItems(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.items)), nil
}

func (m *memStore) MarkServed(ctx context.Context, ids []string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return 0, m.markErr
	}
	m.markCalls++
	var n int64
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			t := at
			m.items[id] = &t
			n++
		}
	}
	return n, nil
}

func cloneSelection(s *Selection) *Selection {
	c := *s
	c.ItemIDs = slices.Clone(s.ItemIDs)
	return &c
}

func (m *memStore) GetSelection(ctx context.Context, key string) (*Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.staleReads > 0 {
		m.staleReads--
		return nil, ErrNotFound
	}
	s, ok := m.sels[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSelection(s), nil
}

func (m *memStore) InsertSelection(ctx context.Context, sel *Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.sels[sel.Key]; ok {
		return ErrConflict
	}
	m.sels[sel.Key] = cloneSelection(sel)
	return nil
}

func (m *memStore) DeleteSelection(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sels[key]
	delete(m.sels, key)
	return ok, nil
}

func (m *memStore) ListSelections(ctx context.Context, limit int) ([]*Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Selection, 0, len(m.sels))
	for _, s := range m.sels {
		out = append(out, cloneSelection(s))
	}
	slices.SortFunc(out, func(a, b *Selection) int {
		return cmp.Compare(b.Key, a.Key)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SystemSetting(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[name], nil
}

func (m *memStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	tx := &memStore{
		items:     maps.Clone(m.items),
		sels:      maps.Clone(m.sels),
		settings:  maps.Clone(m.settings),
		findErr:   m.findErr,
		insertErr: m.insertErr,
		markErr:   m.markErr,
	}
	m.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = tx.items
	m.sels = tx.sels
	m.markCalls += tx.markCalls
	return nil
}

type memResolver map[string]string

func (r memResolver) ResolveItems(ctx context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if v, ok := r[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}
