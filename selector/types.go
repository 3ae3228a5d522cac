package selector

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no selection exists for a key.
	ErrNotFound = errors.New("selection not found")

	// ErrConflict is returned by Store.InsertSelection when a selection for
	// the key already exists.
	ErrConflict = errors.New("selection already exists")
)

// Item is a pool entry as seen by the candidate policy.
type Item struct {
	ID           string
	LastServedAt *time.Time
}

func (it Item) servedBefore(cutoff time.Time) bool {
	return it.LastServedAt == nil || cutoff.IsZero() || it.LastServedAt.Before(cutoff)
}

// Selection is the persisted, ordered choice for one window.
type Selection struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Timezone  string    `json:"timezone"`
	Capacity  int       `json:"capacity"`
	ItemIDs   []string  `json:"itemIds"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Selection) Size() int {
	if s == nil {
		return 0
	}
	return len(s.ItemIDs)
}

// ItemFilter narrows FindItems.
type ItemFilter struct {
	// ServedBefore keeps items never served or served strictly before
	// it. Nil keeps every item.
	ServedBefore *time.Time
	ExcludeIDs   []string
	// OrderByServed returns least recently served items first. Results
	// are ordered by id otherwise.
	OrderByServed bool
	// Limit caps the result when positive.
	Limit int
}

// Store is the persistence the selector needs. Implementations must enforce
// a unique selection key; InsertSelection returns ErrConflict when the key
// is taken.
type Store interface {
	FindItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	CountItems(ctx context.Context) (int64, error)
	MarkServed(ctx context.Context, ids []string, at time.Time) (int64, error)

	GetSelection(ctx context.Context, key string) (*Selection, error)
	InsertSelection(ctx context.Context, sel *Selection) error
	DeleteSelection(ctx context.Context, key string) (bool, error)
	ListSelections(ctx context.Context, limit int) ([]*Selection, error)

	// SystemSetting returns the named runtime setting, or "" when unset.
	SystemSetting(ctx context.Context, name string) (string, error)

	// Transaction runs fn against a Store bound to a single transaction.
	// The transaction commits when fn returns nil.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
