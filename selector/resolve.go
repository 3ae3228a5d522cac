package selector

import (
	"context"
	"fmt"
)

// ItemResolver loads full records for item ids. Missing ids are left out
// of the returned map.
type ItemResolver[R any] interface {
	ResolveItems(ctx context.Context, ids []string) (map[string]R, error)
}

// ClampLimit maps a requested count to the number of ids to read. A
// non-positive request uses defaultLimit; the result never exceeds capacity.
func ClampLimit(limit, defaultLimit, capacity int) int {
	if limit <= 0 {
		limit = defaultLimit
	}
	return max(0, min(limit, capacity))
}

// Resolve returns the records for the first limit ids of sel, in selection
// order. Ids whose records no longer exist are skipped rather than
// replaced, so the result may be shorter than limit.
func Resolve[R any](ctx context.Context, r ItemResolver[R], sel *Selection, limit, defaultLimit int) ([]R, error) {
	if sel == nil {
		return []R{}, nil
	}

	n := min(ClampLimit(limit, defaultLimit, sel.Capacity), len(sel.ItemIDs))
	if n == 0 {
		return []R{}, nil
	}
	ids := sel.ItemIDs[:n]

	found, err := r.ResolveItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve items: %w", err)
	}

	out := make([]R, 0, len(ids))
	for _, id := range ids {
		if rec, ok := found[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
