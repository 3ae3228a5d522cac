package selector

import (
	"slices"
	"strings"
	"time"
)

// Cutoff returns the instant before which an item counts as rested. A zero
// noRepeat returns the zero time, which makes every item eligible.
func Cutoff(now time.Time, noRepeat time.Duration) time.Time {
	if noRepeat <= 0 {
		return time.Time{}
	}
	return now.Add(-noRepeat)
}

// Partition splits pool into eligible and recently served items.
//
// Duplicate ids are collapsed, keeping the latest LastServedAt. Eligible
// items are ordered by id. Recent items are ordered longest-rested first,
// ties by id.
func Partition(pool []Item, cutoff time.Time) (eligible, recent []Item) {
	seen := make(map[string]int, len(pool))
	uniq := make([]Item, 0, len(pool))
	for _, it := range pool {
		i, ok := seen[it.ID]
		if !ok {
			seen[it.ID] = len(uniq)
			uniq = append(uniq, it)
			continue
		}
		if servedAfter(it.LastServedAt, uniq[i].LastServedAt) {
			uniq[i] = it
		}
	}

	for _, it := range uniq {
		if it.servedBefore(cutoff) {
			eligible = append(eligible, it)
		} else {
			recent = append(recent, it)
		}
	}

	slices.SortFunc(eligible, func(a, b Item) int {
		return strings.Compare(a.ID, b.ID)
	})
	slices.SortFunc(recent, func(a, b Item) int {
		if c := a.LastServedAt.Compare(*b.LastServedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return eligible, recent
}

func servedAfter(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	return a.After(*b)
}

// SelectCandidates returns the ids to shuffle for a window: every eligible
// item, then recent items only as far as needed to reach capacity.
func SelectCandidates(pool []Item, cutoff time.Time, capacity int) []string {
	if capacity <= 0 || len(pool) == 0 {
		return []string{}
	}

	eligible, recent := Partition(pool, cutoff)

	ids := make([]string, 0, max(len(eligible), min(capacity, len(eligible)+len(recent))))
	for _, it := range eligible {
		ids = append(ids, it.ID)
	}
	if len(ids) >= capacity {
		return ids
	}

	for _, it := range recent {
		if len(ids) >= capacity {
			break
		}
		ids = append(ids, it.ID)
	}
	return ids
}
