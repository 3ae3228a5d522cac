// Package selector materializes the reading selection for each recurring
// window.
//
// For the window containing "now" (see package window) the selector picks
// up to Capacity items from the pool, persists the ordered list exactly once
// under the window key and marks the chosen items as served. Every caller in
// every process that asks for the same window gets the same list.
//
// # Candidate policy
//
// Items that have never been served, or were last served before
// now - NoRepeat, are eligible. Recently served items are only used to top
// up a short pool, longest-rested first. Candidates are shuffled with a
// permutation seeded by the window key (package seeded) and truncated to
// Capacity.
//
// # Concurrency
//
// Creation is optimistic. Concurrent callers may all compute a selection;
// the unique window key in the store admits exactly one insert and the
// others discard their work and return the stored record. The insert and
// the served-at update commit in one transaction, so items are marked by
// the winner only.
//
// # Usage
//
//	sl, err := selector.NewSelector(selector.NewDBStore(dbconn), cfg, log, metrics)
//	if err != nil {
//	    return err
//	}
//	sel, win, err := sl.EnsureSelection(ctx)
package selector
