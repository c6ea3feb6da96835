// Package policy defines ordered admission rules applied atomically to the
// position table
package policy

import (
	"time"

	"github.com/strikeline/strikeline/pkg/types"
)

// View is the face of the table handed to rules inside the apply critical
// section. It wraps the staged batch, so later rules observe the writes of
// earlier rules in the same cycle.
type View struct {
	rows map[types.Key]*types.Position
	now  time.Time
}

// NewView wraps a staged row set for rule evaluation. The caller keeps
// ownership of the map; rules only ever receive value copies.
func NewView(rows map[types.Key]*types.Position, now time.Time) *View {
	return &View{rows: rows, now: now}
}

// Now returns the evaluation timestamp shared by every rule in the cycle.
func (v *View) Now() time.Time { return v.now }

// Len returns the number of rows in view.
func (v *View) Len() int { return len(v.rows) }

// Get returns a copy of the row under key.
func (v *View) Get(key types.Key) (types.Position, bool) {
	row, ok := v.rows[key]
	if !ok {
		return types.Position{}, false
	}
	return *row, true
}

// Count tallies rows currently in the given status.
func (v *View) Count(status types.Status) int {
	n := 0
	for _, row := range v.rows {
		if row.Status == status {
			n++
		}
	}
	return n
}

// Filter returns the keys of rows matching pred, in key order so rule
// output is deterministic.
func (v *View) Filter(pred func(types.Position) bool) []types.Key {
	var keys []types.Key
	for key, row := range v.rows {
		if pred(*row) {
			keys = append(keys, key)
		}
	}
	types.SortKeys(keys)
	return keys
}

// Predicate selects candidate keys from the view.
type Predicate func(*View) []types.Key

// Capacity bounds how many candidates a rule may admit in one cycle. It is
// evaluated inside the critical section, against the batch as earlier rules
// left it.
type Capacity func(*View) int

// Fixed returns a capacity of n regardless of table state.
func Fixed(n int) Capacity {
	return func(*View) int { return n }
}

// OpenSlots returns the capacity remaining under limit once open rows,
// accepted and purchased, are counted.
func OpenSlots(limit int) Capacity {
	return func(v *View) int {
		return limit - v.Count(types.StatusAccepted) - v.Count(types.StatusPurchased)
	}
}

// Matching selects rows by status plus an optional condition, the shape
// nearly every screening rule takes.
func Matching(status types.Status, cond func(types.Position) bool) Predicate {
	return func(v *View) []types.Key {
		return v.Filter(func(p types.Position) bool {
			if p.Status != status {
				return false
			}
			return cond == nil || cond(p)
		})
	}
}

// Rule is one named transition: rows selected by When move to Target,
// bounded by Capacity when set. Candidates beyond capacity are cut in
// priority order, score descending with ties broken by key order.
type Rule struct {
	Name     string
	Target   types.Status
	Capacity Capacity
	When     Predicate
}

// Policy is an ordered rule set applied atomically per cycle. Rules run in
// declared order; a row transitioned by an earlier rule is skipped by the
// rules after it, so the first matching rule wins and a row moves at most
// once per cycle.
type Policy struct {
	Name  string
	Rules []Rule
}

// Outcome reports what one apply changed.
type Outcome struct {
	Policy      string
	Admitted    map[string][]types.Key
	Transitions int
	Elapsed     time.Duration
}

// Count returns how many rows the named rule admitted.
func (o Outcome) Count(rule string) int { return len(o.Admitted[rule]) }

// Keys returns the rows the named rule admitted.
func (o Outcome) Keys(rule string) []types.Key { return o.Admitted[rule] }

// Empty reports whether the apply changed nothing.
func (o Outcome) Empty() bool { return o.Transitions == 0 }
