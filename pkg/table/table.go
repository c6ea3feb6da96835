// Package table provides the shared position store with atomic, ordered,
// capacity-aware policy application
package table

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/policy"
	"github.com/strikeline/strikeline/pkg/types"
)

// ErrPolicyApply marks an aborted batch application. The table is left
// exactly as it was before the call.
var ErrPolicyApply = errors.New("policy apply failed")

// PolicyApplyError carries the rule that aborted the batch.
type PolicyApplyError struct {
	Policy string
	Rule   string
	Err    error
}

func (e *PolicyApplyError) Error() string {
	return fmt.Sprintf("policy %s: rule %s: %v", e.Policy, e.Rule, e.Err)
}

func (e *PolicyApplyError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPolicyApply) match.
func (e *PolicyApplyError) Is(target error) bool { return target == ErrPolicyApply }

// Config tunes the table.
type Config struct {
	// Now supplies timestamps for row bookkeeping and rule evaluation.
	// Nil means time.Now; tests inject a fixed clock.
	Now func() time.Time
}

// Table is the single shared store of candidate positions. One mutex guards
// every mutation: a policy batch, an upsert and an eviction each hold it for
// their full duration, and no row is ever mutated outside those entry
// points.
type Table struct {
	log logger.Logger
	now func() time.Time

	mu   sync.Mutex
	rows map[types.Key]*types.Position
}

// New creates an empty table.
func New(cfg Config, log logger.Logger) *Table {
	if log == nil {
		log = logger.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Table{
		log:  log,
		now:  now,
		rows: make(map[types.Key]*types.Position),
	}
}

// Upsert lands pipeline results in the table. Unknown keys are inserted as
// PROSPECT rows; known non-terminal keys have their attributes refreshed in
// place while keeping their current status and creation time. Terminal rows
// are left untouched. Rows with a zero key are ignored.
func (t *Table) Upsert(positions ...types.Position) (inserted, refreshed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, p := range positions {
		if p.Key.Zero() {
			continue
		}
		cur, ok := t.rows[p.Key]
		if !ok {
			fresh := p
			fresh.Status = types.StatusProspect
			fresh.Created = now
			fresh.Updated = now
			t.rows[p.Key] = &fresh
			inserted++
			continue
		}
		if cur.Status.Terminal() {
			continue
		}
		status, created := cur.Status, cur.Created
		*cur = p
		cur.Status = status
		cur.Created = created
		cur.Updated = now
		refreshed++
	}
	return inserted, refreshed
}

// Apply runs every rule of pol in declared order inside one critical
// section and commits all resulting transitions together, or none of them.
//
// Rules are evaluated against the batch as it stands, so later rules read
// the writes of earlier ones. A row already transitioned in this batch is
// skipped by later rules: the first matching rule in declared order wins
// and a row moves at most once per cycle. When a rule carries a capacity,
// candidates are ranked score descending with ties broken by key order and
// only the leading rows are admitted. A predicate panic, an unknown key or
// a transition outside the status graph aborts the whole batch, leaving the
// table unchanged.
func (t *Table) Apply(pol policy.Policy) (policy.Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	started := time.Now()
	now := t.now()

	// Stage the batch on a full copy; only a fully applied batch commits.
	staged := make(map[types.Key]*types.Position, len(t.rows))
	for key, row := range t.rows {
		dup := *row
		staged[key] = &dup
	}

	outcome := policy.Outcome{
		Policy:   pol.Name,
		Admitted: make(map[string][]types.Key, len(pol.Rules)),
	}
	touched := make(map[types.Key]bool)

	for _, rule := range pol.Rules {
		admitted, err := applyRule(rule, staged, touched, now)
		if err != nil {
			return policy.Outcome{}, &PolicyApplyError{Policy: pol.Name, Rule: rule.Name, Err: err}
		}
		if len(admitted) == 0 {
			continue
		}
		outcome.Admitted[rule.Name] = admitted
		outcome.Transitions += len(admitted)
	}

	t.rows = staged
	outcome.Elapsed = time.Since(started)

	if outcome.Transitions > 0 {
		t.log.Debug("policy applied",
			logger.WithField("policy", pol.Name),
			logger.WithField("transitions", outcome.Transitions),
			logger.WithField("elapsed", outcome.Elapsed.Round(time.Microsecond).String()))
	}
	return outcome, nil
}

// applyRule evaluates one rule against the staged batch and writes its
// transitions. Panics in the rule's callbacks surface as errors.
func applyRule(rule policy.Rule, staged map[types.Key]*types.Position, touched map[types.Key]bool, now time.Time) (admitted []types.Key, err error) {
	defer func() {
		if r := recover(); r != nil {
			admitted, err = nil, fmt.Errorf("rule panicked: %v", r)
		}
	}()

	if rule.When == nil {
		return nil, errors.New("rule has no predicate")
	}
	if !rule.Target.Valid() {
		return nil, fmt.Errorf("unknown target status %q", rule.Target)
	}

	view := policy.NewView(staged, now)

	var candidates []types.Key
	seen := make(map[types.Key]bool)
	for _, key := range rule.When(view) {
		if seen[key] || touched[key] {
			continue
		}
		seen[key] = true
		if _, ok := staged[key]; !ok {
			return nil, fmt.Errorf("predicate selected unknown key %s", key)
		}
		candidates = append(candidates, key)
	}

	if rule.Capacity != nil {
		limit := rule.Capacity(view)
		if limit < 0 {
			limit = 0
		}
		if len(candidates) > limit {
			sort.SliceStable(candidates, func(i, j int) bool {
				a, b := staged[candidates[i]], staged[candidates[j]]
				if a.Score != b.Score {
					return a.Score > b.Score
				}
				return candidates[i].Less(candidates[j])
			})
			candidates = candidates[:limit]
		}
	}

	for _, key := range candidates {
		row := staged[key]
		if !row.Status.CanTransition(rule.Target) {
			return nil, fmt.Errorf("%s: %w: %s -> %s", key, types.ErrInvalidTransition, row.Status, rule.Target)
		}
		row.Status = rule.Target
		row.Updated = now
		touched[key] = true
		admitted = append(admitted, key)
	}
	return admitted, nil
}

// Snapshot returns a point-in-time copy of every row, ordered by key. The
// result never aliases table memory, so a concurrent Apply is visible either
// entirely or not at all.
func (t *Table) Snapshot() []types.Position {
	t.mu.Lock()
	out := make([]types.Position, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, *row)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Get returns a copy of the row under key.
func (t *Table) Get(key types.Key) (types.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[key]
	if !ok {
		return types.Position{}, false
	}
	return *row, true
}

// Evict removes the given rows and reports how many actually existed.
func (t *Table) Evict(keys ...types.Key) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for _, key := range keys {
		if _, ok := t.rows[key]; ok {
			delete(t.rows, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the current row count.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// CountByStatus tallies rows per status in one pass.
func (t *Table) CountByStatus() map[types.Status]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[types.Status]int)
	for _, row := range t.rows {
		counts[row.Status]++
	}
	return counts
}
