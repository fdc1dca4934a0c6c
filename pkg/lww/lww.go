/*
Package lww implements the Last-Write-Wins key-value store: a keyed map
stored as a CRDT append-only sequence of {key, value, ts} entries,
monotonic per-process timestamps, positional tiebreak, and compaction of
superseded entries so the backing array stays proportional to the
number of distinct live keys rather than total writes.

The store keeps an in-memory key -> index index built by scanning the
array on load (the same index-on-load approach an on-disk page store
uses), so Get is O(1) after construction and Set only needs to locate
and delete the previous winner for its key.
*/
package lww

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/epicenter-hq/core/pkg/crdt"
	"github.com/epicenter-hq/core/pkg/log"
)

// Entry is one live {key, value, ts} record.
type Entry struct {
	Key   string
	Value any
	Ts    int64
}

// Clock reports the current time in Unix milliseconds. It need not be
// monotonic: Store turns its readings into strictly increasing local
// timestamps (next = max(now, last+1)). Tests supply a deterministic
// Clock; production wires SystemClock, backed by time.Now().UnixMilli.
type Clock interface {
	Now() int64
}

// ChangeKind discriminates the coalesced event a commit produced for one
// key.
type ChangeKind string

const (
	Added   ChangeKind = "add"
	Updated ChangeKind = "update"
	Deleted ChangeKind = "delete"
)

// Change describes what happened to one key in a single commit,
// preserving old/new values for Updated.
type Change struct {
	Key      string
	Kind     ChangeKind
	OldValue any
	NewValue any
}

// Store is the LWW map over a CRDT array.
type Store struct {
	doc   *crdt.Doc
	array *crdt.Array
	clock Clock

	mu      sync.RWMutex
	index   map[string]int // key -> current array index of its live entry
	lastTs  int64

	observers []func([]Change)
	logger    zerolog.Logger

	// clockSkewWarned avoids re-logging the same-device skew warning on
	// every single out-of-order write once it's already been flagged.
	clockSkewWarned bool
}

// New builds a Store over arr, scanning its current contents to seed the
// key index and resolve any duplicate keys already present (e.g. after a
// sync merged two replicas' histories) by the same highest-ts,
// rightmost-wins rule Set uses.
func New(doc *crdt.Doc, arr *crdt.Array, clock Clock) *Store {
	s := &Store{
		doc:    doc,
		array:  arr,
		clock:  clock,
		index:  make(map[string]int),
		logger: log.WithComponent("lww"),
	}
	s.rebuildIndex()
	arr.Observe(func(crdt.ArrayEvent) { s.rebuildIndex() })
	return s
}

// rebuildIndex re-scans the array end-to-end and recomputes the winning
// index for every key, per the tie rule (highest ts, then
// rightmost position). Called after construction and after every commit
// that touched the array, including remote merges. Any key left with
// more than one live entry (e.g. two replicas each appended their own
// write for the same key before syncing) is compacted down to just its
// winner, so a merge converges the array size the same way a local
// Set/Delete already does.
func (s *Store) rebuildIndex() {
	snapshot := s.array.Snapshot()
	winners := make(map[string]int, len(snapshot))
	counts := make(map[string]int, len(snapshot))
	for i, raw := range snapshot {
		e, ok := raw.(Entry)
		if !ok {
			continue
		}
		counts[e.Key]++
		cur, exists := winners[e.Key]
		if !exists {
			winners[e.Key] = i
			continue
		}
		curEntry := snapshot[cur].(Entry)
		if e.Ts > curEntry.Ts || (e.Ts == curEntry.Ts && i > cur) {
			winners[e.Key] = i
		}
	}
	s.mu.Lock()
	s.index = winners
	s.mu.Unlock()

	s.compactNonWinners(snapshot, winners, counts)
}

// compactNonWinners deletes every array entry that lost its key's
// winner race, leaving exactly one live entry per distinct key. No-op
// when every key already has at most one entry, so a compaction this
// triggers does not recurse forever once the array is clean.
func (s *Store) compactNonWinners(snapshot []any, winners map[string]int, counts map[string]int) {
	dup := false
	for _, n := range counts {
		if n > 1 {
			dup = true
			break
		}
	}
	if !dup {
		return
	}
	_ = s.doc.Transact(nil, func(tx *crdt.Tx) error {
		for i := len(snapshot) - 1; i >= 0; i-- {
			e, ok := snapshot[i].(Entry)
			if !ok {
				continue
			}
			if i != winners[e.Key] {
				s.array.DeleteAt(i)
			}
		}
		return nil
	})
}

// nextTs advances the monotonic clock, warning once if the wall clock
// ever reads at or behind the store's own last-issued timestamp (the
// clock-skew hazard this store must guard against.)
func (s *Store) nextTs() int64 {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	next := now
	if s.lastTs+1 > next {
		next = s.lastTs + 1
	}
	if now <= s.lastTs && !s.clockSkewWarned {
		s.clockSkewWarned = true
		s.logger.Warn().
			Int64("wall_clock", now).
			Int64("last_issued", s.lastTs).
			Msg("lww: local clock at or behind last issued timestamp; writes may win unfairly after sync")
	}
	s.lastTs = next
	return next
}

// Set writes key=value with a freshly minted timestamp, deleting any
// prior live entry for key in the same transaction so the array never
// carries more than one live entry per key mid-transaction.
func (s *Store) Set(key string, value any) error {
	ts := s.nextTs()
	var change Change
	err := s.doc.Transact(nil, func(tx *crdt.Tx) error {
		old, hadOld := s.winnerLocked(key)
		if hadOld {
			change = Change{Key: key, Kind: Updated, OldValue: old.Value, NewValue: value}
		} else {
			change = Change{Key: key, Kind: Added, NewValue: value}
		}
		s.compactLocked(key)
		s.array.Push(Entry{Key: key, Value: value, Ts: ts})
		return nil
	})
	if err != nil {
		return err
	}
	s.notify([]Change{change})
	return nil
}

// Get returns the winning value for key, if any.
func (s *Store) Get(key string) (any, bool) {
	e, ok := s.winnerLocked(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Has reports whether key currently has a live entry.
func (s *Store) Has(key string) bool {
	_, ok := s.winnerLocked(key)
	return ok
}

// Keys returns every key with a live entry.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.index))
	for k := range s.index {
		out = append(out, k)
	}
	return out
}

// Delete removes key's live entry, if any, in its own transaction.
func (s *Store) Delete(key string) bool {
	old, hadOld := s.winnerLocked(key)
	if !hadOld {
		return false
	}
	_ = s.doc.Transact(nil, func(tx *crdt.Tx) error {
		s.compactLocked(key)
		return nil
	})
	s.notify([]Change{{Key: key, Kind: Deleted, OldValue: old.Value}})
	return true
}

// winnerLocked resolves key's current live entry from the index.
func (s *Store) winnerLocked(key string) (Entry, bool) {
	s.mu.RLock()
	idx, ok := s.index[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	raw, ok := s.array.Get(idx)
	if !ok {
		return Entry{}, false
	}
	e, ok := raw.(Entry)
	return e, ok
}

// compactLocked deletes every live array entry for key (normally exactly
// one), keeping the backing array's size proportional to distinct keys
// rather than total writes. Must run
// inside an open transaction.
func (s *Store) compactLocked(key string) {
	snapshot := s.array.Snapshot()
	for i := len(snapshot) - 1; i >= 0; i-- {
		e, ok := snapshot[i].(Entry)
		if ok && e.Key == key {
			s.array.DeleteAt(i)
		}
	}
}

// Observe registers cb to fire after each of this Store's own Set and
// Delete calls, with the one Change that call made. Array commits that do
// not come from Set or Delete (a merged remote write, the compaction
// rebuildIndex runs) do not fire it.
func (s *Store) Observe(cb func([]Change)) (unsubscribe func()) {
	s.mu.Lock()
	s.observers = append(s.observers, cb)
	idx := len(s.observers) - 1
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.observers) {
			s.observers[idx] = nil
		}
	}
}

func (s *Store) notify(changes []Change) {
	s.mu.RLock()
	observers := append([]func([]Change){}, s.observers...)
	s.mu.RUnlock()
	for _, cb := range observers {
		if cb != nil {
			cb(changes)
		}
	}
}

// SystemClock implements Clock with the wall clock. Kept separate from
// New's Clock parameter so tests can substitute a deterministic one
// without touching production wiring.
type SystemClock struct{ NowFunc func() int64 }

// Now returns the current time as Unix milliseconds.
func (c SystemClock) Now() int64 {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return systemNowMillis()
}
