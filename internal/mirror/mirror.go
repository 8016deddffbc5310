// Package mirror keeps a client-held replica of a server collection
// consistent with an unordered-across-topics, possibly-duplicated stream of
// change-feed events plus periodic full snapshots.
package mirror

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/naigggs/hau2park.web-sub001/internal/changefeed"
)

// Mirror reconciles insert/update/delete events into a keyed collection.
// Storage is a map keyed by the extracted id, so every event applies in
// O(1); ordering is materialized only on read. All methods are safe for
// concurrent use, but events for one topic are expected to be applied from
// a single consumer goroutine, handler-to-completion.
type Mirror[K comparable, T any] struct {
	mu    sync.RWMutex
	keyOf func(T) K
	less  func(a, b T) bool // nil means insertion order

	entries map[K]T
	order   []K

	seeded  bool
	stale   bool
	pending []changefeed.Event
}

// Option configures a Mirror at construction.
type Option[K comparable, T any] func(*Mirror[K, T])

// WithOrdering replaces the default insertion ordering with a comparator,
// e.g. newest first.
func WithOrdering[K comparable, T any](less func(a, b T) bool) Option[K, T] {
	return func(m *Mirror[K, T]) { m.less = less }
}

func New[K comparable, T any](keyOf func(T) K, opts ...Option[K, T]) *Mirror[K, T] {
	m := &Mirror[K, T]{
		keyOf:   keyOf,
		entries: make(map[K]T),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed loads a full snapshot, replacing the current contents. Events that
// arrived before the snapshot (or while the mirror was stale) are replayed
// against it in arrival order; replay is idempotent so events the snapshot
// already reflects are absorbed harmlessly.
func (m *Mirror[K, T]) Seed(snapshot []T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[K]T, len(snapshot))
	m.order = m.order[:0]
	for _, t := range snapshot {
		k := m.keyOf(t)
		if _, dup := m.entries[k]; dup {
			log.Printf("mirror: snapshot contains duplicate key %v, keeping the later record", k)
		} else {
			m.order = append(m.order, k)
		}
		m.entries[k] = t
	}

	m.seeded = true
	m.stale = false

	buffered := m.pending
	m.pending = nil
	for _, ev := range buffered {
		if err := m.applyLocked(ev); err != nil {
			log.Printf("mirror: replaying buffered event %s: %v", ev.ID, err)
		}
	}
}

// Apply reconciles one event. Before the first Seed, and while the mirror
// is stale, events are buffered instead of applied; they replay once a
// snapshot lands.
func (m *Mirror[K, T]) Apply(ev changefeed.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seeded || m.stale {
		m.pending = append(m.pending, ev)
		return nil
	}
	return m.applyLocked(ev)
}

func (m *Mirror[K, T]) applyLocked(ev changefeed.Event) error {
	switch ev.Kind {
	case changefeed.KindInsert:
		return m.upsertLocked(ev, true)
	case changefeed.KindUpdate:
		return m.upsertLocked(ev, false)
	case changefeed.KindDelete:
		return m.deleteLocked(ev)
	default:
		return fmt.Errorf("mirror: unknown event kind %q", ev.Kind)
	}
}

// upsertLocked covers both Insert and Update. A duplicate-key Insert is
// treated as a patch-merge, which makes duplicate delivery idempotent; an
// Update for an absent key is a logged no-op because a late out-of-order
// Insert may still arrive.
func (m *Mirror[K, T]) upsertLocked(ev changefeed.Event, insert bool) error {
	if len(ev.New) == 0 {
		return fmt.Errorf("mirror: %s event %s has no payload", ev.Kind, ev.ID)
	}

	var incoming T
	if err := json.Unmarshal(ev.New, &incoming); err != nil {
		return fmt.Errorf("mirror: decoding %s payload: %w", ev.Kind, err)
	}
	k := m.keyOf(incoming)

	existing, ok := m.entries[k]
	if ok {
		// Partial-field merge: unmarshaling into the existing record
		// touches only the fields present in the payload.
		merged := existing
		if err := json.Unmarshal(ev.New, &merged); err != nil {
			return fmt.Errorf("mirror: merging %s payload into %v: %w", ev.Kind, k, err)
		}
		m.entries[k] = merged
		return nil
	}

	if !insert {
		log.Printf("mirror: update for absent key %v ignored (insert may still arrive)", k)
		return nil
	}

	m.entries[k] = incoming
	m.orderAppendLocked(k)
	return nil
}

// orderAppendLocked appends a key at the end of insertion order. A key
// deleted earlier may still occupy an old slot; that slot is purged first
// so a reinsertion lands at the end rather than at the old position.
func (m *Mirror[K, T]) orderAppendLocked(k K) {
	for i, cur := range m.order {
		if cur == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.order = append(m.order, k)
}

func (m *Mirror[K, T]) deleteLocked(ev changefeed.Event) error {
	payload := ev.Old
	if len(payload) == 0 {
		payload = ev.New
	}
	if len(payload) == 0 {
		return fmt.Errorf("mirror: delete event %s has no payload", ev.ID)
	}

	var gone T
	if err := json.Unmarshal(payload, &gone); err != nil {
		return fmt.Errorf("mirror: decoding delete payload: %w", err)
	}
	k := m.keyOf(gone)

	if _, ok := m.entries[k]; !ok {
		// Duplicate delete or delete-before-insert race; nothing to do.
		return nil
	}
	delete(m.entries, k)
	m.compactLocked()
	return nil
}

// compactLocked drops deleted keys from the order slice once they dominate
// it; Snapshot skips them regardless.
func (m *Mirror[K, T]) compactLocked() {
	if len(m.order) < 2*len(m.entries) || len(m.order) < 16 {
		return
	}
	kept := m.order[:0]
	for _, k := range m.order {
		if _, ok := m.entries[k]; ok {
			kept = append(kept, k)
		}
	}
	m.order = kept
}

// MarkStale flags the mirror as untrustworthy after a feed interruption.
// Incremental events buffer until the next Seed; missed deletes cannot be
// recovered from the event stream alone.
func (m *Mirror[K, T]) MarkStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale = true
}

func (m *Mirror[K, T]) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stale
}

func (m *Mirror[K, T]) Seeded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seeded
}

// Get returns the record for a key, if present.
func (m *Mirror[K, T]) Get(k K) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.entries[k]
	return t, ok
}

func (m *Mirror[K, T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Snapshot returns an ordered copy. Consumers never see (or mutate) the
// internal state; all mutation flows through the event path.
func (m *Mirror[K, T]) Snapshot() []T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]T, 0, len(m.entries))
	seen := make(map[K]struct{}, len(m.entries))
	for _, k := range m.order {
		if _, dup := seen[k]; dup {
			continue
		}
		if t, ok := m.entries[k]; ok {
			out = append(out, t)
			seen[k] = struct{}{}
		}
	}
	if m.less != nil {
		sort.SliceStable(out, func(i, j int) bool { return m.less(out[i], out[j]) })
	}
	return out
}

const reseedRetryInterval = 5 * time.Second

// Run consumes a subscription until its event channel closes, applying
// each event handler-to-completion. Connection transitions are acted on
// out-of-band: an interruption marks the mirror stale immediately, and a
// reconnect reseeds it right away, even on a topic with no traffic. The
// reseed happens while the stream is live, so any write racing the
// snapshot also arrives as an event and replays idempotently.
func (m *Mirror[K, T]) Run(sub *changefeed.Subscription, snapshot func() ([]T, error)) {
	var retry <-chan time.Time
	reseed := func() {
		m.MarkStale()
		snap, err := snapshot()
		if err != nil {
			log.Printf("mirror: resync snapshot for topic %q failed: %v", sub.Topic(), err)
			retry = time.After(reseedRetryInterval)
			return
		}
		m.Seed(snap)
		sub.ClearStale()
		retry = nil
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if sub.Stale() {
				reseed()
			}
			if err := m.Apply(ev); err != nil {
				log.Printf("mirror: applying event %s on topic %q: %v", ev.ID, sub.Topic(), err)
			}
		case st := <-sub.StateChanges():
			switch st {
			case changefeed.StateReconnecting:
				m.MarkStale()
			case changefeed.StateConnected:
				if sub.Stale() {
					reseed()
				}
			}
		case <-retry:
			if sub.Stale() {
				reseed()
			} else {
				retry = nil
			}
		}
	}
}
