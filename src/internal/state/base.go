// Package state caches events, items, comments and error messages. Every
// cache is written only by its own store's action handlers.
package state

import (
	"context"
	"errors"
	"sync"
)

// ChangeListener is called once per dispatcher turn that mutated the store.
type ChangeListener func()

// Base is a keyed cache with insertion order, scoped loading flags and a
// coalesced change signal.
type Base[K comparable, D any] struct {
	mu      sync.RWMutex
	items   map[K]D
	order   []K
	loading map[string]bool
	loaded  map[string]bool

	// closed when the scope's current load ends
	loadDone map[string]chan struct{}

	emitMu    sync.Mutex
	pending   bool
	listeners []*changeSub
}

type changeSub struct {
	fn ChangeListener
}

func newBase[K comparable, D any]() *Base[K, D] {
	return &Base[K, D]{
		items:    map[K]D{},
		loading:  map[string]bool{},
		loaded:   map[string]bool{},
		loadDone: map[string]chan struct{}{},
	}
}

func (b *Base[K, D]) GetItem(k K) (D, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.items[k]
	return d, ok
}

// GetAll returns every cached document in insertion order.
func (b *Base[K, D]) GetAll() []D {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]D, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.items[k])
	}
	return out
}

func (b *Base[K, D]) filter(keep func(K, D) bool) []D {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []D
	for _, k := range b.order {
		if d := b.items[k]; keep(k, d) {
			out = append(out, d)
		}
	}
	return out
}

func (b *Base[K, D]) IsLoading(scope string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading[scope]
}

func (b *Base[K, D]) IsLoaded(scope string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded[scope]
}

// OnChange subscribes to the coalesced change signal. The returned func unsubscribes.
func (b *Base[K, D]) OnChange(fn ChangeListener) func() {
	sub := &changeSub{fn: fn}
	b.emitMu.Lock()
	b.listeners = append(b.listeners, sub)
	b.emitMu.Unlock()
	return func() {
		b.emitMu.Lock()
		defer b.emitMu.Unlock()
		for i, s := range b.listeners {
			if s == sub {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Flush emits one change signal if anything changed since the last flush.
func (b *Base[K, D]) Flush() {
	b.emitMu.Lock()
	if !b.pending {
		b.emitMu.Unlock()
		return
	}
	b.pending = false
	subs := append([]*changeSub(nil), b.listeners...)
	b.emitMu.Unlock()

	for _, s := range subs {
		s.fn()
	}
}

func (b *Base[K, D]) markChanged() {
	b.emitMu.Lock()
	b.pending = true
	b.emitMu.Unlock()
}

func (b *Base[K, D]) setItem(k K, d D) {
	b.mu.Lock()
	b.putLocked(k, d)
	b.mu.Unlock()
	b.markChanged()
}

func (b *Base[K, D]) setItems(keyOf func(D) K, batch []D) {
	b.mu.Lock()
	for _, d := range batch {
		b.putLocked(keyOf(d), d)
	}
	b.mu.Unlock()
	b.markChanged()
}

// replaceWhere drops every entry matching stale and then inserts batch, all
// under one lock.
func (b *Base[K, D]) replaceWhere(stale func(K) bool, keyOf func(D) K, batch []D) {
	b.mu.Lock()
	b.removeLocked(stale)
	for _, d := range batch {
		b.putLocked(keyOf(d), d)
	}
	b.mu.Unlock()
	b.markChanged()
}

func (b *Base[K, D]) removeItem(k K) {
	b.removeWhere(func(key K) bool { return key == k })
}

func (b *Base[K, D]) removeWhere(match func(K) bool) {
	b.mu.Lock()
	removed := b.removeLocked(match)
	b.mu.Unlock()
	if removed > 0 {
		b.markChanged()
	}
}

func (b *Base[K, D]) putLocked(k K, d D) {
	if _, ok := b.items[k]; !ok {
		b.order = append(b.order, k)
	}
	b.items[k] = d
}

func (b *Base[K, D]) removeLocked(match func(K) bool) int {
	kept := b.order[:0:0]
	removed := 0
	for _, k := range b.order {
		if match(k) {
			delete(b.items, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	b.order = kept
	return removed
}

// errLoadIncomplete is returned to callers that waited on a load that failed
// or was cancelled.
var errLoadIncomplete = errors.New("load did not complete")

// tryBeginLoad marks scope loading unless it is already loading or loaded.
func (b *Base[K, D]) tryBeginLoad(scope string) bool {
	b.mu.Lock()
	if b.loading[scope] || b.loaded[scope] {
		b.mu.Unlock()
		return false
	}
	b.startLoadLocked(scope)
	b.mu.Unlock()
	b.markChanged()
	return true
}

// awaitLoad blocks while scope has a load in flight and reports whether the
// scope ended up loaded.
func (b *Base[K, D]) awaitLoad(ctx context.Context, scope string) error {
	b.mu.RLock()
	done := b.loadDone[scope]
	b.mu.RUnlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if !b.IsLoaded(scope) {
		return errLoadIncomplete
	}
	return nil
}

func (b *Base[K, D]) setLoading(scope string, loading bool) {
	b.mu.Lock()
	if loading {
		b.startLoadLocked(scope)
	} else {
		b.loading[scope] = false
		b.endLoadLocked(scope)
	}
	b.mu.Unlock()
	b.markChanged()
}

func (b *Base[K, D]) finishLoad(scope string, loaded bool) {
	b.mu.Lock()
	b.loading[scope] = false
	if loaded {
		b.loaded[scope] = true
	}
	b.endLoadLocked(scope)
	b.mu.Unlock()
	b.markChanged()
}

func (b *Base[K, D]) forgetScope(scope string) {
	b.mu.Lock()
	delete(b.loading, scope)
	delete(b.loaded, scope)
	b.endLoadLocked(scope)
	b.mu.Unlock()
	b.markChanged()
}

// resetScopes drops every loading flag and releases all waiters.
func (b *Base[K, D]) resetScopes() {
	b.mu.Lock()
	for scope := range b.loadDone {
		b.endLoadLocked(scope)
	}
	b.loading = map[string]bool{}
	b.loaded = map[string]bool{}
	b.mu.Unlock()
	b.markChanged()
}

func (b *Base[K, D]) startLoadLocked(scope string) {
	b.loading[scope] = true
	if _, ok := b.loadDone[scope]; !ok {
		b.loadDone[scope] = make(chan struct{})
	}
}

func (b *Base[K, D]) endLoadLocked(scope string) {
	if done, ok := b.loadDone[scope]; ok {
		close(done)
		delete(b.loadDone, scope)
	}
}
