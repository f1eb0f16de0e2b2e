// Package actions is the in-process action bus the stores subscribe to.
//
// Publish runs every listener of a channel synchronously, in subscription
// order, inside a dispatcher turn. Turns are serialized across goroutines so
// store handlers observe actions one at a time and in publish order. After a
// turn ends the dispatcher flushes every registered store once, which
// coalesces all mutations made during the turn into a single change signal.
//
// A panicking listener is not isolated: the panic reaches the publisher and
// the remaining listeners of that publish are skipped. Listeners must not
// publish; change listeners invoked by a flush may.
package actions

import "sync"

// Flusher is implemented by stores that emit a coalesced change signal.
type Flusher interface {
	Flush()
}

type Dispatcher struct {
	turn sync.Mutex

	mu       sync.Mutex
	flushers []Flusher
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds f to the set flushed after every turn.
func (d *Dispatcher) Register(f Flusher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushers = append(d.flushers, f)
}

func (d *Dispatcher) run(fn func()) {
	func() {
		d.turn.Lock()
		defer d.turn.Unlock()
		fn()
	}()
	d.flush()
}

func (d *Dispatcher) flush() {
	d.mu.Lock()
	fs := append([]Flusher(nil), d.flushers...)
	d.mu.Unlock()
	for _, f := range fs {
		f.Flush()
	}
}

type Listener[T any] func(payload T)

type subscriber[T any] struct {
	id uint64
	fn Listener[T]
}

// Action is one typed channel.
type Action[T any] struct {
	d *Dispatcher

	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

func NewAction[T any](d *Dispatcher) *Action[T] {
	return &Action[T]{d: d}
}

// Subscription detaches a listener. Cancel is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func (a *Action[T]) Subscribe(fn Listener[T]) *Subscription {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.subs = append(a.subs, subscriber[T]{id: id, fn: fn})
	a.mu.Unlock()

	return &Subscription{cancel: func() { a.unsubscribe(id) }}
}

func (a *Action[T]) unsubscribe(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, s := range a.subs {
		if s.id == id {
			a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to the listeners subscribed at the time of the call.
func (a *Action[T]) Publish(payload T) {
	a.mu.Lock()
	subs := append([]subscriber[T](nil), a.subs...)
	a.mu.Unlock()

	deliver := func() {
		for _, s := range subs {
			s.fn(payload)
		}
	}
	if a.d == nil {
		deliver()
		return
	}
	a.d.run(deliver)
}

func (a *Action[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}
