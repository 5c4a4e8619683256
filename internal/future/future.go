// Package future provides a settle-once eventual value with callback
// continuations and context-aware waiting.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Status is the settlement state of a Future.
type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrRejected is used when a future is rejected without a cause.
var ErrRejected = errors.New("future rejected")

// Future is an eventual value. It settles exactly once, either resolved with
// a value or rejected with an error. Callbacks registered with OnSettle run
// in registration order on the goroutine that settles the future, or
// immediately when the future has already settled.
type Future struct {
	mu        sync.Mutex
	status    Status
	value     any
	err       error
	callbacks []func(any, error)
	done      chan struct{}
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future already resolved with v.
func Resolved(v any) *Future {
	d := NewDeferred()
	d.Resolve(v)
	return d.Future()
}

// Rejected returns a future already rejected with err.
func Rejected(err error) *Future {
	d := NewDeferred()
	d.Reject(err)
	return d.Future()
}

// Status reports the current settlement state.
func (f *Future) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled value and error. Both are nil while pending.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Wait blocks until the future settles or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnSettle registers fn to observe the settlement.
func (f *Future) OnSettle(fn func(value any, err error)) {
	f.mu.Lock()
	if f.status == StatusPending {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	fn(value, err)
}

// Then registers separate continuations for each outcome. Either may be nil.
func (f *Future) Then(onResolve func(any), onReject func(error)) {
	f.OnSettle(func(value any, err error) {
		if err != nil {
			if onReject != nil {
				onReject(err)
			}
			return
		}
		if onResolve != nil {
			onResolve(value)
		}
	})
}

func (f *Future) settle(status Status, value any, err error) bool {
	f.mu.Lock()
	if f.status != StatusPending {
		f.mu.Unlock()
		return false
	}
	f.status = status
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn(value, err)
	}
	return true
}

// Deferred is the write side of a Future.
type Deferred struct {
	future *Future

	mu      sync.Mutex
	adopted bool
}

// NewDeferred creates a pending future and its settling handle.
func NewDeferred() *Deferred {
	return &Deferred{future: newFuture()}
}

// Future returns the read side.
func (d *Deferred) Future() *Future {
	return d.future
}

// Resolve settles the future with v. When v is itself a *Future the deferred
// adopts its outcome instead. Returns false if the future was already
// settled or is already following another future.
func (d *Deferred) Resolve(v any) bool {
	other, ok := v.(*Future)
	if ok && other == d.future {
		return d.Reject(errors.New("future resolved with itself"))
	}
	if !d.claim(ok && other != nil) {
		return false
	}
	if !ok || other == nil {
		return d.future.settle(StatusResolved, v, nil)
	}
	other.OnSettle(func(value any, err error) {
		if err != nil {
			d.future.settle(StatusRejected, nil, err)
			return
		}
		d.future.settle(StatusResolved, value, nil)
	})
	return true
}

// Reject settles the future with err. A nil err becomes ErrRejected.
func (d *Deferred) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	if !d.claim(false) {
		return false
	}
	return d.future.settle(StatusRejected, nil, err)
}

// claim reports whether the caller may settle the future. Once a deferred
// adopts another future no direct settlement is accepted.
func (d *Deferred) claim(adopt bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.adopted || d.future.Status() != StatusPending {
		return false
	}
	if adopt {
		d.adopted = true
	}
	return true
}

// Settled reports whether the deferred's future has left Pending.
func (d *Deferred) Settled() bool {
	return d.future.Status() != StatusPending
}

// Outcome is one entry of an All result.
type Outcome struct {
	Value any
	Err   error
}

// All returns a future that resolves once every input has settled, whatever
// the outcome. It never rejects; the resolved value is an []Outcome in input
// order.
func All(futures ...*Future) *Future {
	d := NewDeferred()
	outcomes := make([]Outcome, len(futures))
	if len(futures) == 0 {
		d.Resolve(outcomes)
		return d.Future()
	}
	var mu sync.Mutex
	remaining := len(futures)
	for i, f := range futures {
		i := i
		f.OnSettle(func(value any, err error) {
			mu.Lock()
			outcomes[i] = Outcome{Value: value, Err: err}
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				d.Resolve(outcomes)
			}
		})
	}
	return d.Future()
}
