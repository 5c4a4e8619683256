package dai

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/golang/glog"

	"restobject/internal/codec"
	"restobject/internal/future"
	"restobject/internal/resource"
)

// Status is the lifecycle state of a Reference.
type Status int

const (
	Pending Status = iota
	Resolved
	Rejected
	Destroyed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type queuedCommand struct {
	name     string
	pack     *Package
	deferred *future.Deferred
	child    *Reference
}

// Reference wraps an eventual value and pipelines commands against it.
// Commands issued while it is pending are queued and dispatched in order
// once the value resolves to a resource.
type Reference struct {
	factory *Factory
	own     *future.Deferred

	mu               sync.Mutex
	status           Status
	record           resource.Record
	hasRecord        bool
	queue            []queuedCommand
	draining         bool
	children         []*Reference
	temporary        bool
	hadChildPromises bool
	decorated        bool
	cacheName        string
	cachePack        *Package
}

func newReference(f *Factory, source *future.Future) *Reference {
	r := &Reference{factory: f, own: future.NewDeferred()}
	source.OnSettle(r.settle)
	return r
}

func (r *Reference) settle(value any, err error) {
	if err != nil {
		r.reject(err, fmt.Errorf("%w: %w", ErrTargetNotSent, err))
		r.own.Reject(err)
		return
	}
	rec, ok := r.factory.capture(value)
	if !ok {
		r.reject(nil, fmt.Errorf("%w: %w", ErrTargetNotSent, ErrNotResource))
		r.own.Resolve(value)
		return
	}

	r.mu.Lock()
	if r.status != Pending {
		r.mu.Unlock()
		return
	}
	r.status = Resolved
	r.record = rec
	r.hasRecord = true
	r.draining = true
	r.mu.Unlock()

	r.drain()
	if r.Temporary() {
		r.Destroy()
	}
	r.own.Resolve(r)
}

func (r *Reference) reject(cause, queueErr error) {
	r.mu.Lock()
	if r.status != Pending {
		r.mu.Unlock()
		return
	}
	r.status = Rejected
	queue := r.queue
	r.queue = nil
	r.mu.Unlock()
	if cause != nil {
		glog.V(2).Infof("[dai] reference rejected: %v", cause)
	}
	for _, q := range queue {
		q.deferred.Reject(queueErr)
	}
}

// drain dispatches queued commands in FIFO order. Commands issued while
// draining are appended and dispatched by the same loop.
func (r *Reference) drain() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.queue = nil
			r.draining = false
			r.mu.Unlock()
			return
		}
		q := r.queue[0]
		r.queue = r.queue[1:]
		status := r.status
		q.pack.Target = r.record.ID
		r.mu.Unlock()

		if status == Destroyed {
			q.deferred.Reject(ErrTargetDestroyed)
			continue
		}
		r.factory.handlers.Handle(r, q.name, q.pack, q.deferred, q.child)
	}
}

// SendRequest issues the command registered as name. A nil deferred is
// created on demand; the returned future is its read side. child, when set,
// is tracked until its own future settles.
func (r *Reference) SendRequest(name string, pack *Package, deferred *future.Deferred, child *Reference) *future.Future {
	if deferred == nil {
		deferred = future.NewDeferred()
	}
	if pack == nil {
		pack = &Package{Type: name}
	}
	if !r.factory.handlers.HasHandler(name) {
		deferred.Reject(fmt.Errorf("%w: %q", ErrHandlerNotFound, name))
		return deferred.Future()
	}
	if child != nil {
		r.registerChild(child)
	}

	r.mu.Lock()
	switch {
	case r.status == Pending, r.status == Resolved && r.draining:
		r.queue = append(r.queue, queuedCommand{name: name, pack: pack, deferred: deferred, child: child})
		r.mu.Unlock()
	case r.status == Resolved:
		pack.Target = r.record.ID
		r.mu.Unlock()
		r.factory.handlers.Handle(r, name, pack, deferred, child)
	case r.status == Rejected:
		r.mu.Unlock()
		deferred.Reject(ErrTargetRejected)
	default:
		r.mu.Unlock()
		deferred.Reject(ErrTargetDestroyed)
	}
	return deferred.Future()
}

func (r *Reference) registerChild(child *Reference) {
	r.mu.Lock()
	r.children = append(r.children, child)
	r.mu.Unlock()
	child.own.Future().OnSettle(func(any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if i := slices.Index(r.children, child); i >= 0 {
			r.children = slices.Delete(r.children, i, i+1)
		}
	})
}

// Destroy is legal once the reference has settled. A resolved reference
// sends CommandDestroy and becomes Destroyed whatever the command's outcome.
func (r *Reference) Destroy() *future.Future {
	r.mu.Lock()
	switch r.status {
	case Resolved:
		r.status = Destroyed
		pack := &Package{Type: CommandDestroy, Target: r.record.ID}
		r.mu.Unlock()
		r.factory.uncache(r)
		d := future.NewDeferred()
		r.factory.handlers.Handle(r, CommandDestroy, pack, d, nil)
		return d.Future()
	case Rejected:
		r.status = Destroyed
		r.mu.Unlock()
		r.factory.uncache(r)
		return future.Resolved(nil)
	default:
		r.mu.Unlock()
		return future.Rejected(ErrInvalidDestroy)
	}
}

// Then attaches continuations to the reference's own completion. A reference
// that resolved to a resource completes with itself; one that settled to any
// other value completes with that value.
func (r *Reference) Then(onResolve func(any), onReject func(error)) {
	r.markChained()
	r.own.Future().Then(onResolve, onReject)
}

func (r *Reference) Catch(onReject func(error)) {
	r.markChained()
	r.own.Future().Then(nil, onReject)
}

// Wait blocks until the reference's own completion or ctx is done.
func (r *Reference) Wait(ctx context.Context) (any, error) {
	r.markChained()
	return r.own.Future().Wait(ctx)
}

// Future exposes the own completion without marking the reference as chained.
func (r *Reference) Future() *future.Future {
	return r.own.Future()
}

func (r *Reference) markChained() {
	r.mu.Lock()
	r.hadChildPromises = true
	r.mu.Unlock()
}

func (r *Reference) HadChildPromises() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hadChildPromises
}

func (r *Reference) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Reference) IsPending() bool { return r.Status() == Pending }

// IsActive is true while commands may still be issued.
func (r *Reference) IsActive() bool {
	s := r.Status()
	return s == Pending || s == Resolved
}

func (r *Reference) CanBeDestroyed() bool {
	s := r.Status()
	return s == Resolved || s == Rejected
}

// Record returns the identity captured at resolution.
func (r *Reference) Record() (resource.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record, r.hasRecord
}

// ResourceRecord implements resource.Resource.
func (r *Reference) ResourceRecord() (resource.Record, bool) {
	return r.Record()
}

// ID is the target id, empty until resolved.
func (r *Reference) ID() string {
	rec, _ := r.Record()
	return rec.ID
}

func (r *Reference) PoolID() string {
	rec, _ := r.Record()
	return rec.PoolID
}

func (r *Reference) Type() string {
	rec, _ := r.Record()
	return rec.Type
}

func (r *Reference) QueueLength() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// QueueCommands lists the names of queued commands in dispatch order.
func (r *Reference) QueueCommands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.queue))
	for i, q := range r.queue {
		names[i] = q.name
	}
	return names
}

// Children returns the derived references that have not settled yet.
func (r *Reference) Children() []*Reference {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.children)
}

func (r *Reference) LastChild() *Reference {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.children) == 0 {
		return nil
	}
	return r.children[len(r.children)-1]
}

func (r *Reference) Temporary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.temporary
}

func (r *Reference) SetTemporary(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.temporary = v
}

// MarshalJSON writes the identity envelope.
func (r *Reference) MarshalJSON() ([]byte, error) {
	rec, _ := r.Record()
	return json.Marshal(rec.Envelope())
}

// MarshalCBOR fails until the identity is known, which keeps packages that
// carry pending references out of the cache.
func (r *Reference) MarshalCBOR() ([]byte, error) {
	rec, ok := r.Record()
	if !ok {
		return nil, errIdentityUnknown
	}
	return codec.Marshal(rec.Envelope())
}
