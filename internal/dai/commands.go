package dai

import (
	"fmt"
	"sync"

	"restobject/internal/future"
)

// Invoker issues one registered command against a parent reference.
type Invoker func(parent *Reference, command string, value any) *Reference

// Navigator is the structural capability set. A frontend maps its own
// navigation syntax onto these four operations.
type Navigator interface {
	Navigate(key string) *Reference
	Assign(key string, value any) *Reference
	Invoke(values ...any) *Reference
	Remove(key string) *Reference
}

var _ Navigator = (*Reference)(nil)

// members builds and memoizes one Invoker per descriptor name.
type members struct {
	factory *Factory

	mu       sync.Mutex
	invokers map[string]Invoker
}

func newMembers(f *Factory) *members {
	return &members{factory: f, invokers: map[string]Invoker{}}
}

func (m *members) get(d *Descriptor) Invoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.invokers[d.name]; ok {
		return inv
	}
	inv := m.build(d)
	m.invokers[d.name] = inv
	return inv
}

func (m *members) build(d *Descriptor) Invoker {
	return func(parent *Reference, command string, value any) *Reference {
		pack := &Package{Type: d.commandType, Command: command, Value: value, Target: parent.ID()}
		child, deferred := m.childFor(d, parent, pack)
		if deferred == nil {
			return child
		}
		parent.SendRequest(d.name, pack, deferred, child)
		return child
	}
}

// childFor returns a cached child, or a fresh one with the deferred that
// will settle it. The temporary policy is attached before the child exists
// so it runs ahead of the child's own settlement.
func (m *members) childFor(d *Descriptor, parent *Reference, pack *Package) (*Reference, *future.Deferred) {
	if d.cacheable {
		if cached := m.factory.GetCached(d.name, pack); cached != nil {
			return cached, nil
		}
	}
	deferred := future.NewDeferred()
	var child *Reference
	deferred.Future().OnSettle(func(value any, err error) {
		if err != nil || child == nil {
			return
		}
		child.SetTemporary(d.IsTemporary(parent, child, pack, value))
	})
	if d.cacheable {
		child = m.factory.CreateCached(deferred.Future(), d.name, pack)
	} else {
		child = m.factory.Create(deferred.Future())
	}
	return child, deferred
}

// Commands lists the command names this reference exposes.
func (r *Reference) Commands() []string {
	if !r.isDecorated() {
		return nil
	}
	return r.factory.handlers.Names()
}

// HasCommand reports whether name can be invoked on r.
func (r *Reference) HasCommand(name string) bool {
	return r.isDecorated() && r.factory.handlers.HasHandler(name) && name != CommandDestroy
}

func (r *Reference) isDecorated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decorated
}

// Call invokes the command registered as name and returns the child
// reference standing for its result. Failures surface through the child.
func (r *Reference) Call(name, command string, value any) *Reference {
	if !r.HasCommand(name) {
		return r.factory.Create(future.Rejected(fmt.Errorf("%w: %q", ErrHandlerNotFound, name)))
	}
	d := r.factory.handlers.Handler(name)
	return r.factory.members.get(d)(r, command, value)
}

func (r *Reference) Navigate(key string) *Reference {
	return r.Call(CommandNavigate, key, nil)
}

func (r *Reference) Assign(key string, value any) *Reference {
	return r.Call(CommandAssign, key, value)
}

// Invoke passes values to the invoke handler as a []any payload.
func (r *Reference) Invoke(values ...any) *Reference {
	return r.Call(CommandInvoke, "", values)
}

func (r *Reference) Remove(key string) *Reference {
	return r.Call(CommandRemove, key, nil)
}
