package dai

import (
	"fmt"
	"runtime/debug"
	"slices"
	"sort"
	"sync"

	"github.com/golang/glog"

	"restobject/internal/future"
)

// Handlers is the command descriptor table.
type Handlers struct {
	structural bool

	mu        sync.RWMutex
	ordered   []*Descriptor
	byName    map[string]*Descriptor
	destroy   *Descriptor
	converter *Converter
}

// NewHandlers builds a table from collection; see SetHandlers.
func NewHandlers(collection any, structural bool) (*Handlers, error) {
	h := &Handlers{
		structural: structural,
		byName:     map[string]*Descriptor{},
		destroy:    NewDescriptor(CommandDestroy, resolveDestroy),
	}
	if err := h.SetHandlers(collection); err != nil {
		return nil, err
	}
	return h, nil
}

func resolveDestroy(_ *Reference, _ *Package, deferred *future.Deferred, _ *Reference) {
	deferred.Resolve(nil)
}

// SetHandlers replaces the table. collection is a []*Descriptor, a
// map[string]*Descriptor or a map of names to handler funcs; maps are
// registered in name order. Nothing is registered when validation fails.
func (h *Handlers) SetHandlers(collection any) error {
	descriptors, err := toDescriptors(collection)
	if err != nil {
		return err
	}
	byName := make(map[string]*Descriptor, len(descriptors))
	for _, d := range descriptors {
		if err := validateDescriptor(d); err != nil {
			return err
		}
		if _, dup := byName[d.name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, d.name)
		}
		byName[d.name] = d
	}
	if h.structural {
		for _, name := range requiredStructural {
			if _, ok := byName[name]; !ok {
				return fmt.Errorf("%w: %q", ErrMissingStructural, name)
			}
		}
	}
	h.mu.Lock()
	h.ordered = descriptors
	h.byName = byName
	h.mu.Unlock()
	return nil
}

func validateDescriptor(d *Descriptor) error {
	if d == nil || d.handle == nil {
		return fmt.Errorf("%w: descriptor without handler", ErrInvalidHandlers)
	}
	if d.name == "" {
		return fmt.Errorf("%w: descriptor %q without name", ErrInvalidHandlers, d.commandType)
	}
	if d.commandType == CommandDestroy || d.name == CommandDestroy {
		return fmt.Errorf("%w: %q", ErrReservedCommand, CommandDestroy)
	}
	if d.name == NameThen || d.name == NameCatch {
		return fmt.Errorf("%w: %q", ErrReservedName, d.name)
	}
	return nil
}

func toDescriptors(collection any) ([]*Descriptor, error) {
	switch c := collection.(type) {
	case nil:
		return nil, nil
	case []*Descriptor:
		return slices.Clone(c), nil
	case map[string]*Descriptor:
		out := make([]*Descriptor, 0, len(c))
		for _, name := range sortedKeys(c) {
			out = append(out, c[name])
		}
		return out, nil
	case map[string]HandlerFunc:
		return wrapHandlers(c), nil
	case map[string]func(*Reference, *Package, *future.Deferred, *Reference):
		wrapped := make(map[string]HandlerFunc, len(c))
		for name, fn := range c {
			wrapped[name] = fn
		}
		return wrapHandlers(wrapped), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidHandlers, collection)
}

func wrapHandlers(m map[string]HandlerFunc) []*Descriptor {
	out := make([]*Descriptor, 0, len(m))
	for _, name := range sortedKeys(m) {
		if m[name] == nil {
			out = append(out, &Descriptor{name: name, commandType: name})
			continue
		}
		out = append(out, NewDescriptor(name, m[name]))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetDestroyHandler replaces the handler run for CommandDestroy.
func (h *Handlers) SetDestroyHandler(fn HandlerFunc) {
	if fn == nil {
		fn = resolveDestroy
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroy = NewDescriptor(CommandDestroy, fn)
}

func (h *Handlers) setConverter(c *Converter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.converter = c
}

// Structural reports whether navigate/assign/invoke handlers are enforced.
func (h *Handlers) Structural() bool { return h.structural }

// Available is true when at least one command is registered.
func (h *Handlers) Available() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ordered) > 0
}

func (h *Handlers) HasHandler(name string) bool {
	return h.Handler(name) != nil
}

// Handler returns the descriptor for name, nil when none is registered.
func (h *Handlers) Handler(name string) *Descriptor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if name == CommandDestroy {
		return h.destroy
	}
	return h.byName[name]
}

// Descriptors returns the registered descriptors in registration order.
func (h *Handlers) Descriptors() []*Descriptor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.ordered)
}

// Names returns the registered command names in registration order.
func (h *Handlers) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, len(h.ordered))
	for i, d := range h.ordered {
		names[i] = d.name
	}
	return names
}

// Handle dispatches a command. When the payload holds references that are
// still pending, dispatch waits until every one of them has settled.
func (h *Handlers) Handle(parent *Reference, name string, pack *Package, deferred *future.Deferred, child *Reference) {
	h.mu.RLock()
	converter := h.converter
	h.mu.RUnlock()

	var pending []*Reference
	if converter != nil {
		pending = converter.LookupForPending(pack.Value)
	}
	if len(pending) == 0 {
		h.handleImmediately(parent, name, pack, deferred, child)
		return
	}
	glog.V(2).Infof("[dai] %s waits for %d pending payload reference(s)", name, len(pending))
	waits := make([]*future.Future, len(pending))
	for i, ref := range pending {
		waits[i] = ref.own.Future()
	}
	future.All(waits...).OnSettle(func(any, error) {
		h.handleImmediately(parent, name, pack, deferred, child)
	})
}

func (h *Handlers) handleImmediately(parent *Reference, name string, pack *Package, deferred *future.Deferred, child *Reference) {
	d := h.Handler(name)
	if d == nil {
		deferred.Reject(fmt.Errorf("%w: %q", ErrHandlerNotFound, name))
		return
	}
	defer func() {
		if r := recover(); r != nil {
			glog.Warningf("[dai] handler %q panicked: %v\n%s", name, r, debug.Stack())
			deferred.Reject(fmt.Errorf("%w: %q: %v", ErrHandlerPanic, name, r))
		}
	}()
	glog.V(2).Infof("[dai] dispatch %s target=%s", name, pack.Target)
	d.handle(parent, pack, deferred, child)
}
