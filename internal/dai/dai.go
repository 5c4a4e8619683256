// Package dai is the deferred data access engine: references that pipeline
// commands against resources whose identity is not known yet.
package dai

import (
	"sync"

	"restobject/internal/events"
	"restobject/internal/future"
	"restobject/internal/resource"
)

type options struct {
	structural bool
	registry   *resource.Registry
	pool       *resource.Pool
	ownPool    bool
	cache      Cache
	destroy    HandlerFunc
}

type Option func(*options)

// WithStructural requires navigate, assign and invoke handlers.
func WithStructural(enabled bool) Option {
	return func(o *options) { o.structural = enabled }
}

func WithRegistry(r *resource.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithPool registers p with the registry and uses it for new identities.
func WithPool(p *resource.Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithOwnPool creates a dedicated pool from the registry.
func WithOwnPool() Option {
	return func(o *options) { o.ownPool = true }
}

func WithCache(c Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithDestroyHandler replaces the default destroy handler, which removes
// the identity from its registered pool.
func WithDestroyHandler(fn HandlerFunc) Option {
	return func(o *options) { o.destroy = fn }
}

// Interface ties a handler table, factory and converter to a registry and pool.
type Interface struct {
	handlers  *Handlers
	factory   *Factory
	converter *Converter
	registry  *resource.Registry

	mu          sync.Mutex
	pool        *resource.Pool
	unsubscribe func()
}

// New validates handlers and assembles an Interface.
func New(handlers any, opts ...Option) (*Interface, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	h, err := NewHandlers(handlers, o.structural)
	if err != nil {
		return nil, err
	}
	registry := o.registry
	if registry == nil {
		registry = resource.NewRegistry()
	}
	pool := o.pool
	switch {
	case pool != nil:
		registry.Register(pool)
	case o.ownPool:
		pool = registry.CreatePool()
	default:
		pool = registry.DefaultPool()
	}
	destroy := o.destroy
	if destroy == nil {
		destroy = RemoveFromRegistry(registry)
	}
	h.SetDestroyHandler(destroy)

	factory := NewFactory(h, o.cache)
	i := &Interface{
		handlers:  h,
		factory:   factory,
		converter: NewConverter(factory, registry, pool),
		registry:  registry,
	}
	i.watchPool(pool)
	return i, nil
}

// RemoveFromRegistry returns a destroy handler removing the parent's
// identity from its pool when that pool is registered.
func RemoveFromRegistry(registry *resource.Registry) HandlerFunc {
	return func(parent *Reference, _ *Package, deferred *future.Deferred, _ *Reference) {
		if rec, ok := parent.Record(); ok {
			if pool := registry.Get(rec.PoolID); pool != nil {
				pool.Remove(rec.ID)
			}
		}
		deferred.Resolve(nil)
	}
}

// watchPool swaps in a fresh pool when the current one is destroyed.
func (i *Interface) watchPool(p *resource.Pool) {
	i.mu.Lock()
	i.pool = p
	i.unsubscribe = p.AddListener(resource.EventPoolDestroyed, func(events.Event) {
		next := i.registry.CreatePool()
		i.converter.setPool(next)
		i.watchPool(next)
	})
	i.mu.Unlock()
	i.converter.setPool(p)
}

func (i *Interface) Handlers() *Handlers          { return i.handlers }
func (i *Interface) Factory() *Factory            { return i.factory }
func (i *Interface) Converter() *Converter        { return i.converter }
func (i *Interface) Registry() *resource.Registry { return i.registry }
func (i *Interface) Structural() bool             { return i.handlers.Structural() }

func (i *Interface) Pool() *resource.Pool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pool
}

// Create wraps an eventual value in a reference.
func (i *Interface) Create(source *future.Future) *Reference {
	return i.factory.Create(source)
}

// Resolve wraps an already known value.
func (i *Interface) Resolve(value any) *Reference {
	return i.factory.Create(future.Resolved(value))
}

func (i *Interface) Parse(data any) any  { return i.converter.Parse(data) }
func (i *Interface) ToJSON(data any) any { return i.converter.ToJSON(data) }
