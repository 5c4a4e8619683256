package resource

import (
	"sync"

	"restobject/internal/events"
)

// Registry notifications.
const (
	EventPoolCreated    = "resourcePoolCreated"
	EventPoolRegistered = "resourcePoolRegistered"
	EventPoolRemoved    = "resourcePoolRemoved"
)

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-wide pool shared by every registry. It is
// created on first use and cannot be destroyed.
func DefaultPool() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool()
		defaultPool.isDefault = true
	})
	return defaultPool
}

type registration struct {
	pool        *Pool
	unsubscribe func()
}

// Registry owns pools by id. The default pool is always registered.
type Registry struct {
	events events.Dispatcher

	mu    sync.Mutex
	pools map[string]registration
}

func NewRegistry() *Registry {
	r := &Registry{pools: map[string]registration{}}
	r.Register(DefaultPool())
	return r
}

func (r *Registry) AddListener(evtType string, fn events.Listener) func() {
	return r.events.AddListener(evtType, fn)
}

func (r *Registry) DefaultPool() *Pool {
	return DefaultPool()
}

// CreatePool allocates and registers a new pool.
func (r *Registry) CreatePool() *Pool {
	p := NewPool()
	r.events.Dispatch(EventPoolCreated, p)
	r.Register(p)
	return p
}

// Register adds p; a pool that destroys itself is dropped automatically.
func (r *Registry) Register(p *Pool) {
	r.mu.Lock()
	if _, ok := r.pools[p.ID()]; ok {
		r.mu.Unlock()
		return
	}
	unsubscribe := p.AddListener(EventPoolDestroyed, func(events.Event) {
		r.Remove(p)
	})
	r.pools[p.ID()] = registration{pool: p, unsubscribe: unsubscribe}
	r.mu.Unlock()
	r.events.Dispatch(EventPoolRegistered, p)
}

// Get returns the registered pool with id, nil when unknown.
func (r *Registry) Get(id string) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pools[id].pool
}

// IsRegistered accepts a *Pool or a pool id.
func (r *Registry) IsRegistered(poolOrID any) bool {
	id, ok := poolID(poolOrID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, found := r.pools[id]
	return found
}

// Remove unregisters a pool. The default pool is never removed.
func (r *Registry) Remove(poolOrID any) bool {
	id, ok := poolID(poolOrID)
	if !ok || id == DefaultPool().ID() {
		return false
	}
	r.mu.Lock()
	reg, found := r.pools[id]
	if found {
		delete(r.pools, id)
	}
	r.mu.Unlock()
	if !found {
		return false
	}
	reg.unsubscribe()
	r.events.Dispatch(EventPoolRemoved, reg.pool)
	return true
}

// Pools returns the registered pools.
func (r *Registry) Pools() []*Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Pool, 0, len(r.pools))
	for _, reg := range r.pools {
		out = append(out, reg.pool)
	}
	return out
}

func poolID(poolOrID any) (string, bool) {
	switch v := poolOrID.(type) {
	case *Pool:
		if v == nil {
			return "", false
		}
		return v.ID(), true
	case string:
		return v, v != ""
	}
	return "", false
}
