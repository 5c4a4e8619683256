package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"restobject/internal/events"
)

// Pool notifications.
const (
	EventResourceAdded   = "resourceAdded"
	EventResourceRemoved = "resourceRemoved"
	EventPoolClear       = "poolClear"
	EventPoolCleared     = "poolCleared"
	EventPoolDestroyed   = "poolDestroyed"
)

var (
	ErrInvalidTarget      = errors.New("resource: invalid target")
	ErrPoolDestroyed      = errors.New("resource: pool destroyed")
	ErrDefaultPoolDestroy = errors.New("resource: default pool cannot be destroyed")
)

// Pool maps values to identities and back.
type Pool struct {
	id        string
	isDefault bool
	events    events.Dispatcher

	mu      sync.Mutex
	active  bool
	byID    map[string]*Identity
	byValue map[any]*Identity
}

// NewPool returns an empty, unregistered pool.
func NewPool() *Pool {
	return &Pool{
		id:      uuid.New().String(),
		active:  true,
		byID:    map[string]*Identity{},
		byValue: map[any]*Identity{},
	}
}

func (p *Pool) ID() string { return p.id }

// IsDefault reports whether p is the process-wide default pool.
func (p *Pool) IsDefault() bool { return p.isDefault }

// Active is false once the pool has been destroyed.
func (p *Pool) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// AddListener subscribes to one of the pool notifications.
func (p *Pool) AddListener(evtType string, fn events.Listener) func() {
	return p.events.AddListener(evtType, fn)
}

func (p *Pool) HasListener(evtType string) bool {
	return p.events.HasListener(evtType)
}

// Set returns the identity of value, assigning one when value is new. typ
// defaults to the Go type name.
func (p *Pool) Set(value any, typ string) (*Identity, error) {
	if !IsValidTarget(value) {
		return nil, fmt.Errorf("%w: %T", ErrInvalidTarget, value)
	}
	key, _ := keyOf(value)
	if typ == "" {
		typ = fmt.Sprintf("%T", value)
	}
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil, ErrPoolDestroyed
	}
	if ident, ok := p.byValue[key]; ok {
		p.mu.Unlock()
		return ident, nil
	}
	ident := newIdentity(uuid.New().String(), typ, p.id, value)
	p.byID[ident.id] = ident
	p.byValue[key] = ident
	p.mu.Unlock()

	p.events.Dispatch(EventResourceAdded, ident)
	return ident, nil
}

// Has reports whether value has an identity in p.
func (p *Pool) Has(value any) bool {
	return p.lookupValue(value) != nil
}

// Get returns the identity for an id or a value, nil when unknown.
func (p *Pool) Get(key any) *Identity {
	if id, ok := key.(string); ok {
		if ident := p.GetByID(id); ident != nil {
			return ident
		}
	}
	return p.lookupValue(key)
}

// GetByID returns the identity stored under id, nil when unknown.
func (p *Pool) GetByID(id string) *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byID[id]
}

func (p *Pool) lookupValue(value any) *Identity {
	if value == nil {
		return nil
	}
	key, ok := keyOf(value)
	if !ok {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byValue[key]
}

// Len returns the number of identities held.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

// Remove drops the identity for an id or value. The removed notification
// fires while the entry is still visible; afterwards the identity is
// finalized.
func (p *Pool) Remove(key any) bool {
	ident := p.Get(key)
	if ident == nil || !ident.claimRemoval() {
		return false
	}
	id, value := ident.ID(), ident.Value()
	p.events.Dispatch(EventResourceRemoved, ident)

	p.mu.Lock()
	delete(p.byID, id)
	if vk, ok := keyOf(value); ok {
		if current, ok := p.byValue[vk]; ok && current == ident {
			delete(p.byValue, vk)
		}
	}
	p.mu.Unlock()

	ident.finalize()
	return true
}

// Clear finalizes every identity and empties the pool.
func (p *Pool) Clear() {
	if !p.Active() {
		return
	}
	p.events.Dispatch(EventPoolClear, p)
	p.mu.Lock()
	for _, ident := range p.byID {
		ident.finalize()
	}
	p.byID = map[string]*Identity{}
	p.byValue = map[any]*Identity{}
	p.mu.Unlock()
	p.events.Dispatch(EventPoolCleared, p)
}

// Destroy clears p and disables it for good.
func (p *Pool) Destroy() error {
	if p.isDefault {
		return ErrDefaultPoolDestroy
	}
	if !p.Active() {
		return ErrPoolDestroyed
	}
	p.Clear()
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
	p.events.Dispatch(EventPoolDestroyed, p)
	p.events.RemoveAll("")
	return nil
}
