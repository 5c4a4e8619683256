package dai

import (
	"sync"

	"github.com/golang/glog"

	"restobject/internal/future"
	"restobject/internal/resource"
)

// Factory creates references and, for cacheable commands, reuses them.
type Factory struct {
	handlers *Handlers
	cache    Cache
	members  *members

	mu        sync.RWMutex
	converter *Converter
}

// NewFactory returns a factory dispatching through handlers. cache may be nil.
func NewFactory(handlers *Handlers, cache Cache) *Factory {
	f := &Factory{handlers: handlers, cache: cache}
	f.members = newMembers(f)
	return f
}

func (f *Factory) Handlers() *Handlers { return f.handlers }
func (f *Factory) Cache() Cache        { return f.cache }

func (f *Factory) setConverter(c *Converter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converter = c
}

// capture extracts the identity of a settled value.
func (f *Factory) capture(value any) (resource.Record, bool) {
	f.mu.RLock()
	c := f.converter
	f.mu.RUnlock()
	if c != nil {
		return c.Capture(value)
	}
	return resource.RecordOf(value)
}

// Create wraps source in a new reference. When commands are registered the
// reference exposes them through Call.
func (f *Factory) Create(source *future.Future) *Reference {
	r := newReference(f, source)
	if f.handlers.Available() {
		r.mu.Lock()
		r.decorated = true
		r.mu.Unlock()
	}
	return r
}

// GetCached looks up a reference created for the same name and package.
// Destroyed entries are dropped instead of returned.
func (f *Factory) GetCached(name string, pack *Package) *Reference {
	if f.cache == nil {
		return nil
	}
	r := f.cache.Get(name, pack)
	if r != nil && r.Status() == Destroyed {
		f.cache.Remove(name, pack, r)
		return nil
	}
	return r
}

// CreateCached creates a reference and stores it under (name, pack). An
// existing entry is never replaced.
func (f *Factory) CreateCached(source *future.Future, name string, pack *Package) *Reference {
	r := f.Create(source)
	if f.cache == nil {
		return r
	}
	if !f.cache.Set(name, pack, r) {
		glog.Warningf("[dai] reference for %q not cached: entry exists or package cannot be keyed", name)
		return r
	}
	r.mu.Lock()
	r.cacheName, r.cachePack = name, pack
	r.mu.Unlock()
	return r
}

// uncache drops r from the cache once it is destroyed.
func (f *Factory) uncache(r *Reference) {
	r.mu.Lock()
	name, pack := r.cacheName, r.cachePack
	r.cachePack = nil
	r.mu.Unlock()
	if f.cache == nil || pack == nil {
		return
	}
	f.cache.Remove(name, pack, r)
}
