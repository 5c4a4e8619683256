package dai

import (
	"sync"

	"restobject/internal/events"
	"restobject/internal/future"
	"restobject/internal/resource"
)

// Converter notifications.
const (
	EventResourceCreated   = "resourceCreated"
	EventResourceConverted = "resourceConverted"
)

// maxLookupDepth bounds recursion through nested payloads.
const maxLookupDepth = 64

// Conversion is the payload of converter notifications.
type Conversion struct {
	Data   any
	Result any
}

// Converter translates between wire records and live values.
type Converter struct {
	factory  *Factory
	registry *resource.Registry
	events   events.Dispatcher

	mu   sync.RWMutex
	pool *resource.Pool
}

// NewConverter wires itself into factory and handlers.
func NewConverter(factory *Factory, registry *resource.Registry, pool *resource.Pool) *Converter {
	c := &Converter{factory: factory, registry: registry, pool: pool}
	factory.setConverter(c)
	factory.handlers.setConverter(c)
	return c
}

func (c *Converter) AddListener(evtType string, fn events.Listener) func() {
	return c.events.AddListener(evtType, fn)
}

// Pool is where convertible values get their identities.
func (c *Converter) Pool() *resource.Pool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pool
}

func (c *Converter) setPool(p *resource.Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool = p
}

// Capture returns the identity of value: its own record when it is a
// resource, or a fresh identity from the pool when it is Convertible.
func (c *Converter) Capture(value any) (resource.Record, bool) {
	if rec, ok := resource.RecordOf(value); ok {
		return rec, true
	}
	conv, ok := value.(resource.Convertible)
	if !ok {
		return resource.Record{}, false
	}
	ident, err := c.Pool().Set(value, conv.ResourceType())
	if err != nil {
		return resource.Record{}, false
	}
	return ident.Record(), true
}

// ToJSON replaces resources inside data with their wire envelopes.
func (c *Converter) ToJSON(data any) any {
	return c.toJSON(data, 0)
}

func (c *Converter) toJSON(data any, depth int) any {
	if depth > maxLookupDepth {
		return data
	}
	switch v := data.(type) {
	case nil:
		return nil
	case []any:
		return c.LookupArray(v, func(item any) any { return c.toJSON(item, depth+1) })
	case map[string]any:
		if !resource.IsResource(v) {
			return c.LookupObject(v, func(item any) any { return c.toJSON(item, depth+1) })
		}
	}
	return c.ResourceToObject(data)
}

// ResourceToObject converts a single resource; other values pass through.
func (c *Converter) ResourceToObject(data any) any {
	rec, ok := resource.RecordOf(data)
	if !ok {
		if _, convertible := data.(resource.Convertible); !convertible {
			return data
		}
		if rec, ok = c.Capture(data); !ok {
			return data
		}
	}
	result := rec.Envelope()
	if c.events.HasListener(EventResourceConverted) {
		c.events.Dispatch(EventResourceConverted, Conversion{Data: data, Result: result})
	}
	return result
}

// Parse replaces wire records inside data with live values. Records of a
// locally registered pool resolve to the pooled value, nil when stale;
// records of foreign pools become new resolved references.
func (c *Converter) Parse(data any) any {
	return c.parse(data, 0)
}

func (c *Converter) parse(data any, depth int) any {
	if depth > maxLookupDepth {
		return data
	}
	switch v := data.(type) {
	case nil:
		return nil
	case []any:
		return c.LookupArray(v, func(item any) any { return c.parse(item, depth+1) })
	case map[string]any:
		if resource.IsResource(v) {
			return c.ObjectToResource(v)
		}
		return c.LookupObject(v, func(item any) any { return c.parse(item, depth+1) })
	case resource.Envelope, *resource.Envelope:
		return c.ObjectToResource(v)
	}
	return data
}

// ObjectToResource converts a single wire record; other values pass through.
func (c *Converter) ObjectToResource(data any) any {
	switch data.(type) {
	case map[string]any, resource.Envelope, *resource.Envelope:
	default:
		return data
	}
	rec, ok := resource.RecordOf(data)
	if !ok {
		return data
	}
	var result any
	if c.registry.IsRegistered(rec.PoolID) {
		if pool := c.registry.Get(rec.PoolID); pool != nil {
			if ident := pool.GetByID(rec.ID); ident != nil {
				result = ident.Value()
			}
		}
	} else {
		result = c.factory.Create(future.Resolved(rec.Envelope()))
	}
	if c.events.HasListener(EventResourceCreated) {
		c.events.Dispatch(EventResourceCreated, Conversion{Data: data, Result: result})
	}
	return result
}

// LookupArray maps fn over list into a new slice.
func (c *Converter) LookupArray(list []any, fn func(any) any) []any {
	out := make([]any, len(list))
	for i, item := range list {
		out[i] = fn(item)
	}
	return out
}

// LookupObject maps fn over the values of obj into a new map.
func (c *Converter) LookupObject(obj map[string]any, fn func(any) any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, item := range obj {
		out[k] = fn(item)
	}
	return out
}

// LookupForPending collects the pending references found in data.
func (c *Converter) LookupForPending(data any) []*Reference {
	var out []*Reference
	collectPending(data, &out, 0)
	return out
}

func collectPending(data any, out *[]*Reference, depth int) {
	if depth > maxLookupDepth {
		return
	}
	switch v := data.(type) {
	case *Reference:
		if v != nil && v.IsPending() {
			*out = append(*out, v)
		}
	case []*Reference:
		for _, ref := range v {
			collectPending(ref, out, depth+1)
		}
	case []any:
		for _, item := range v {
			collectPending(item, out, depth+1)
		}
	case map[string]any:
		for _, item := range v {
			collectPending(item, out, depth+1)
		}
	}
}
