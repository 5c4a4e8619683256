package events

import (
	"slices"
	"sync"
)

// Event is a notification published by a Dispatcher.
type Event struct {
	Type string
	Data any
}

// Listener receives dispatched events.
type Listener func(Event)

type listenerEntry struct {
	id int
	fn Listener
}

// Dispatcher fans events out to listeners registered per event type. The zero
// value is ready to use. Listener lists are copied on write so a listener may
// subscribe or unsubscribe while an event is being dispatched.
type Dispatcher struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string][]listenerEntry
}

// AddListener subscribes fn to evtType and returns a function that removes it.
func (d *Dispatcher) AddListener(evtType string, fn Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listeners == nil {
		d.listeners = map[string][]listenerEntry{}
	}
	d.nextID++
	id := d.nextID
	next := slices.Clone(d.listeners[evtType])
	d.listeners[evtType] = append(next, listenerEntry{id: id, fn: fn})
	return func() { d.removeListener(evtType, id) }
}

func (d *Dispatcher) removeListener(evtType string, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	current := d.listeners[evtType]
	i := slices.IndexFunc(current, func(e listenerEntry) bool { return e.id == id })
	if i < 0 {
		return
	}
	next := slices.Clone(current)
	d.listeners[evtType] = slices.Delete(next, i, i+1)
}

// HasListener reports whether evtType has at least one subscriber.
func (d *Dispatcher) HasListener(evtType string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[evtType]) > 0
}

// RemoveAll drops every listener of evtType, or of every type when evtType is empty.
func (d *Dispatcher) RemoveAll(evtType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if evtType == "" {
		d.listeners = nil
		return
	}
	delete(d.listeners, evtType)
}

// Dispatch delivers an event synchronously to the current subscribers of
// evtType, in subscription order.
func (d *Dispatcher) Dispatch(evtType string, data any) {
	d.mu.Lock()
	current := d.listeners[evtType]
	d.mu.Unlock()
	evt := Event{Type: evtType, Data: data}
	for _, l := range current {
		l.fn(evt)
	}
}
