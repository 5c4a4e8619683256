package resource

import (
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// kinds is the process-wide allow-list snapshot. Writers build a new set
// under kindsMu and swap it in; readers never lock.
var (
	kinds   atomic.Pointer[map[reflect.Kind]struct{}]
	kindsMu sync.Mutex
)

func init() {
	SetValidKinds(DefaultValidKinds()...)
}

// DefaultValidKinds lists the kinds accepted unless reconfigured. Funcs are
// left out: Go funcs have no identity to key on.
func DefaultValidKinds() []reflect.Kind {
	return []reflect.Kind{reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer}
}

// SetValidKinds replaces the allow-list of value kinds that pools accept.
func SetValidKinds(ks ...reflect.Kind) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	next := make(map[reflect.Kind]struct{}, len(ks))
	for _, k := range ks {
		next[k] = struct{}{}
	}
	kinds.Store(&next)
}

// AddValidKinds extends the allow-list.
func AddValidKinds(ks ...reflect.Kind) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	current := *kinds.Load()
	next := make(map[reflect.Kind]struct{}, len(current)+len(ks))
	for k := range current {
		next[k] = struct{}{}
	}
	for _, k := range ks {
		next[k] = struct{}{}
	}
	kinds.Store(&next)
}

// ValidKinds returns the current allow-list in kind order.
func ValidKinds() []reflect.Kind {
	current := *kinds.Load()
	out := make([]reflect.Kind, 0, len(current))
	for k := range current {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// IsValidTarget reports whether v may be given an identity.
func IsValidTarget(v any) bool {
	if v == nil || IsResource(v) {
		return false
	}
	if _, ok := (*kinds.Load())[reflect.TypeOf(v).Kind()]; !ok {
		return false
	}
	_, ok := keyOf(v)
	return ok
}

type mapKey struct {
	typ reflect.Type
	ptr uintptr
}

// keyOf returns a comparable key standing for v's identity.
func keyOf(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return mapKey{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Func, reflect.Slice, reflect.Invalid:
		return nil, false
	}
	if !rv.Comparable() {
		return nil, false
	}
	return v, true
}
