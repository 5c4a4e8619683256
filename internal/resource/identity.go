package resource

import (
	"encoding/json"
	"sync"

	"restobject/internal/codec"
)

// Identity binds a value to its pool-assigned id. Once finalized it is
// inactive for good and holds no value.
type Identity struct {
	mu       sync.RWMutex
	id       string
	typ      string
	poolID   string
	value    any
	active   bool
	removing bool
}

func newIdentity(id, typ, poolID string, value any) *Identity {
	return &Identity{id: id, typ: typ, poolID: poolID, value: value, active: true}
}

func (i *Identity) ID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id
}

func (i *Identity) Type() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.typ
}

func (i *Identity) PoolID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.poolID
}

// Value returns the resource value, nil after finalization.
func (i *Identity) Value() any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.value
}

func (i *Identity) Active() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.active
}

// Record returns the wire record.
func (i *Identity) Record() Record {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Record{ID: i.id, Type: i.typ, PoolID: i.poolID}
}

// ResourceRecord implements Resource.
func (i *Identity) ResourceRecord() (Record, bool) {
	r := i.Record()
	return r, r.ID != ""
}

func (i *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Record().Envelope())
}

func (i *Identity) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(i.Record().Envelope())
}

// claimRemoval marks the identity as being removed; only the first caller wins.
func (i *Identity) claimRemoval() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.removing || !i.active {
		return false
	}
	i.removing = true
	return true
}

func (i *Identity) finalize() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.active = false
	i.id = ""
	i.typ = ""
	i.poolID = ""
	i.value = nil
}
