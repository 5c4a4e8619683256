// Package resource assigns stable identities to values and moves them across
// the wire as identity records.
package resource

import "encoding/json"

// DataKey marks a wire value as a resource identity record.
const DataKey = "resource::data"

// Record is the wire-safe identity of a resource.
type Record struct {
	ID     string `json:"id" cbor:"id"`
	Type   string `json:"type" cbor:"type"`
	PoolID string `json:"poolId" cbor:"poolId"`
}

// Envelope is the only shape in which a resource crosses the boundary.
type Envelope struct {
	Data Record `json:"resource::data" cbor:"resource::data"`
}

// Envelope wraps r for the wire.
func (r Record) Envelope() Envelope {
	return Envelope{Data: r}
}

// Resource is implemented by live values that stand for a pooled resource,
// such as identities and references. ok is false while no identity is known.
type Resource interface {
	ResourceRecord() (r Record, ok bool)
}

// Convertible values are registered in a pool when they cross the boundary.
type Convertible interface {
	ResourceType() string
}

// RecordOf extracts the identity record from v. It understands live
// resources, envelopes and decoded JSON objects carrying DataKey.
func RecordOf(v any) (Record, bool) {
	switch t := v.(type) {
	case nil:
		return Record{}, false
	case Resource:
		return t.ResourceRecord()
	case Envelope:
		return t.Data, t.Data.ID != ""
	case *Envelope:
		if t == nil {
			return Record{}, false
		}
		return t.Data, t.Data.ID != ""
	case map[string]any:
		return recordFromMap(t)
	}
	return Record{}, false
}

// IsResource reports whether v is a resource in any recognised form.
func IsResource(v any) bool {
	_, ok := RecordOf(v)
	return ok
}

func recordFromMap(m map[string]any) (Record, bool) {
	if len(m) != 1 {
		return Record{}, false
	}
	raw, ok := m[DataKey]
	if !ok {
		return Record{}, false
	}
	switch data := raw.(type) {
	case Record:
		return data, data.ID != ""
	case map[string]any:
		id, _ := data["id"].(string)
		if id == "" {
			return Record{}, false
		}
		typ, _ := data["type"].(string)
		poolID, _ := data["poolId"].(string)
		return Record{ID: id, Type: typ, PoolID: poolID}, true
	}
	return Record{}, false
}

// ParseEnvelope decodes a JSON envelope.
func ParseEnvelope(data []byte) (Record, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, err
	}
	return env.Data, nil
}
