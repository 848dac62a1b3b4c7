package transport

import (
	"encoding/json"
	"reflect"
)

// Envelope kinds.
const (
	kindDirect     = "direct"
	kindDecomposed = "decomposed"
)

// Field kinds.
const (
	fieldValue    = "value"
	fieldFunction = "function"
	fieldClosure  = "closure"
	fieldWrapper  = "wrapper"
	fieldRef      = "ref"
	fieldNil      = "nil"
)

// envelope is the wire form of a Func. A direct envelope carries the whole captured state as
// JSON in Value; a decomposed one carries it field by field. ID numbers a pointer state so that
// fields can refer back to it; Ref is set instead of Fields when the state is such a pointer.
type envelope struct {
	Kind    string          `json:"kind"`
	Method  string          `json:"method"`
	Bound   bool            `json:"bound,omitempty"`
	Type    string          `json:"type,omitempty"`
	Pointer bool            `json:"pointer,omitempty"`
	ID      int             `json:"id,omitempty"`
	Ref     int             `json:"ref,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Fields  []field         `json:"fields,omitempty"`
}

type field struct {
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Type    string          `json:"type,omitempty"`
	ID      int             `json:"id,omitempty"`
	Ref     int             `json:"ref,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Method  string          `json:"method,omitempty"`
	Closure *envelope       `json:"closure,omitempty"`
	Wrapper *wrapper        `json:"wrapper,omitempty"`
}

type wrapper struct {
	Pointer bool    `json:"pointer,omitempty"`
	Fields  []field `json:"fields"`
}

//nolint:gochecknoglobals
var (
	funcPtrType     = reflect.TypeOf((*Func)(nil))
	marshalerType   = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
)

// isTransportable reports whether values of type t survive a JSON round trip unchanged: plain
// exported data, or types with their own JSON encoding.
func (r *Registry) isTransportable(t reflect.Type) bool {
	r.lock.RLock()
	result, ok := r.transportable[t]
	r.lock.RUnlock()
	if ok {
		return result
	}
	result = transportable(t, make(map[reflect.Type]bool))
	r.lock.Lock()
	r.transportable[t] = result
	r.lock.Unlock()
	return result
}

func transportable(t reflect.Type, visiting map[reflect.Type]bool) bool {
	if t.Implements(marshalerType) && reflect.PtrTo(t).Implements(unmarshalerType) {
		return true
	}
	if visiting[t] {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice, reflect.Array, reflect.Ptr:
		visiting[t] = true
		return transportable(t.Elem(), visiting)
	case reflect.Map:
		switch t.Key().Kind() {
		case reflect.String,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return false
		}
		visiting[t] = true
		return transportable(t.Elem(), visiting)
	case reflect.Struct:
		visiting[t] = true
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("json") == "-" {
				return false
			}
			if !transportable(f.Type, visiting) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
