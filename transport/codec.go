package transport

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/integrationkit/apphost/framework"
)

// Encode serializes a Func with the Default registry.
func Encode(f *Func) ([]byte, error) { return Default.Encode(f) }

// Decode rebuilds a Func with the Default registry.
func Decode(data []byte) (*Func, error) { return Default.Decode(data) }

// Encode serializes f. Its function, and every function or closure reachable from its state,
// must be registered. If any part of the state cannot be transported the whole call fails
// with a *framework.TransportError naming the field.
func (r *Registry) Encode(f *Func) ([]byte, error) {
	if f == nil {
		return nil, &framework.ArgumentError{Name: "f", Reason: "cannot encode a nil function"}
	}
	e := &encoder{
		r:      r,
		ids:    make(map[pointerKey]int),
		active: make(map[pointerKey]bool),
		funcs:  make(map[*Func]bool),
	}
	env, err := e.encodeFunc("", f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode rebuilds a Func from the output of Encode.
func (r *Registry) Decode(data []byte) (*Func, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &framework.TransportError{Reason: "malformed envelope: " + err.Error()}
	}
	d := &decoder{r: r, refs: make(map[int]reflect.Value)}
	return d.decodeFunc(&env)
}

type pointerKey struct {
	addr uintptr
	typ  reflect.Type
}

// encoder holds the state of one Encode call. Pointers in decomposed state are numbered in the
// order they are first met; a later field holding the same pointer refers back to that number.
type encoder struct {
	r      *Registry
	ids    map[pointerKey]int
	active map[pointerKey]bool
	funcs  map[*Func]bool
}

// visit numbers the pointer v. It returns the number of an earlier visit with seen set, and
// fails if v is still being encoded higher up the same path.
func (e *encoder) visit(path string, v reflect.Value) (key pointerKey, id int, seen bool, err error) {
	key = pointerKey{addr: v.Pointer(), typ: v.Type()}
	if e.active[key] {
		return key, 0, false, &framework.TransportError{Field: path, Reason: "cyclic reference"}
	}
	if n, ok := e.ids[key]; ok {
		return key, n, true, nil
	}
	id = len(e.ids) + 1
	e.ids[key] = id
	return key, id, false, nil
}

func (e *encoder) encodeFunc(path string, f *Func) (*envelope, error) {
	if e.funcs[f] {
		return nil, &framework.TransportError{Field: path, Reason: "cyclic reference"}
	}
	e.funcs[f] = true
	defer delete(e.funcs, f)

	method, ok := e.r.nameOf(f.fn)
	if !ok {
		return nil, &framework.TransportError{Field: functionName(f.fn), Reason: "function is not registered"}
	}
	env := &envelope{Method: method, Bound: f.bound}
	if !f.bound {
		env.Kind = kindDirect
		return env, nil
	}

	state := f.target
	if f.fn.Type().In(0).Kind() == reflect.Interface {
		name, ok := e.r.nameOfType(state.Type())
		if !ok {
			return nil, &framework.TransportError{Field: method,
				Reason: fmt.Sprintf("dynamic type %s of captured state is not registered", state.Type())}
		}
		env.Type = name
	}

	switch {
	case e.r.isTransportable(state.Type()), state.Kind() == reflect.Ptr && state.IsNil():
		data, err := json.Marshal(state.Interface())
		if err != nil {
			return nil, &framework.TransportError{Field: method, Reason: err.Error()}
		}
		env.Kind = kindDirect
		env.Value = data
	case state.Kind() == reflect.Struct:
		fields, err := e.encodeFields(method, state)
		if err != nil {
			return nil, err
		}
		env.Kind = kindDecomposed
		env.Fields = fields
	case state.Kind() == reflect.Ptr && state.Elem().Kind() == reflect.Struct:
		key, id, seen, err := e.visit(method, state)
		if err != nil {
			return nil, err
		}
		if seen {
			env.Kind = kindDecomposed
			env.Ref = id
			return env, nil
		}
		e.active[key] = true
		fields, err := e.encodeFields(method, state.Elem())
		delete(e.active, key)
		if err != nil {
			return nil, err
		}
		env.Kind = kindDecomposed
		env.Pointer = true
		env.ID = id
		env.Fields = fields
	default:
		return nil, &framework.TransportError{Field: method,
			Reason: fmt.Sprintf("captured state of type %s cannot be transported", state.Type())}
	}
	return env, nil
}

func (e *encoder) encodeFields(path string, v reflect.Value) ([]field, error) {
	t := v.Type()
	fields := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fieldPath := path + "." + sf.Name
		if !sf.IsExported() {
			return nil, &framework.TransportError{Field: fieldPath, Reason: "unexported field"}
		}
		fd, err := e.encodeField(fieldPath, sf.Type, v.Field(i))
		if err != nil {
			return nil, err
		}
		fd.Name = sf.Name
		fields = append(fields, fd)
	}
	return fields, nil
}

func (e *encoder) encodeField(path string, t reflect.Type, v reflect.Value) (field, error) {
	switch {
	case t == funcPtrType:
		if v.IsNil() {
			return field{Kind: fieldNil}, nil
		}
		env, err := e.encodeFunc(path, v.Interface().(*Func))
		if err != nil {
			return field{}, err
		}
		return field{Kind: fieldClosure, Closure: env}, nil

	case e.r.isTransportable(t):
		var id int
		if t.Kind() == reflect.Ptr && !v.IsNil() {
			_, n, seen, err := e.visit(path, v)
			if err != nil {
				return field{}, err
			}
			if seen {
				return field{Kind: fieldRef, Ref: n}, nil
			}
			id = n
		}
		data, err := json.Marshal(v.Interface())
		if err != nil {
			return field{}, &framework.TransportError{Field: path, Reason: err.Error()}
		}
		return field{Kind: fieldValue, ID: id, Value: data}, nil

	case t.Kind() == reflect.Func:
		if v.IsNil() {
			return field{Kind: fieldNil}, nil
		}
		name, ok := e.r.nameOf(v)
		if !ok {
			return field{}, &framework.TransportError{Field: path, Reason: "function is not registered"}
		}
		return field{Kind: fieldFunction, Method: name}, nil

	case t.Kind() == reflect.Interface:
		if v.IsNil() {
			return field{Kind: fieldNil}, nil
		}
		dynamic := v.Elem()
		name, ok := e.r.nameOfType(dynamic.Type())
		if !ok {
			return field{}, &framework.TransportError{Field: path,
				Reason: fmt.Sprintf("dynamic type %s is not registered", dynamic.Type())}
		}
		fd, err := e.encodeField(path, dynamic.Type(), dynamic)
		if err != nil {
			return field{}, err
		}
		fd.Type = name
		return fd, nil

	case t.Kind() == reflect.Struct:
		fields, err := e.encodeFields(path, v)
		if err != nil {
			return field{}, err
		}
		return field{Kind: fieldWrapper, Wrapper: &wrapper{Fields: fields}}, nil

	case t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct:
		if v.IsNil() {
			return field{Kind: fieldNil}, nil
		}
		key, id, seen, err := e.visit(path, v)
		if err != nil {
			return field{}, err
		}
		if seen {
			return field{Kind: fieldRef, Ref: id}, nil
		}
		e.active[key] = true
		fields, err := e.encodeFields(path, v.Elem())
		delete(e.active, key)
		if err != nil {
			return field{}, err
		}
		return field{Kind: fieldWrapper, ID: id, Wrapper: &wrapper{Pointer: true, Fields: fields}}, nil
	}
	return field{}, &framework.TransportError{Field: path, Reason: fmt.Sprintf("values of type %s cannot be transported", t)}
}

// decoder holds the pointers rebuilt so far in one Decode call, by their encoded number.
type decoder struct {
	r    *Registry
	refs map[int]reflect.Value
}

func (d *decoder) ref(path string, id int) (reflect.Value, error) {
	v, ok := d.refs[id]
	if !ok {
		return reflect.Value{}, &framework.TransportError{Field: path, Reason: fmt.Sprintf("unknown reference %d", id)}
	}
	return v, nil
}

func (d *decoder) decodeFunc(env *envelope) (*Func, error) {
	fn, ok := d.r.method(env.Method)
	if !ok {
		return nil, &framework.TransportError{Field: env.Method, Reason: "no function is registered under this name"}
	}
	f := &Func{fn: fn}
	if !env.Bound {
		return f, nil
	}
	if fn.Type().NumIn() == 0 {
		return nil, &framework.TransportError{Field: env.Method, Reason: "function takes no captured state"}
	}
	paramType := fn.Type().In(0)
	stateType, err := d.r.resolveType(env.Method, paramType, env.Type)
	if err != nil {
		return nil, err
	}

	var state reflect.Value
	switch {
	case env.Kind == kindDirect:
		p := reflect.New(stateType)
		if err := json.Unmarshal(env.Value, p.Interface()); err != nil {
			return nil, &framework.TransportError{Field: env.Method, Reason: err.Error()}
		}
		state = p.Elem()
	case env.Kind == kindDecomposed && env.Ref != 0:
		if state, err = d.ref(env.Method, env.Ref); err != nil {
			return nil, err
		}
		if !state.Type().AssignableTo(stateType) {
			return nil, &framework.TransportError{Field: env.Method,
				Reason: fmt.Sprintf("referenced %s is not assignable to %s", state.Type(), stateType)}
		}
	case env.Kind == kindDecomposed:
		if state, err = d.decodeStruct(env.Method, stateType, env.Pointer, env.ID, env.Fields); err != nil {
			return nil, err
		}
	default:
		return nil, &framework.TransportError{Field: env.Method, Reason: fmt.Sprintf("unknown envelope kind %q", env.Kind)}
	}
	f.target = state
	f.bound = true
	return f, nil
}

func (d *decoder) decodeStruct(path string, t reflect.Type, pointer bool, id int, fields []field) (reflect.Value, error) {
	structType := t
	if pointer {
		if t.Kind() != reflect.Ptr {
			return reflect.Value{}, &framework.TransportError{Field: path, Reason: fmt.Sprintf("%s is not a pointer", t)}
		}
		structType = t.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return reflect.Value{}, &framework.TransportError{Field: path, Reason: fmt.Sprintf("%s is not a struct", structType)}
	}
	p := reflect.New(structType)
	if pointer && id != 0 {
		d.refs[id] = p
	}
	for _, fd := range fields {
		fieldPath := path + "." + fd.Name
		sf, ok := structType.FieldByName(fd.Name)
		if !ok || !sf.IsExported() {
			return reflect.Value{}, &framework.TransportError{Field: fieldPath, Reason: "no such field"}
		}
		value, err := d.decodeField(fieldPath, sf.Type, fd)
		if err != nil {
			return reflect.Value{}, err
		}
		p.Elem().FieldByIndex(sf.Index).Set(value)
	}
	if pointer {
		return p, nil
	}
	return p.Elem(), nil
}

func (d *decoder) decodeField(path string, t reflect.Type, fd field) (reflect.Value, error) {
	actual, err := d.r.resolveType(path, t, fd.Type)
	if err != nil {
		return reflect.Value{}, err
	}
	var v reflect.Value
	switch fd.Kind {
	case fieldNil:
		return reflect.Zero(t), nil
	case fieldRef:
		if v, err = d.ref(path, fd.Ref); err != nil {
			return reflect.Value{}, err
		}
	case fieldValue:
		p := reflect.New(actual)
		if err := json.Unmarshal(fd.Value, p.Interface()); err != nil {
			return reflect.Value{}, &framework.TransportError{Field: path, Reason: err.Error()}
		}
		v = p.Elem()
		if fd.ID != 0 {
			d.refs[fd.ID] = v
		}
	case fieldFunction:
		m, ok := d.r.method(fd.Method)
		if !ok {
			return reflect.Value{}, &framework.TransportError{Field: path,
				Reason: fmt.Sprintf("no function is registered as %q", fd.Method)}
		}
		if !m.Type().ConvertibleTo(actual) {
			return reflect.Value{}, &framework.TransportError{Field: path,
				Reason: fmt.Sprintf("function %s has type %s, not %s", fd.Method, m.Type(), actual)}
		}
		v = m.Convert(actual)
	case fieldClosure:
		if fd.Closure == nil {
			return reflect.Value{}, &framework.TransportError{Field: path, Reason: "closure field has no envelope"}
		}
		inner, err := d.decodeFunc(fd.Closure)
		if err != nil {
			return reflect.Value{}, err
		}
		v = reflect.ValueOf(inner)
	case fieldWrapper:
		if fd.Wrapper == nil {
			return reflect.Value{}, &framework.TransportError{Field: path, Reason: "wrapper field has no fields"}
		}
		if v, err = d.decodeStruct(path, actual, fd.Wrapper.Pointer, fd.ID, fd.Wrapper.Fields); err != nil {
			return reflect.Value{}, err
		}
	default:
		return reflect.Value{}, &framework.TransportError{Field: path, Reason: fmt.Sprintf("unknown field kind %q", fd.Kind)}
	}
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, &framework.TransportError{Field: path,
			Reason: fmt.Sprintf("decoded %s is not assignable to %s", v.Type(), t)}
	}
	return v, nil
}

// resolveType returns the registered type named by name, or declared if name is empty.
func (r *Registry) resolveType(path string, declared reflect.Type, name string) (reflect.Type, error) {
	if name == "" {
		return declared, nil
	}
	t, ok := r.typeByName(name)
	if !ok {
		return nil, &framework.TransportError{Field: path, Reason: fmt.Sprintf("type %s is not registered", name)}
	}
	if !t.AssignableTo(declared) {
		return nil, &framework.TransportError{Field: path, Reason: fmt.Sprintf("%s is not assignable to %s", t, declared)}
	}
	return t, nil
}
