// Package transport makes callbacks transportable into an isolated domain.
//
// Go closures cannot be inspected for the variables they capture, so a transportable closure
// (Func) is written explicitly as a registered top-level function plus a value holding its
// captured state. The state is passed to the function as its first argument.
//
//	type incrementState struct{ Times int }
//
//	func increment(s incrementState, session *browsing.Session) error { ... }
//
//	func init() { transport.MustRegister(increment) }
//
//	work := transport.New(increment, incrementState{Times: 3})
//
// A Registry encodes a Func into bytes and decodes it again into a live Func with the same
// captured state. If the state is plain data it is encoded as a whole; otherwise it is
// decomposed field by field, so that it may contain nested closures, registered functions,
// and structs that contain either.
//
// Within decomposed state, a pointer held by more than one field is rebuilt as one pointer, so
// the fields still share it after decoding. Sharing inside plain data encoded as a whole, such
// as two elements of a slice, is not kept. State that refers back to itself cannot be encoded.
package transport

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Registry maps function names to functions, and type names to types, on both sides of a
// domain boundary. Both sides must register the same names.
type Registry struct {
	methods map[string]reflect.Value
	byPC    map[uintptr]string
	types   map[string]reflect.Type
	names   map[reflect.Type]string

	transportable map[reflect.Type]bool
	lock          sync.RWMutex
}

// Default is the registry used by domains that are not given one explicitly.
var Default = NewRegistry() //nolint:gochecknoglobals

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{
		methods:       make(map[string]reflect.Value),
		byPC:          make(map[uintptr]string),
		types:         make(map[string]reflect.Type),
		names:         make(map[reflect.Type]string),
		transportable: make(map[reflect.Type]bool),
	}
	r.RegisterType((*Func)(nil))
	return r
}

// Register adds a top-level function to the Default registry under its symbol name.
func Register(fn interface{}) error { return Default.Register(fn) }

// MustRegister is like Register but panics on error. It is meant for init functions.
func MustRegister(fn interface{}) {
	if err := Default.Register(fn); err != nil {
		panic(err)
	}
}

// RegisterType adds the dynamic type of value to the Default registry.
func RegisterType(value interface{}) { Default.RegisterType(value) }

// Register adds a top-level function under its symbol name, such as
// "github.com/example/app_test.increment". Function literals and method values are
// rejected, because the name of their code does not identify the state they close over.
func (r *Registry) Register(fn interface{}) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("cannot register %T: not a function", fn)
	}
	name := functionName(v)
	if isAnonymous(name) {
		return fmt.Errorf("cannot register %s: function literals and method values have no stable name; "+
			"use a top-level function and pass its state to transport.New", name)
	}
	return r.add(name, v)
}

// RegisterName adds a function under an explicit name. Unlike Register it accepts function
// literals; anything such a literal captures is not transported, so it should capture nothing.
// Functions are recognized by their code, and every closure made from one literal shares it,
// so a literal can be registered under one name only.
func (r *Registry) RegisterName(name string, fn interface{}) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("cannot register %T as %q: not a function", fn, name)
	}
	if name == "" {
		return fmt.Errorf("cannot register %T: empty name", fn)
	}
	return r.add(name, v)
}

func (r *Registry) add(name string, v reflect.Value) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if existing, ok := r.methods[name]; ok {
		if existing.Pointer() == v.Pointer() {
			return nil
		}
		return fmt.Errorf("a different function is already registered as %q", name)
	}
	if other, ok := r.byPC[v.Pointer()]; ok {
		return fmt.Errorf("cannot register %q: its code is already registered as %q", name, other)
	}
	r.methods[name] = v
	r.byPC[v.Pointer()] = name
	return nil
}

// RegisterType records the dynamic type of value, so that interface-typed captured fields
// holding that type can be rebuilt. Pointer and non-pointer forms are registered separately.
func (r *Registry) RegisterType(value interface{}) {
	t := reflect.TypeOf(value)
	if t == nil {
		return
	}
	name := typeName(t)
	r.lock.Lock()
	r.types[name] = t
	r.names[t] = name
	r.lock.Unlock()
}

func (r *Registry) method(name string) (reflect.Value, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.methods[name]
	return v, ok
}

func (r *Registry) nameOf(fn reflect.Value) (string, bool) {
	if fn.IsNil() {
		return "", false
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	name, ok := r.byPC[fn.Pointer()]
	return name, ok
}

func (r *Registry) typeByName(name string) (reflect.Type, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) nameOfType(t reflect.Type) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	name, ok := r.names[t]
	return name, ok
}

func functionName(v reflect.Value) string {
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return ""
}

// isAnonymous recognizes the compiler's names for function literals ("outer.func1",
// "outer.func1.2") and method values ("T.Method-fm").
func isAnonymous(name string) bool {
	if name == "" || strings.HasSuffix(name, "-fm") {
		return true
	}
	lastSlash := strings.LastIndex(name, "/")
	parts := strings.Split(name[lastSlash+1:], ".")
	for _, p := range parts[1:] {
		if (strings.HasPrefix(p, "func") && isDigits(p[4:])) || isDigits(p) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func typeName(t reflect.Type) string {
	prefix := ""
	for t.Kind() == reflect.Ptr && t.Name() == "" {
		prefix += "*"
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return prefix + t.String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}
