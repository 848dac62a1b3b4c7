package transport

import (
	"fmt"
	"reflect"

	"github.com/integrationkit/apphost/framework"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem() //nolint:gochecknoglobals

// Func is a transportable closure: a function plus the state it captured. When the Func is
// bound, the state is passed to the function as its first argument.
type Func struct {
	fn     reflect.Value
	target reflect.Value
	bound  bool
}

// New creates a Func. If state is nil, fn is called without a state argument. New panics if
// fn is not a non-variadic function, or if state is not assignable to fn's first parameter.
func New(fn interface{}, state interface{}) *Func {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic(fmt.Sprintf("transport.New: %T is not a function", fn))
	}
	if v.Type().IsVariadic() {
		panic(fmt.Sprintf("transport.New: variadic function %s is not supported", v.Type()))
	}
	f := &Func{fn: v}
	if state == nil {
		return f
	}
	s := reflect.ValueOf(state)
	if v.Type().NumIn() == 0 || !s.Type().AssignableTo(v.Type().In(0)) {
		panic(fmt.Sprintf("transport.New: state of type %T cannot be passed as first argument of %s",
			state, v.Type()))
	}
	f.target = s
	f.bound = true
	return f
}

// State returns the captured state, or nil if the Func is unbound.
func (f *Func) State() interface{} {
	if !f.bound {
		return nil
	}
	return f.target.Interface()
}

// Name returns the symbol name of the function.
func (f *Func) Name() string {
	return functionName(f.fn)
}

// Invoke calls the function with the captured state (if any) followed by args. If the last
// result is an error it is returned separately; the other results are returned in order.
func (f *Func) Invoke(args ...interface{}) ([]interface{}, error) {
	t := f.fn.Type()
	in := make([]reflect.Value, 0, len(args)+1)
	if f.bound {
		in = append(in, f.target)
	}
	total := len(in) + len(args)
	for _, a := range args {
		idx := len(in)
		if idx >= t.NumIn() {
			return nil, &framework.ArgumentError{Name: "args",
				Reason: fmt.Sprintf("%s takes %d arguments, got %d", f.Name(), t.NumIn(), total)}
		}
		pt := t.In(idx)
		if a == nil {
			switch pt.Kind() {
			case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
				in = append(in, reflect.Zero(pt))
				continue
			}
			return nil, &framework.ArgumentError{Name: "args",
				Reason: fmt.Sprintf("nil cannot be passed as %s", pt)}
		}
		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(pt) {
			return nil, &framework.ArgumentError{Name: "args",
				Reason: fmt.Sprintf("argument %d of %s must be %s, got %s", idx, f.Name(), pt, av.Type())}
		}
		in = append(in, av)
	}
	if len(in) != t.NumIn() {
		return nil, &framework.ArgumentError{Name: "args",
			Reason: fmt.Sprintf("%s takes %d arguments, got %d", f.Name(), t.NumIn(), len(in))}
	}

	out := f.fn.Call(in)
	var err error
	if n := len(out); n > 0 && t.Out(n-1) == errorType {
		if e := out[n-1].Interface(); e != nil {
			err = e.(error)
		}
		out = out[:n-1]
	}
	results := make([]interface{}, len(out))
	for i, o := range out {
		results[i] = o.Interface()
	}
	return results, err
}
