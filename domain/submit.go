package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/integrationkit/apphost/browsing"
	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/pipeline"
	"github.com/integrationkit/apphost/transport"
)

// Env is what work submitted to a domain is given to reach the application.
type Env struct {
	domain *Domain
	ctx    context.Context
}

// NewSession starts a browsing session against the application. Sessions created in the same
// call share the domain's capture box, so they must be used one request at a time.
func (e *Env) NewSession() *browsing.Session {
	return browsing.NewSession(e.ctx, e.domain.driver, e.domain.box)
}

// Runtime returns the application runtime.
func (e *Env) Runtime() pipeline.Runtime { return e.domain.runtime }

// Setting returns the current value of an application setting, or "" if there is none.
func (e *Env) Setting(key string) string {
	return e.domain.runtime.Settings().Get(key).OrElse("")
}

// Logger returns the domain's logger.
func (e *Env) Logger() framework.Logger { return e.domain.logger }

// Submit runs work inside the domain and waits for it to finish. The work function is called
// with its captured state, if any, followed by an *Env. Its results other than a trailing
// error are copied into results, which must be pointers, in order; extra results are
// discarded.
//
// An error returned by work is returned unchanged. If work panics, Submit returns a
// *PanicError; if it calls runtime.Goexit, Submit returns ErrWorkExited.
func (d *Domain) Submit(work *transport.Func, results ...interface{}) error {
	return d.call(work, func(ctx context.Context) interface{} { return &Env{domain: d, ctx: ctx} }, results)
}

// Browse runs script inside the domain with a new browsing session, and waits for it to
// finish. Results and errors are handled as for Submit.
func (d *Domain) Browse(script *transport.Func, results ...interface{}) error {
	return d.call(script, func(ctx context.Context) interface{} {
		return browsing.NewSession(ctx, d.driver, d.box)
	}, results)
}

type outcome struct {
	values []interface{}
	err    error
	label  string
}

func (d *Domain) call(work *transport.Func, arg func(context.Context) interface{}, results []interface{}) error {
	if work == nil {
		return &framework.ArgumentError{Name: "work", Reason: "must not be nil"}
	}
	for i, r := range results {
		if v := reflect.ValueOf(r); v.Kind() != reflect.Ptr || v.IsNil() {
			return &framework.ArgumentError{Name: fmt.Sprintf("results[%d]", i), Reason: "must be a non-nil pointer"}
		}
	}

	d.callLock.Lock()
	defer d.callLock.Unlock()

	d.lock.Lock()
	closed, state := d.closed, d.state
	d.lock.Unlock()
	switch {
	case closed:
		d.metrics.submitted(outcomeRejected)
		return ErrClosed
	case state != Initialized:
		d.metrics.submitted(outcomeRejected)
		return ErrNotInitialized
	}

	data, err := d.registry.Encode(work)
	if err != nil {
		d.metrics.submitted(outcomeRejected)
		return err
	}

	out := d.run(data, arg)
	d.metrics.submitted(out.label)
	if out.err != nil {
		return out.err
	}
	return copyResults(work.Name(), out.values, results)
}

// run decodes and invokes work on a goroutine of its own.
func (d *Domain) run(data []byte, arg func(context.Context) interface{}) outcome {
	ch := make(chan outcome, 1)
	go func() {
		returned := false
		defer func() {
			if returned {
				return
			}
			if r := recover(); r != nil {
				d.logger.Printf("Work panicked: %v", r)
				ch <- outcome{err: &PanicError{Value: r, Stack: debug.Stack()}, label: outcomePanic}
				return
			}
			d.logger.Printf("Work exited without returning")
			ch <- outcome{err: ErrWorkExited, label: outcomeExited}
		}()

		fn, err := d.registry.Decode(data)
		if err != nil {
			returned = true
			ch <- outcome{err: err, label: outcomeRejected}
			return
		}
		d.logger.Printf("Running %s", fn.Name())
		values, err := fn.Invoke(arg(context.Background()))
		returned = true
		label := outcomeOK
		if err != nil {
			label = outcomeError
		}
		ch <- outcome{values: values, err: err, label: label}
	}()
	return <-ch
}

// copyResults moves values back across the domain boundary by encoding them, so that the
// caller never shares memory with the work.
func copyResults(name string, values, results []interface{}) error {
	if len(results) > len(values) {
		return &framework.ArgumentError{Name: "results",
			Reason: fmt.Sprintf("%s returned %d value(s), but %d were expected", name, len(values), len(results))}
	}
	for i, target := range results {
		data, err := json.Marshal(values[i])
		if err == nil {
			err = json.Unmarshal(data, target)
		}
		if err != nil {
			return &framework.TransportError{Field: fmt.Sprintf("%s.result[%d]", name, i), Reason: err.Error()}
		}
	}
	return nil
}
