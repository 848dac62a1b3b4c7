// Package capture records what the pipeline exposes about a request while it is being
// processed, so that it can be inspected after the request completes.
package capture

import (
	"context"
	"sync"

	"github.com/integrationkit/apphost/pipeline"
)

// Box holds the observations for the request currently being driven. It is reset before
// every request.
type Box struct {
	Session        pipeline.Session
	Response       pipeline.Response
	ActionExecuted interface{}
	ResultExecuted interface{}

	lock sync.Mutex
}

// Reset clears all four observations.
func (b *Box) Reset() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.Session = nil
	b.Response = nil
	b.ActionExecuted = nil
	b.ResultExecuted = nil
}

// Snapshot returns a copy of the observations.
func (b *Box) Snapshot() Box {
	b.lock.Lock()
	defer b.lock.Unlock()
	return Box{
		Session:        b.Session,
		Response:       b.Response,
		ActionExecuted: b.ActionExecuted,
		ResultExecuted: b.ResultExecuted,
	}
}

type boxKey struct{}

// NewContext returns a context that carries box to the interceptor.
func NewContext(ctx context.Context, box *Box) context.Context {
	return context.WithValue(ctx, boxKey{}, box)
}

// FromContext returns the box carried by ctx, or nil.
func FromContext(ctx context.Context) *Box {
	if ctx == nil {
		return nil
	}
	box, _ := ctx.Value(boxKey{}).(*Box)
	return box
}

// Interceptor copies pipeline events into the Box carried by each request's context.
// Requests without a Box are ignored.
//
// Action and result contexts are overwritten by every event, so a request that runs child
// actions reports the last one. The session and response are recorded only by the first
// post-handler event of a request.
type Interceptor struct{}

// OnActionExecuted implements pipeline.ActionObserver.
func (Interceptor) OnActionExecuted(ctx context.Context, actionContext interface{}) {
	if box := FromContext(ctx); box != nil {
		box.lock.Lock()
		box.ActionExecuted = actionContext
		box.lock.Unlock()
	}
}

// OnResultExecuted implements pipeline.ActionObserver.
func (Interceptor) OnResultExecuted(ctx context.Context, resultContext interface{}) {
	if box := FromContext(ctx); box != nil {
		box.lock.Lock()
		box.ResultExecuted = resultContext
		box.lock.Unlock()
	}
}

// PostRequestHandlerExecute is the hook installed on handler instances.
func (Interceptor) PostRequestHandlerExecute(state pipeline.RequestState) {
	box := FromContext(state.Context())
	if box == nil {
		return
	}
	box.lock.Lock()
	defer box.lock.Unlock()
	if box.Session == nil {
		if s := state.Session(); s != nil {
			box.Session = s
		}
	}
	if box.Response == nil {
		box.Response = state.Response()
	}
}

// Install registers an Interceptor with the runtime as an observer, and with the instance
// as a post-handler hook. The hook takes effect once the runtime rebuilds the instance's
// handler chain.
func Install(rt pipeline.Runtime, inst pipeline.Instance) {
	var i Interceptor
	rt.AddObserver(i)
	inst.OnPostRequestHandlerExecute(i.PostRequestHandlerExecute)
}
