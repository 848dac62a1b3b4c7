package webapp

import (
	"sync"

	"github.com/integrationkit/apphost/pipeline"
)

// ActionExecutingContext is passed to ActionFilter.OnActionExecuting. Setting Result skips
// the action and the remaining OnActionExecuting calls.
type ActionExecutingContext struct {
	*ControllerContext
	Result Result
}

// ActionExecutedContext is passed to ActionFilter.OnActionExecuted. Err is the error
// returned by the action, if any; a filter that handles it sets ErrHandled.
type ActionExecutedContext struct {
	*ControllerContext
	Result     Result
	Err        error
	ErrHandled bool
	// Canceled is true if a filter short-circuited the action.
	Canceled bool
}

// ResultExecutingContext is passed to ResultFilter.OnResultExecuting. Setting Cancel skips
// execution of the result.
type ResultExecutingContext struct {
	*ControllerContext
	Result Result
	Cancel bool
}

// ResultExecutedContext is passed to ResultFilter.OnResultExecuted.
type ResultExecutedContext struct {
	*ControllerContext
	Result   Result
	Err      error
	Canceled bool
}

// ActionFilter runs around an action. OnActionExecuting is called in filter order and
// OnActionExecuted in reverse order.
type ActionFilter interface {
	OnActionExecuting(ctx *ActionExecutingContext)
	OnActionExecuted(ctx *ActionExecutedContext)
}

// ResultFilter runs around the execution of a result.
type ResultFilter interface {
	OnResultExecuting(ctx *ResultExecutingContext)
	OnResultExecuted(ctx *ResultExecutedContext)
}

// FilterProvider supplies filters for each request. Each returned filter must implement
// ActionFilter, ResultFilter, or both.
type FilterProvider interface {
	GetFilters(ctx *ControllerContext) []interface{}
}

// FilterProviderFunc adapts a function to FilterProvider.
type FilterProviderFunc func(ctx *ControllerContext) []interface{}

func (f FilterProviderFunc) GetFilters(ctx *ControllerContext) []interface{} { return f(ctx) }

// InjectionFilterProvider runs a function before every action, giving it the chance to
// change the controller or the request. Once the function returns false the provider
// disables itself and supplies no further filters.
type InjectionFilterProvider struct {
	fn       func(ctx *ActionExecutingContext) bool
	disabled bool
	lock     sync.Mutex
}

func NewInjectionFilterProvider(fn func(ctx *ActionExecutingContext) bool) *InjectionFilterProvider {
	return &InjectionFilterProvider{fn: fn}
}

// Disabled reports whether the function has returned false.
func (p *InjectionFilterProvider) Disabled() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.disabled
}

func (p *InjectionFilterProvider) GetFilters(*ControllerContext) []interface{} {
	if p.Disabled() {
		return nil
	}
	return []interface{}{injectionFilter{p}}
}

type injectionFilter struct {
	provider *InjectionFilterProvider
}

func (f injectionFilter) OnActionExecuting(ctx *ActionExecutingContext) {
	p := f.provider
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.disabled {
		return
	}
	if !p.fn(ctx) {
		p.disabled = true
	}
}

func (injectionFilter) OnActionExecuted(*ActionExecutedContext) {}

// observerFilter reports executed actions and results to a pipeline.ActionObserver.
type observerFilter struct {
	observer pipeline.ActionObserver
}

func (f observerFilter) OnActionExecuting(*ActionExecutingContext) {}

func (f observerFilter) OnActionExecuted(ctx *ActionExecutedContext) {
	f.observer.OnActionExecuted(ctx.Request.Context(), ctx)
}

func (f observerFilter) OnResultExecuting(*ResultExecutingContext) {}

func (f observerFilter) OnResultExecuted(ctx *ResultExecutedContext) {
	f.observer.OnResultExecuted(ctx.Request.Context(), ctx)
}
