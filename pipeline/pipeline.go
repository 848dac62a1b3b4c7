// Package pipeline defines the contract between the test host and the request-processing
// runtime of a hosted application.
//
// The host never depends on how a runtime routes requests or runs controllers. It creates a
// runtime with a Factory, feeds it WorkerRequests, and observes it through an ActionObserver
// and a post-handler hook on the runtime's handler instances.
package pipeline

//go:generate mockgen -destination=../domain/mock_pipeline_test.go -package=domain . Runtime,Instance

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/integrationkit/apphost/framework"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// WorkerRequest is the runtime's view of one incoming request. Headers are split into known
// headers, addressed by index, and all others, addressed by name.
type WorkerRequest interface {
	// Path is the request path relative to the application root, without a leading slash.
	Path() string
	// QueryString is the raw query, without the "?".
	QueryString() string
	Method() string
	KnownHeader(h KnownHeader) (string, bool)
	UnknownHeader(name string) (string, bool)
	// UnknownHeaders returns name/value pairs for every header that is not a known one.
	UnknownHeaders() [][2]string
	EntityBody() []byte
	// Output receives the response body.
	Output() io.Writer
	// Context is the context that the runtime passes to observers and hooks.
	Context() context.Context
}

// Session is the per-user state that a runtime keeps between requests.
type Session interface {
	ID() string
	Get(key string) ldvalue.Value
	Set(key string, value ldvalue.Value)
	Keys() []string
}

// Response is the outcome of a request, apart from its body.
type Response interface {
	StatusCode() int
	Header() http.Header
	// Cookies returns the cookies set by the response, in the order they were set.
	Cookies() []*http.Cookie
}

// RequestState is what a post-handler hook sees of a request that has been handled.
type RequestState interface {
	Context() context.Context
	// Session is nil if the request had no session.
	Session() Session
	Response() Response
}

// ActionObserver is notified after an action method runs and after its result executes.
// The context values are runtime-specific.
type ActionObserver interface {
	OnActionExecuted(ctx context.Context, actionContext interface{})
	OnResultExecuted(ctx context.Context, resultContext interface{})
}

// Instance is a pooled request handler. Hooks added to it take effect for requests it
// handles only after Runtime.RebuildHandlerChain.
type Instance interface {
	OnPostRequestHandlerExecute(hook func(RequestState))
}

// Runtime is a hosted application.
type Runtime interface {
	Settings() *Settings
	AddObserver(o ActionObserver)
	// ProcessRequest handles one request synchronously. Failures inside the application are
	// returned as *PipelineError.
	ProcessRequest(wr WorkerRequest) error
	GetOrCreateInstance() (Instance, error)
	RecycleInstance(inst Instance)
	RebuildHandlerChain(inst Instance) error
}

// Factory creates the runtime for the application in dir, served under virtualPath.
// Failures are returned as *framework.SetupError.
type Factory func(dir, virtualPath string, logger framework.Logger) (Runtime, error)

// PipelineError means that the application failed while handling a request.
type PipelineError struct {
	StatusCode int
	Path       string
	Cause      error
}

func (e *PipelineError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("request for %q failed with status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("request for %q failed with status %d: %s", e.Path, e.StatusCode, e.Cause)
}

func (e *PipelineError) Unwrap() error { return e.Cause }
