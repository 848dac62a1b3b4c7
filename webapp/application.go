package webapp

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/pipeline"
)

// ConfigureFunc sets up an application's controllers, handlers, and filters. It runs once,
// when the first handler instance is created, after configuration overrides are applied.
type ConfigureFunc func(app *Application) error

//nolint:gochecknoglobals
var (
	registeredApps     = make(map[string]ConfigureFunc)
	registeredAppsLock sync.RWMutex
)

// RegisterApplication makes an application available to Factory under name. The name is what
// the "application" key of app.yaml refers to. It is normally called from an init function.
func RegisterApplication(name string, configure ConfigureFunc) {
	registeredAppsLock.Lock()
	defer registeredAppsLock.Unlock()
	registeredApps[strings.ToLower(name)] = configure
}

func lookupApplication(name string) (ConfigureFunc, bool) {
	registeredAppsLock.RLock()
	defer registeredAppsLock.RUnlock()
	c, ok := registeredApps[strings.ToLower(name)]
	return c, ok
}

// Authenticator returns the user name for a request, or "" if the request is anonymous.
type Authenticator func(r *http.Request, session pipeline.Session) string

// SessionUserKey is the session key that the default Authenticator reads the user name from.
const SessionUserKey = "user"

func sessionAuthenticator(_ *http.Request, session pipeline.Session) string {
	if session == nil {
		return ""
	}
	return session.Get(SessionUserKey).StringValue()
}

type mount struct {
	path    string
	handler http.Handler
}

// Application is a hosted web application: its controllers, raw handlers, and filters.
type Application struct {
	name        string
	dir         string
	virtualPath string
	config      AppConfig
	settings    *pipeline.Settings
	logger      framework.Logger

	controllers     map[string]func() Controller
	mounts          []mount
	filters         []interface{}
	filterProviders []FilterProvider
	authenticate    Authenticator
	views           *viewEngine
	lock            sync.RWMutex
}

func (a *Application) Name() string                 { return a.name }
func (a *Application) Directory() string            { return a.dir }
func (a *Application) VirtualPath() string          { return a.virtualPath }
func (a *Application) Settings() *pipeline.Settings { return a.settings }
func (a *Application) Logger() framework.Logger     { return a.logger }

// AddController registers a controller under name. Requests for /<name>/<action> create a new
// controller with factory and run the matching action. Names are matched case-insensitively.
func (a *Application) AddController(name string, factory func() Controller) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.controllers[strings.ToLower(name)] = factory
}

// Handle mounts a raw handler at path, relative to the virtual path. Raw handlers take
// precedence over controller routes and do not run filters.
func (a *Application) Handle(path string, handler http.Handler) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.mounts = append(a.mounts, mount{path: "/" + strings.TrimPrefix(path, "/"), handler: handler})
}

// AddFilter adds a filter that applies to every action. It must implement ActionFilter,
// ResultFilter, or both.
func (a *Application) AddFilter(filter interface{}) error {
	switch filter.(type) {
	case ActionFilter, ResultFilter:
	default:
		return fmt.Errorf("%T is neither an ActionFilter nor a ResultFilter", filter)
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	a.filters = append(a.filters, filter)
	return nil
}

// AddFilterProvider adds a provider that is asked for filters on every request. Providers
// may be added while the application is serving requests.
func (a *Application) AddFilterProvider(p FilterProvider) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.filterProviders = append(a.filterProviders, p)
}

// SetAuthenticator replaces the default authenticator, which takes the user name from the
// session value SessionUserKey.
func (a *Application) SetAuthenticator(auth Authenticator) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.authenticate = auth
}

func (a *Application) controllerFactory(name string) (func() Controller, bool) {
	a.lock.RLock()
	defer a.lock.RUnlock()
	f, ok := a.controllers[strings.ToLower(name)]
	return f, ok
}

func (a *Application) filtersFor(ctx *ControllerContext, observers []pipeline.ActionObserver) []interface{} {
	a.lock.RLock()
	providers := append([]FilterProvider(nil), a.filterProviders...)
	ret := make([]interface{}, 0, len(observers)+len(a.filters)+len(providers))
	for _, o := range observers {
		ret = append(ret, observerFilter{o})
	}
	ret = append(ret, a.filters...)
	a.lock.RUnlock()
	for _, p := range providers {
		ret = append(ret, p.GetFilters(ctx)...)
	}
	return ret
}

func (a *Application) user(r *http.Request, session pipeline.Session) string {
	a.lock.RLock()
	auth := a.authenticate
	a.lock.RUnlock()
	return auth(r, session)
}

// ApplicationOf returns the Application behind a runtime created by Factory. The runtime
// must have created at least one handler instance.
func ApplicationOf(rt pipeline.Runtime) (*Application, error) {
	r, ok := rt.(*runtime)
	if !ok {
		return nil, fmt.Errorf("%T is not a webapp runtime", rt)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.started {
		return nil, fmt.Errorf("application %q has not started", r.app.name)
	}
	return r.app, nil
}
