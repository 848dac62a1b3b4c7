// Package webapp is a small MVC runtime that implements the pipeline contract: routing to
// controllers, action and result filters, views, sessions, and antiforgery tokens.
//
// Applications register themselves with RegisterApplication and are found by the name in the
// "application" key of their app.yaml. Factory creates a pipeline.Runtime for an application
// directory; the application itself is configured lazily when the first handler instance is
// created, so that settings changed before then are visible to it.
package webapp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/pipeline"

	"github.com/gorilla/mux"
)

type runtime struct {
	app       *Application
	configure ConfigureFunc
	started   bool
	closed    bool
	router    *mux.Router
	sessions  SessionStore
	observers []pipeline.ActionObserver
	pool      []*instance
	nextID    int
	logger    framework.Logger
	lock      sync.Mutex
}

// Factory creates the runtime for the application in dir. It is a pipeline.Factory.
func Factory(dir, virtualPath string, logger framework.Logger) (pipeline.Runtime, error) {
	logger = framework.LoggerWithPrefix(logger, "[webapp] ")
	if virtualPath == "" {
		virtualPath = "/"
	}
	if !strings.HasPrefix(virtualPath, "/") {
		return nil, &framework.SetupError{Directory: dir,
			Reason: fmt.Sprintf("virtual path %q must start with \"/\"", virtualPath)}
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &framework.SetupError{Directory: dir, Reason: "application directory does not exist"}
	}
	config, configPath, err := LoadConfig(dir)
	if err != nil {
		return nil, &framework.SetupError{Directory: dir, Reason: err.Error()}
	}
	if config.Application == "" {
		return nil, &framework.SetupError{Directory: dir,
			Reason: fmt.Sprintf("%s does not name an application", filepath.Base(configPath))}
	}
	configure, ok := lookupApplication(config.Application)
	if !ok {
		return nil, &framework.SetupError{Directory: dir,
			Reason: fmt.Sprintf("application %q is not registered", config.Application)}
	}

	app := &Application{
		name:         config.Application,
		dir:          dir,
		virtualPath:  virtualPath,
		config:       config,
		settings:     pipeline.NewSettings(config.AppSettings.Keys, config.AppSettings.Values),
		logger:       logger,
		controllers:  make(map[string]func() Controller),
		authenticate: sessionAuthenticator,
		views:        newViewEngine(dir),
	}
	logger.Printf("Loaded application %q from %s", app.name, configPath)
	return &runtime{app: app, configure: configure, logger: logger}, nil
}

func (r *runtime) Settings() *pipeline.Settings { return r.app.settings }

func (r *runtime) AddObserver(o pipeline.ActionObserver) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.observers = append(r.observers, o)
}

func (r *runtime) currentObservers() []pipeline.ActionObserver {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]pipeline.ActionObserver(nil), r.observers...)
}

// start configures the application. It is called with the lock held.
func (r *runtime) start() error {
	if r.started {
		return nil
	}
	sessions, err := r.openSessionStore()
	if err != nil {
		return &framework.SetupError{Directory: r.app.dir, Reason: err.Error()}
	}
	if err := r.configure(r.app); err != nil {
		_ = sessions.Close()
		return &framework.SetupError{Directory: r.app.dir, Reason: "application configuration failed: " + err.Error()}
	}
	r.sessions = sessions
	r.router = r.buildRouter()
	r.started = true
	r.logger.Printf("Started application %q at %s (session store: %s)",
		r.app.name, r.app.virtualPath, r.app.config.Session.Store)
	return nil
}

func (r *runtime) openSessionStore() (SessionStore, error) {
	c := r.app.config.Session
	switch strings.ToLower(c.Store) {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		if c.Redis.Addr == "" {
			return nil, fmt.Errorf("session store \"redis\" requires session.redis.addr")
		}
		return newRedisStoreFromConfig(c.Redis), nil
	case "sqlite":
		path := c.SQLite.Path
		if path == "" {
			return nil, fmt.Errorf("session store \"sqlite\" requires session.sqlite.path")
		}
		if path != ":memory:" && !filepath.IsAbs(path) {
			path = filepath.Join(r.app.dir, path)
		}
		return OpenSQLStore(path)
	default:
		return nil, fmt.Errorf("unknown session store %q", c.Store)
	}
}

func (r *runtime) GetOrCreateInstance() (pipeline.Instance, error) {
	return r.acquire()
}

func (r *runtime) acquire() (*instance, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return nil, &framework.SetupError{Directory: r.app.dir, Reason: "runtime has been closed"}
	}
	if err := r.start(); err != nil {
		return nil, err
	}
	if n := len(r.pool); n > 0 {
		inst := r.pool[n-1]
		r.pool = r.pool[:n-1]
		return inst, nil
	}
	r.nextID++
	inst := &instance{id: r.nextID, rt: r}
	inst.build()
	return inst, nil
}

func (r *runtime) RecycleInstance(inst pipeline.Instance) {
	i, ok := inst.(*instance)
	if !ok || i.rt != r {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	i.current = nil
	r.pool = append(r.pool, i)
}

func (r *runtime) RebuildHandlerChain(inst pipeline.Instance) error {
	i, ok := inst.(*instance)
	if !ok || i.rt != r {
		return fmt.Errorf("%T was not created by this runtime", inst)
	}
	i.build()
	return nil
}

// ProcessRequest runs a request through a pooled handler instance.
func (r *runtime) ProcessRequest(wr pipeline.WorkerRequest) error {
	inst, err := r.acquire()
	if err != nil {
		return err
	}
	defer r.RecycleInstance(inst)

	req, err := r.newRequest(wr)
	if err != nil {
		return &pipeline.PipelineError{StatusCode: http.StatusBadRequest, Path: wr.Path(), Cause: err}
	}
	start := time.Now()
	err = inst.run(req, newResponse(wr.Output()))
	r.logger.Printf("%s /%s handled in %s", req.Method, wr.Path(), time.Since(start))
	return err
}

// newRequest converts a worker request into an *http.Request addressed relative to the
// virtual path.
func (r *runtime) newRequest(wr pipeline.WorkerRequest) (*http.Request, error) {
	target := strings.TrimSuffix(r.app.virtualPath, "/") + "/" + strings.TrimPrefix(wr.Path(), "/")
	if q := wr.QueryString(); q != "" {
		target += "?" + q
	}
	ctx := wr.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	body := wr.EntityBody()
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(wr.Method()), target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Host = "localhost"
	req.RemoteAddr = "127.0.0.1:0"
	req.RequestURI = target
	for _, h := range pipeline.KnownHeaders() {
		if v, ok := wr.KnownHeader(h); ok {
			req.Header.Set(h.String(), v)
		}
	}
	for _, kv := range wr.UnknownHeaders() {
		req.Header.Add(kv[0], kv[1])
	}
	req.ContentLength = int64(len(body))
	return req, nil
}

// Close releases the session store. The runtime cannot be used afterwards.
func (r *runtime) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.pool = nil
	if r.sessions == nil {
		return nil
	}
	return r.sessions.Close()
}
