// Package domain hosts one live application and runs code against it.
//
// A Domain owns the application's pipeline runtime, the capture box that records what each
// request did, and the one-time bootstrap that installs the capture interceptor. Work sent to
// a domain is a transport.Func: it is encoded on the caller's side and decoded inside the
// domain, so that it can only reach the caller through its return values.
//
// A domain runs one call at a time. Callers that need concurrency create separate domains.
package domain

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/integrationkit/apphost/capture"
	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/framework/helpers"
	"github.com/integrationkit/apphost/pipeline"
	"github.com/integrationkit/apphost/simulate"
	"github.com/integrationkit/apphost/transport"
	"github.com/integrationkit/apphost/webapp"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// State is the initialization state of a Domain.
type State int

const (
	// Uninitialized means that RunOnce has not completed.
	Uninitialized State = iota
	// Initialized means that the domain is ready to accept work.
	Initialized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Domain is a hosted application.
type Domain struct {
	baseDir     string
	virtualPath string
	overrides   map[string]string
	state       State
	attempted   bool
	closed      bool

	runtime  pipeline.Runtime
	box      *capture.Box
	driver   *simulate.Driver
	registry *transport.Registry
	logger   framework.Logger
	metrics  *metrics

	callLock sync.Mutex
	lock     sync.Mutex
}

type domainConfig struct {
	logger         framework.Logger
	factory        pipeline.Factory
	registry       *transport.Registry
	assets         []assetSource
	tracerProvider trace.TracerProvider
	metrics        *prometheus.Registry
}

// Option is an option for Create.
type Option helpers.ConfigOption[domainConfig]

// WithLogger sets the logger for the domain and the application it hosts.
func WithLogger(logger framework.Logger) Option {
	return helpers.OptionFunc[domainConfig](func(c *domainConfig) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	})
}

// WithFactory sets the function that creates the application runtime. The default is
// webapp.Factory.
func WithFactory(factory pipeline.Factory) Option {
	return helpers.OptionFunc[domainConfig](func(c *domainConfig) error {
		if factory == nil {
			return &framework.ArgumentError{Name: "factory", Reason: "must not be nil"}
		}
		c.factory = factory
		return nil
	})
}

// WithRegistry sets the registry that work is encoded and decoded with. The default is
// transport.Default.
func WithRegistry(registry *transport.Registry) Option {
	return helpers.OptionFunc[domainConfig](func(c *domainConfig) error {
		if registry != nil {
			c.registry = registry
		}
		return nil
	})
}

// WithTracerProvider makes every request driven in the domain record a span.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return helpers.OptionFunc[domainConfig](func(c *domainConfig) error {
		c.tracerProvider = tp
		return nil
	})
}

// WithMetricsRegistry registers the domain's metrics with reg instead of a registry of its own.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return helpers.OptionFunc[domainConfig](func(c *domainConfig) error {
		c.metrics = reg
		return nil
	})
}

// Create hosts the application in appDir under virtualPath, which must start with "/" or be
// empty. It synchronizes any assets given with WithAssets and creates the application's
// runtime, but does not start the application; call RunOnce before submitting work.
//
// If there is no application in appDir, Create returns a *framework.SetupError.
func Create(appDir, virtualPath string, options ...Option) (*Domain, error) {
	config := domainConfig{
		logger:   framework.NullLogger(),
		factory:  webapp.Factory,
		registry: transport.Default,
	}
	if err := helpers.ApplyOptions(&config, options...); err != nil {
		return nil, err
	}
	if virtualPath == "" {
		virtualPath = "/"
	}
	if !strings.HasPrefix(virtualPath, "/") {
		return nil, &framework.SetupError{Directory: appDir,
			Reason: fmt.Sprintf("virtual path %q must start with \"/\"", virtualPath)}
	}
	logger := framework.LoggerWithPrefix(config.logger, "[domain] ")

	if len(config.assets) > 0 {
		if info, err := os.Stat(appDir); err != nil || !info.IsDir() {
			return nil, &framework.SetupError{Directory: appDir, Reason: "application directory does not exist"}
		}
	}
	for _, a := range config.assets {
		if err := a.sync(appDir, logger); err != nil {
			return nil, &framework.SetupError{Directory: appDir, Reason: err.Error()}
		}
	}

	rt, err := config.factory(appDir, virtualPath, config.logger)
	if err != nil {
		return nil, err
	}
	driver, err := simulate.NewDriver(rt, simulate.WithTracerProvider(config.tracerProvider),
		simulate.WithLogger(config.logger))
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(config.metrics)
	if err != nil {
		return nil, err
	}
	logger.Printf("Created domain for %s at %s", appDir, virtualPath)
	return &Domain{
		baseDir:     appDir,
		virtualPath: virtualPath,
		overrides:   map[string]string{},
		runtime:     rt,
		box:         &capture.Box{},
		driver:      driver,
		registry:    config.registry,
		logger:      logger,
		metrics:     m,
	}, nil
}

// BaseDirectory returns the application directory.
func (d *Domain) BaseDirectory() string { return d.baseDir }

// VirtualPath returns the path that the application is served under.
func (d *Domain) VirtualPath() string { return d.virtualPath }

// Overrides returns the configuration overrides that RunOnce applied.
func (d *Domain) Overrides() map[string]string {
	d.lock.Lock()
	defer d.lock.Unlock()
	ret := make(map[string]string, len(d.overrides))
	for k, v := range d.overrides {
		ret[k] = v
	}
	return ret
}

// State returns the initialization state.
func (d *Domain) State() State {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.state
}

// Metrics returns the registry that holds the domain's metrics.
func (d *Domain) Metrics() *prometheus.Registry { return d.metrics.registry }

// Runtime returns the application runtime.
func (d *Domain) Runtime() pipeline.Runtime { return d.runtime }

// Close shuts down the application. Work submitted afterwards fails with ErrClosed.
func (d *Domain) Close() error {
	d.callLock.Lock()
	defer d.callLock.Unlock()
	d.lock.Lock()
	if d.closed {
		d.lock.Unlock()
		return nil
	}
	d.closed = true
	d.lock.Unlock()

	d.logger.Printf("Closing")
	if c, ok := d.runtime.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
