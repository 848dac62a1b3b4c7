// Package apphost runs integration tests against a web application hosted in the test
// process.
//
// Simulate finds an application directory, hosts it in a domain, and bootstraps it. Tests
// then send work into the domain with Run, or browsing scripts with Start:
//
//	func visitHome(session *browsing.Session) (string, error) {
//		result, err := session.Get("/home/index")
//		if err != nil {
//			return "", err
//		}
//		return result.ResponseText, nil
//	}
//
//	func init() { transport.MustRegister(visitHome) }
//
//	host, err := apphost.Simulate("sampleapp/site")
//	...
//	var body string
//	err = host.Start(transport.New(visitHome, nil), &body)
package apphost

import (
	"os"
	"path/filepath"

	"github.com/integrationkit/apphost/domain"
	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/framework/helpers"
	"github.com/integrationkit/apphost/transport"
)

// AppHost is a simulated application host.
type AppHost struct {
	domain *domain.Domain
}

type hostConfig struct {
	settings      map[string]string
	searchRoot    string
	virtualPath   string
	domainOptions []domain.Option
}

// Option is an option for Simulate.
type Option helpers.ConfigOption[hostConfig]

// WithSettings overrides application settings before the application starts. Only keys
// that the application already has are applied. A nil map is a *framework.ConfigOverrideError.
func WithSettings(settings map[string]string) Option {
	return helpers.OptionFunc[hostConfig](func(c *hostConfig) error {
		if settings == nil {
			return &framework.ConfigOverrideError{Reason: "settings must not be nil"}
		}
		c.settings = settings
		return nil
	})
}

// WithSearchRoot sets the directory that the project is searched for from. The default is
// the working directory.
func WithSearchRoot(dir string) Option {
	return helpers.OptionFunc[hostConfig](func(c *hostConfig) error {
		c.searchRoot = dir
		return nil
	})
}

// WithVirtualPath sets the path that the application is served under. The default is "/".
func WithVirtualPath(path string) Option {
	return helpers.OptionFunc[hostConfig](func(c *hostConfig) error {
		c.virtualPath = path
		return nil
	})
}

// WithLogger sets the logger for the host and the application.
func WithLogger(logger framework.Logger) Option {
	return WithDomainOptions(domain.WithLogger(logger))
}

// WithDomainOptions passes options through to domain.Create.
func WithDomainOptions(options ...domain.Option) Option {
	return helpers.OptionFunc[hostConfig](func(c *hostConfig) error {
		c.domainOptions = append(c.domainOptions, options...)
		return nil
	})
}

// Simulate hosts the application in projectDirectory and bootstraps it. A relative
// projectDirectory is looked for in the search root and each of its parents in turn.
func Simulate(projectDirectory string, options ...Option) (*AppHost, error) {
	var config hostConfig
	if err := helpers.ApplyOptions(&config, options...); err != nil {
		return nil, err
	}
	if projectDirectory == "" {
		return nil, &framework.ArgumentError{Name: "projectDirectory", Reason: "must not be empty"}
	}
	root := config.searchRoot
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = wd
	}
	dir, ok := FindProject(root, projectDirectory)
	if !ok {
		return nil, &framework.SetupError{Directory: projectDirectory,
			Reason: "project not found in " + root + " or any parent directory"}
	}

	d, err := domain.Create(dir, config.virtualPath, config.domainOptions...)
	if err != nil {
		return nil, err
	}
	if err := d.RunOnce(config.settings); err != nil {
		_ = d.Close()
		return nil, err
	}
	return &AppHost{domain: d}, nil
}

// FindProject returns the directory name found under start or its nearest parent that has
// it. An absolute name is returned as is if it is a directory.
func FindProject(start, name string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, isDir(name)
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, name)
		if isDir(candidate) {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Start runs a browsing script in the application's domain. The script is called with its
// captured state, if any, and a new *browsing.Session; see domain.Domain.Browse.
func (h *AppHost) Start(script *transport.Func, results ...interface{}) error {
	return h.domain.Browse(script, results...)
}

// Run runs work in the application's domain. The work is called with its captured state, if
// any, and a *domain.Env; see domain.Domain.Submit.
func (h *AppHost) Run(work *transport.Func, results ...interface{}) error {
	return h.domain.Submit(work, results...)
}

// Domain returns the domain that hosts the application.
func (h *AppHost) Domain() *domain.Domain { return h.domain }

// Close shuts down the application.
func (h *AppHost) Close() error { return h.domain.Close() }
