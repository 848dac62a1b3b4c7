package webapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// The configuration files looked for in an application directory, in order.
var configFileNames = []string{"app.yaml", "app.yml", "app.json"} //nolint:gochecknoglobals

const (
	defaultSessionCookieName = "apphost_session"
	defaultSessionTimeout    = 20 * time.Minute
)

// AppConfig is the content of an application's app.yaml or app.json.
type AppConfig struct {
	// Application is the name the application was registered under with RegisterApplication.
	Application string          `json:"application" yaml:"application"`
	AppSettings OrderedSettings `json:"appSettings" yaml:"appSettings"`
	Session     SessionConfig   `json:"session" yaml:"session"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	// Store is "memory" (the default), "redis", or "sqlite".
	Store      string       `json:"store" yaml:"store"`
	CookieName string       `json:"cookieName" yaml:"cookieName"`
	Timeout    Duration     `json:"timeout" yaml:"timeout"`
	Redis      RedisConfig  `json:"redis" yaml:"redis"`
	SQLite     SQLiteConfig `json:"sqlite" yaml:"sqlite"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

type SQLiteConfig struct {
	// Path is relative to the application directory unless absolute. ":memory:" is allowed.
	Path string `json:"path" yaml:"path"`
}

// Duration is a time.Duration written as a Go duration string ("20m") in configuration.
type Duration time.Duration

func (d *Duration) set(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.set(node.Value)
}

// OrderedSettings is a string-to-string mapping that remembers the order of its keys.
type OrderedSettings struct {
	Keys   []string
	Values map[string]string
}

func (o *OrderedSettings) add(key, value string) {
	if o.Values == nil {
		o.Values = make(map[string]string)
	}
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

func (o *OrderedSettings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("appSettings must be a mapping, at line %d", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("appSettings value for %q must be a scalar, at line %d", k.Value, v.Line)
		}
		o.add(k.Value, v.Value)
	}
	return nil
}

func (o *OrderedSettings) UnmarshalJSON(data []byte) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return o.UnmarshalYAML(node.Content[0])
	}
	return o.UnmarshalYAML(&node)
}

// ParseJSONOrYAML is used in the same way as json.Unmarshal, but if the data is YAML and not
// JSON, it is parsed as YAML into the same target.
func ParseJSONOrYAML(data []byte, target interface{}) error {
	if err := json.Unmarshal(data, target); err == nil {
		return nil
	}
	return yaml.Unmarshal(data, target)
}

// LoadConfig reads the configuration file of the application in dir.
func LoadConfig(dir string) (AppConfig, string, error) {
	var config AppConfig
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return config, path, fmt.Errorf("failed to read %q: %w", path, err)
		}
		if err := ParseJSONOrYAML(data, &config); err != nil {
			return config, path, fmt.Errorf("error parsing %q: %w", path, err)
		}
		config.applyDefaults()
		return config, path, nil
	}
	return config, "", fmt.Errorf("no %s found", strings.Join(configFileNames, " or "))
}

func (c *AppConfig) applyDefaults() {
	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = defaultSessionCookieName
	}
	if c.Session.Timeout == 0 {
		c.Session.Timeout = Duration(defaultSessionTimeout)
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = "apphost:session:"
	}
}
