package pipeline

import (
	"sync"

	"github.com/integrationkit/apphost/framework/opt"
)

// Settings is an application's mutable key/value configuration. Keys keep the order in
// which they were first added.
type Settings struct {
	keys   []string
	values map[string]string
	lock   sync.RWMutex
}

// NewSettings creates Settings holding the given keys and values in order.
func NewSettings(keys []string, values map[string]string) *Settings {
	s := &Settings{values: make(map[string]string)}
	for _, k := range keys {
		s.Add(k, values[k])
	}
	return s
}

// Keys returns the setting names in order.
func (s *Settings) Keys() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]string(nil), s.keys...)
}

// Get returns the value of a setting, if it exists.
func (s *Settings) Get(key string) opt.Maybe[string] {
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return opt.From(v, ok)
}

// Has reports whether the setting exists.
func (s *Settings) Has(key string) bool {
	return s.Get(key).IsDefined()
}

// Set changes an existing setting. It returns false, and changes nothing, if the key does
// not exist.
func (s *Settings) Set(key, value string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.values[key]; !ok {
		return false
	}
	s.values[key] = value
	return true
}

// Add creates a setting, or changes it if it already exists.
func (s *Settings) Add(key, value string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}
