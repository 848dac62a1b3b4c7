package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SessionStore persists session state between requests. Values are stored as the JSON
// encoding of a map of ldvalue.Value.
type SessionStore interface {
	// Load returns the stored data for a session, or false if there is none.
	Load(ctx context.Context, id string) ([]byte, bool, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Close() error
}

// session is the pipeline.Session of one request. It is loaded when the request starts and
// saved when it ends, if it was modified.
type session struct {
	id     string
	values map[string]ldvalue.Value
	isNew  bool
	dirty  bool
	lock   sync.RWMutex
}

func newSession() *session {
	return &session{id: uuid.NewString(), values: make(map[string]ldvalue.Value), isNew: true}
}

func (s *session) ID() string { return s.id }

func (s *session) Get(key string) ldvalue.Value {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.values[key]
}

func (s *session) Set(key string, value ldvalue.Value) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
	s.dirty = true
}

func (s *session) Keys() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	keys := maps.Keys(s.values)
	slices.Sort(keys)
	return keys
}

func (s *session) encode() ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return json.Marshal(s.values)
}

func loadSession(ctx context.Context, store SessionStore, id string) (*session, error) {
	data, found, err := store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	s := &session{id: id}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("session %q has malformed data: %w", id, err)
	}
	if s.values == nil {
		s.values = make(map[string]ldvalue.Value)
	}
	return s, nil
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	entries map[string]memoryEntry
	now     func() time.Time
	lock    sync.Mutex
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, id string) ([]byte, bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, id)
		return nil, false, nil
	}
	return append([]byte(nil), e.data...), true, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, data []byte, ttl time.Duration) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	e := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[id] = e
	return nil
}

func (m *MemoryStore) Close() error { return nil }
