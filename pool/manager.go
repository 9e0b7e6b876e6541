package pool

import "sync"

// Closer is the minimal contract Manager requires of a registered
// pool: something that can be torn down. *Pool[T] satisfies it.
type Closer interface {
	Close() error
}

// Manager is a process-wide registry of named pools (spec §4.9), for
// hosts that talk to several distinct services, each with its own
// Pool. Safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]Closer
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{pools: make(map[string]Closer)}
}

// Register stores p under name. If a pool is already registered under
// that name, it is closed before being replaced.
func (m *Manager) Register(name string, p Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.pools[name]; ok {
		_ = old.Close()
	}
	m.pools[name] = p
}

// Deregister removes name from the registry without closing it.
func (m *Manager) Deregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pools, name)
}

// CloseAll closes and empties every registered pool.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]Closer)
	m.mu.Unlock()
	for _, p := range pools {
		_ = p.Close()
	}
}

// Get performs a type-safe lookup: it returns false both when name is
// unregistered and when the registered value isn't a *Pool[T].
func Get[T Client](m *Manager, name string) (*Pool[T], bool) {
	m.mu.RLock()
	c, ok := m.pools[name]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	p, ok := c.(*Pool[T])
	return p, ok
}
