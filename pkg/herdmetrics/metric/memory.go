package metric

import (
	"sort"
	"sync"
)

// MemoryStore keeps definitions in memory. Data is lost when the process
// exits.
type MemoryStore struct {
	mu     sync.RWMutex
	defs   map[string]Definition // id -> definition
	hooks  storeHooks
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	return &MemoryStore{
		defs:  make(map[string]Definition),
		hooks: newStoreHooks(opts),
	}
}

// Create implements Store.
func (m *MemoryStore) Create(def Definition) (Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Definition{}, ErrStoreClosed
	}

	def, err := m.hooks.prepareCreate(def)
	if err != nil {
		return Definition{}, err
	}
	if _, exists := m.defs[def.ID]; exists {
		return Definition{}, ErrDuplicateID
	}
	m.defs[def.ID] = def
	m.hooks.versioned(def)
	return def, nil
}

// Get implements Store.
func (m *MemoryStore) Get(id string) (Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Definition{}, ErrStoreClosed
	}

	def, ok := m.defs[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return def, nil
}

// Update implements Store.
func (m *MemoryStore) Update(patch Definition) (Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Definition{}, ErrStoreClosed
	}

	stored, ok := m.defs[patch.ID]
	if !ok {
		return Definition{}, ErrNotFound
	}

	next, versioned, err := m.hooks.prepareUpdate(stored, patch)
	if err != nil {
		return Definition{}, err
	}

	if versioned {
		stored.IsCurrent = false
		stored.UpdatedAt = next.UpdatedAt
		m.defs[stored.ID] = stored
		m.hooks.versioned(next)
	}
	m.defs[next.ID] = next
	return next, nil
}

// ListCurrent implements Store.
func (m *MemoryStore) ListCurrent(farmID string) ([]Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]Definition, 0)
	for _, def := range m.defs {
		if def.IsCurrent && def.IsActive && (def.FarmID == farmID || def.FarmID == "") {
			out = append(out, def)
		}
	}
	// Map iteration is random; fix the order before the stable sort.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sortDefinitions(out)
	return out, nil
}

// History implements Store.
func (m *MemoryStore) History(farmID, name string) ([]Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]Definition, 0)
	for _, def := range m.defs {
		if def.FarmID == farmID && def.Name == name {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Deactivate implements Store.
func (m *MemoryStore) Deactivate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	def, ok := m.defs[id]
	if !ok {
		return ErrNotFound
	}
	def.IsActive = false
	def.UpdatedAt = m.hooks.now()
	m.defs[id] = def
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.defs = nil
	return nil
}
