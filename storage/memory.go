package storage

import (
	"os"
	"sort"
	"sync"
)

// Memory is an in-memory implementation of the storage interface, useful for
// testing file-column behaviour without touching the filesystem. Source
// files that exist on disk are read in; sources that don't are stored empty.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// Move records the source under a fresh stored name.
func (m *Memory) Move(src string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		data = nil // sources need not exist in tests
	}
	name := storedName(src)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return name, nil
}

// Delete removes a stored file. Unknown names are not an error.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

// Path returns the stored name itself.
func (m *Memory) Path(name string) string { return name }

// Has reports whether a stored name exists.
func (m *Memory) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

// Names returns all stored names, sorted.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
