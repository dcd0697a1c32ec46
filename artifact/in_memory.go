package artifact

import (
	"mime"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Info describes a stored artifact. MIMEType is sniffed from the name's
// extension at save time, matching how files come back from a session pool
// mount (plot.png, data.csv).
type Info struct {
	Name     string
	MIMEType string
	Size     int
	SavedAt  time.Time
}

// entry is one stored file; bytes are copied on save and on read.
type entry struct {
	data    []byte
	mime    string
	savedAt time.Time
}

// InMemoryStore keeps per-session execution outputs in process memory. It
// suits tests, examples and single-process prototypes; nothing survives a
// restart and there are no retention limits. Safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]entry // sessionID -> name -> entry
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]map[string]entry)}
}

// Save stores (or overwrites) the artifact bytes under the given session and
// name. The input slice is copied before storage.
func (a *InMemoryStore) Save(sessionID, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.sessions[sessionID]; !exists {
		a.sessions[sessionID] = make(map[string]entry)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	a.sessions[sessionID][name] = entry{
		data:    cp,
		mime:    mime.TypeByExtension(filepath.Ext(name)),
		savedAt: time.Now(),
	}
	return nil
}

// Get returns a copy of the stored artifact bytes or ErrNotFound.
func (a *InMemoryStore) Get(sessionID, name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.sessions[sessionID][name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	return cp, nil
}

// Stat returns metadata for a stored artifact or ErrNotFound.
func (a *InMemoryStore) Stat(sessionID, name string) (Info, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.sessions[sessionID][name]
	if !ok {
		return Info{}, ErrNotFound
	}
	return Info{Name: name, MIMEType: e.mime, Size: len(e.data), SavedAt: e.savedAt}, nil
}

// List returns the artifact names stored for the session in lexical order.
func (a *InMemoryStore) List(sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.sessions[sessionID]
	if !ok {
		return []string{}, nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the artifact if present or returns ErrNotFound.
func (a *InMemoryStore) Delete(sessionID, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[name]; !ok {
		return ErrNotFound
	}
	delete(m, name)
	return nil
}
