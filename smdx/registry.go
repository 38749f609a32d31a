package smdx

import (
	"fmt"
	"sync"
)

// Source resolves an SMDX filename to its document bytes. pathutil.List
// satisfies this.
type Source interface {
	Read(filename string) ([]byte, error)
}

// Registry caches loaded ModelTypes by id; the cache belongs to the
// Registry value, so it is process-wide only when one Registry is shared.
// It replaces a bare global cache with an explicit, constructor-injected
// one; the package provides no default Registry.
type Registry struct {
	mu     sync.Mutex
	source Source
	models map[int]*ModelType
}

// NewRegistry builds a Registry that resolves cache misses through src.
func NewRegistry(src Source) *Registry {
	return &Registry{source: src, models: map[int]*ModelType{}}
}

// Get returns the cached ModelType for id, loading and caching it via the
// registry's Source on first reference.
func (r *Registry) Get(id int) (*ModelType, error) {
	r.mu.Lock()
	if mt, ok := r.models[id]; ok {
		r.mu.Unlock()
		return mt, nil
	}
	r.mu.Unlock()

	if r.source == nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("model %d not cached and no source configured", id)}
	}
	data, err := r.source.Read(fmt.Sprintf("smdx_%05d.xml", id))
	if err != nil {
		return nil, err
	}
	return r.Load(data)
}

// Load parses data and caches the resulting ModelType by its declared id,
// overwriting any previous entry for that id.
func (r *Registry) Load(data []byte) (*ModelType, error) {
	mt, err := Parse(data)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.models[mt.ID] = mt
	r.mu.Unlock()
	return mt, nil
}

// Put seeds the registry with an already-built ModelType, useful for
// tests that skip XML parsing entirely.
func (r *Registry) Put(mt *ModelType) {
	r.mu.Lock()
	r.models[mt.ID] = mt
	r.mu.Unlock()
}
