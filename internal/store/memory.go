package store

import (
	"context"
	"sync"

	"github.com/imamik/hcprov/internal/descriptor"
)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	docs map[descriptor.Reference]Document
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: map[descriptor.Reference]Document{}}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, ref descriptor.Reference, out any) error {
	m.mu.RLock()
	doc, ok := m.docs[ref]
	m.mu.RUnlock()
	if !ok {
		return notFound(ref)
	}
	return Decode(doc, out)
}

// Patch implements Store.
func (m *Memory) Patch(_ context.Context, ref descriptor.Reference, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[ref]
	if !ok {
		return notFound(ref)
	}
	merged, err := merge(doc, delta)
	if err != nil {
		return err
	}
	m.docs[ref] = merged
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, ref descriptor.Reference) error {
	m.mu.Lock()
	delete(m.docs, ref)
	m.mu.Unlock()
	return nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, ref descriptor.Reference, value any) error {
	doc, err := ToDocument(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[ref] = doc
	m.mu.Unlock()
	return nil
}

// Raw returns a copy of the stored document, for inspection.
func (m *Memory) Raw(ref descriptor.Reference) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[ref]
	if !ok {
		return nil, false
	}
	return doc.clone(), true
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
