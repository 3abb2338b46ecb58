package store

import (
	"context"
	"sync"
	"time"

	"cognivox-server/pkg/metrics"
)

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Document),
		now:         time.Now,
	}
}

// Create appends record to collection
func (m *MemoryStore) Create(ctx context.Context, collection string, record interface{}) (Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, writeFailed(collection, err)
	}
	doc, err := newDocument(record, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.collections[collection] = append(m.collections[collection], doc)
	m.mu.Unlock()

	metrics.RecordStoreWrite(collection, "success")
	return copyDocument(doc), nil
}

// GetAll lists collection in insertion order
func (m *MemoryStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.collections[collection]
	out := make([]Document, len(docs))
	for i, doc := range docs {
		out[i] = copyDocument(doc)
	}
	return out, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
