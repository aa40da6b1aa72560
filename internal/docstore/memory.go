package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store for development and tests. Documents are kept
// as JSON so decoding behaves like the Postgres backend.
type Memory struct {
	mu      sync.Mutex
	docs    map[string][]byte
	order   map[string][]string
	changed map[string]chan struct{}
	closed  bool
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string][]byte),
		order:   make(map[string][]string),
		changed: make(map[string]chan struct{}),
	}
}

func splitPath(p string) (string, string, error) {
	p = strings.Trim(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx <= 0 || idx == len(p)-1 || strings.Contains(p, "//") {
		return "", "", fmt.Errorf("docstore: invalid document path %q", p)
	}
	return p[:idx], p[idx+1:], nil
}

// Write stores data at path, merging top-level keys when opts.Merge is set.
func (m *Memory) Write(_ context.Context, path string, data map[string]any, opts WriteOptions) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	key := collection + "/" + id
	merged := make(map[string]any, len(data))
	if existing, ok := m.docs[key]; ok && opts.Merge {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return fmt.Errorf("docstore: decode %s: %w", key, err)
		}
	}
	for k, v := range data {
		merged[k] = v
	}
	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", key, err)
	}
	m.putLocked(collection, key, payload)
	return nil
}

// Append adds data to collection under a fresh id.
func (m *Memory) Append(_ context.Context, collection string, data any) (string, error) {
	collection = strings.Trim(collection, "/")
	id := uuid.NewString()
	if _, _, err := splitPath(collection + "/" + id); err != nil {
		return "", err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("docstore: encode document: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	m.putLocked(collection, collection+"/"+id, payload)
	return id, nil
}

func (m *Memory) putLocked(collection, key string, payload []byte) {
	if _, exists := m.docs[key]; !exists {
		m.order[collection] = append(m.order[collection], key)
	}
	m.docs[key] = payload
	if ch, ok := m.changed[collection]; ok {
		close(ch)
		delete(m.changed, collection)
	}
}

// snapshotLocked returns the current snapshot and a channel closed on the next change.
func (m *Memory) snapshotLocked(collection string) (Snapshot, <-chan struct{}) {
	keys := m.order[collection]
	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		payload := m.docs[key]
		docs = append(docs, NewDocument(key[strings.LastIndex(key, "/")+1:], key, func(v any) error {
			return json.Unmarshal(payload, v)
		}))
	}
	ch, ok := m.changed[collection]
	if !ok {
		ch = make(chan struct{})
		m.changed[collection] = ch
	}
	return Snapshot{Collection: collection, Documents: docs, ReadAt: time.Now().UTC()}, ch
}

// Subscribe streams snapshots of collection.
func (m *Memory) Subscribe(ctx context.Context, collection string) (*Subscription, error) {
	collection = strings.Trim(collection, "/")
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	return startSubscription(ctx, func(ctx context.Context, emit emitFunc) error {
		for {
			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return ErrClosed
			}
			snap, changed := m.snapshotLocked(collection)
			m.mu.Unlock()

			if !emit(snap) {
				return ctx.Err()
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}), nil
}

// Close rejects further calls and ends live subscriptions.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for collection, ch := range m.changed {
		close(ch)
		delete(m.changed, collection)
	}
}
