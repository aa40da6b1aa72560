// Package docstore is the document-database boundary: hierarchical paths,
// merge writes, collection appends and live full-snapshot subscriptions.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("docstore: closed")

// WriteOptions modifies Write.
type WriteOptions struct {
	// Merge keeps top-level fields of the stored document that data does not set.
	Merge bool
}

// Store is implemented by every backend.
type Store interface {
	Write(ctx context.Context, path string, data map[string]any, opts WriteOptions) error
	Append(ctx context.Context, collection string, data any) (string, error)
	// Subscribe delivers a full snapshot of collection now and after every change.
	Subscribe(ctx context.Context, collection string) (*Subscription, error)
}

// Document is one entry of a snapshot.
type Document struct {
	ID     string
	Path   string
	decode func(v any) error
}

// NewDocument builds a Document whose data is decoded lazily by decode.
func NewDocument(id, path string, decode func(v any) error) Document {
	return Document{ID: id, Path: path, decode: decode}
}

// DataTo decodes the document into v.
func (d Document) DataTo(v any) error {
	if d.decode == nil {
		return fmt.Errorf("docstore: document %s has no data", d.Path)
	}
	return d.decode(v)
}

// Snapshot is a complete point-in-time copy of a collection, in the order the
// backend delivered it.
type Snapshot struct {
	Collection string
	Documents  []Document
	ReadAt     time.Time
}

// Subscription streams snapshots until Close or the parent context ends.
// Consumers should treat every snapshot as a full replacement.
type Subscription struct {
	c      chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// emitFunc sends one snapshot; it returns false once the subscription is stopping.
type emitFunc func(Snapshot) bool

// startSubscription runs produce in its own goroutine. produce must return when
// ctx is done.
func startSubscription(parent context.Context, produce func(ctx context.Context, emit emitFunc) error) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	sub := &Subscription{
		c:      make(chan Snapshot),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	emit := func(s Snapshot) bool {
		select {
		case sub.c <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(sub.done)
		defer close(sub.c)
		err := produce(ctx, emit)
		if err != nil && ctx.Err() == nil {
			sub.mu.Lock()
			sub.err = err
			sub.mu.Unlock()
		}
	}()
	return sub
}

// C returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot {
	return s.c
}

// Err reports why the stream ended early; nil after a normal Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the stream and waits for its goroutine to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}
