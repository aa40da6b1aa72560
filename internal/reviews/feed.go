package reviews

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/docstore"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/metrics"
)

// Source opens the upstream snapshot stream. *Store implements it.
type Source interface {
	Subscribe(ctx context.Context) (*docstore.Subscription, error)
}

// Feed keeps one upstream subscription per process and hands every decoded
// snapshot to its subscribers. Each subscriber holds at most one pending
// snapshot; a newer one replaces it.
type Feed struct {
	source Source
	logger *zap.Logger

	mu     sync.Mutex
	latest []domain.Review
	ready  bool
	failed bool
	subs   map[*Subscriber]struct{}

	failOnce sync.Once
	done     chan struct{}
}

// NewFeed creates a feed over source.
func NewFeed(source Source, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		source: source,
		logger: logger,
		subs:   make(map[*Subscriber]struct{}),
		done:   make(chan struct{}),
	}
}

// Run consumes the upstream stream until ctx is done (returning nil) or the
// stream fails.
func (f *Feed) Run(ctx context.Context) error {
	sub, err := f.source.Subscribe(ctx)
	if err != nil {
		f.fail()
		return err
	}
	defer sub.Close()

	for snap := range sub.C() {
		list, skipped := Decode(snap)
		for _, err := range skipped {
			f.logger.Warn("reviews: skipping document", zap.Error(err))
		}
		metrics.SnapshotsPublishedTotal.Inc()
		f.publish(list)
	}
	if err := sub.Err(); err != nil {
		f.logger.Error("reviews: upstream subscription ended", zap.Error(err))
		f.fail()
		return err
	}
	return nil
}

func (f *Feed) publish(list []domain.Review) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = list
	f.ready = true
	for s := range f.subs {
		s.offer(list)
	}
}

func (f *Feed) fail() {
	f.mu.Lock()
	f.failed = true
	f.mu.Unlock()
	f.failOnce.Do(func() { close(f.done) })
}

// Failed reports whether the upstream stream could not be opened or broke.
func (f *Feed) Failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

// Latest returns the most recent review list and whether one has arrived.
func (f *Feed) Latest() ([]domain.Review, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.ready
}

// Subscribe registers a subscriber. If a snapshot has already arrived it is
// pending immediately.
func (f *Feed) Subscribe() *Subscriber {
	s := &Subscriber{feed: f, ch: make(chan []domain.Review, 1)}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[s] = struct{}{}
	if f.ready {
		s.offer(f.latest)
	}
	return s
}

// Subscribers returns the number of registered subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) remove(s *Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, s)
}

// Subscriber receives full review lists. Slices are shared between
// subscribers and must not be modified.
type Subscriber struct {
	feed *Feed
	ch   chan []domain.Review
	once sync.Once
}

// C returns the mailbox channel. It is never closed.
func (s *Subscriber) C() <-chan []domain.Review {
	return s.ch
}

// offer replaces any pending snapshot. Callers hold the feed lock, so there is
// a single sender.
func (s *Subscriber) offer(list []domain.Review) {
	for {
		select {
		case s.ch <- list:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Failed is closed when the upstream stream breaks. No snapshots follow.
func (s *Subscriber) Failed() <-chan struct{} {
	return s.feed.done
}

// Close unregisters the subscriber. It is safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() { s.feed.remove(s) })
}
