package recordstore

import (
	"context"
	"log/slog"
	"sync"
)

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store. It backs manual mode, where a split
// never leaves the device, and tests. Records do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]Record
	watchers map[string][]*memorySub
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]Record),
		watchers: make(map[string][]*memorySub),
	}
}

// Create stores a new record under pin.
func (s *MemoryStore) Create(ctx context.Context, pin string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[pin]; ok {
		return ErrConflict
	}
	rec.PIN = pin
	s.records[pin] = cloneRecord(rec)
	s.notifyLocked(pin, rec)
	return nil
}

// Get returns the current record for pin.
func (s *MemoryStore) Get(ctx context.Context, pin string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[pin]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

// Overwrite replaces the record for pin and notifies watchers.
func (s *MemoryStore) Overwrite(ctx context.Context, pin string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[pin]; !ok {
		return ErrNotFound
	}
	rec.PIN = pin
	s.records[pin] = cloneRecord(rec)
	s.notifyLocked(pin, rec)
	return nil
}

// Watch opens a change feed for pin.
func (s *MemoryStore) Watch(ctx context.Context, pin string) (Subscription, error) {
	sub := &memorySub{
		store: s,
		pin:   pin,
		ch:    make(chan Record, 16),
	}

	s.mu.Lock()
	s.watchers[pin] = append(s.watchers[pin], sub)
	s.mu.Unlock()
	return sub, nil
}

// notifyLocked fans a record out to every watcher of pin. A watcher that
// has fallen 16 records behind loses the oldest buffered one; every record
// carries the complete document, so the next delivery restores the full
// state.
func (s *MemoryStore) notifyLocked(pin string, rec Record) {
	for _, sub := range s.watchers[pin] {
		select {
		case sub.ch <- cloneRecord(rec):
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- cloneRecord(rec):
			default:
				slog.Warn("dropping record notification for slow watcher", "pin", pin)
			}
		}
	}
}

func cloneRecord(rec Record) Record {
	rec.Document = rec.Document.Clone()
	return rec
}

type memorySub struct {
	store *MemoryStore
	pin   string
	ch    chan Record
	once  sync.Once
}

func (s *memorySub) Updates() <-chan Record {
	return s.ch
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.store.mu.Lock()
		watchers := s.store.watchers[s.pin]
		for i, w := range watchers {
			if w == s {
				s.store.watchers[s.pin] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		s.store.mu.Unlock()
		close(s.ch)
	})
	return nil
}
