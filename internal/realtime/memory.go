package realtime

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process Feed used in tests and single-node setups.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]chan Event)}
}

func (f *MemoryFeed) Publish(_ context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, skip; the next event triggers a re-read anyway
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(_ context.Context) (<-chan Event, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan Event, 16)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
	return ch, cancel, nil
}
