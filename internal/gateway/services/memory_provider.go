package services

import (
	"context"
	"sync"

	"github.com/gatherpoint/api/internal/gateway/types"
)

// MemoryStorage is an in-process snapshot store: the fallback when no
// database path is configured, and the fake used in tests.
type MemoryStorage struct {
	mu     sync.Mutex
	events []types.Event
	loaded bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) LoadEvents(ctx context.Context) ([]types.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, false, nil
	}
	return append([]types.Event(nil), s.events...), true, nil
}

func (s *MemoryStorage) SaveEvents(ctx context.Context, events []types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]types.Event(nil), events...)
	s.loaded = true
	return nil
}

func (s *MemoryStorage) Close() error { return nil }

// MemoryBroadcaster delivers snapshots synchronously to every
// subscriber, own messages included; origin filtering happens in the
// store, same as with the NATS transport.
type MemoryBroadcaster struct {
	mu       sync.Mutex
	nextId   int
	handlers map[int]func(origin string, events []types.Event)
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{handlers: make(map[int]func(origin string, events []types.Event))}
}

func (b *MemoryBroadcaster) Publish(ctx context.Context, origin string, events []types.Event) error {
	b.mu.Lock()
	handlers := make([]func(string, []types.Event), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	snapshot := append([]types.Event(nil), events...)
	for _, h := range handlers {
		h(origin, snapshot)
	}
	return nil
}

func (b *MemoryBroadcaster) Subscribe(handler func(origin string, events []types.Event)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextId
	b.nextId++
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}, nil
}

func (b *MemoryBroadcaster) Close() error { return nil }
