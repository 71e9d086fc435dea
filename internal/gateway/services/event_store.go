package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherpoint/api/internal/gateway/interfaces"
	"github.com/gatherpoint/api/internal/gateway/types"
)

// EventStore owns the canonical event collection. Every mutation
// computes a new collection (copy-on-write, never in place), persists the full
// snapshot to storage, then broadcasts it so other open instances
// converge. Received snapshots replace local state wholesale: last
// writer wins, no merging.
type EventStore struct {
	mu          sync.RWMutex
	events      []types.Event
	storage     interfaces.SnapshotStorage
	broadcaster interfaces.SnapshotBroadcaster
	unsubscribe func()
	instanceId  string
	now         func() time.Time
	newId       func() string
}

func NewEventStore(ctx context.Context, storage interfaces.SnapshotStorage, broadcaster interfaces.SnapshotBroadcaster) (*EventStore, error) {
	store := &EventStore{
		storage:     storage,
		broadcaster: broadcaster,
		instanceId:  uuid.NewString(),
		now:         time.Now,
		newId:       uuid.NewString,
	}

	events, found, err := storage.LoadEvents(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		events = SeedEvents()
		if err := storage.SaveEvents(ctx, events); err != nil {
			log.Printf("ERR: persisting seed events: %v", err)
		}
	}
	store.events = events

	unsubscribe, err := broadcaster.Subscribe(func(origin string, snapshot []types.Event) {
		if origin == store.instanceId {
			return
		}
		store.applySnapshot(snapshot)
	})
	if err != nil {
		return nil, err
	}
	store.unsubscribe = unsubscribe

	return store, nil
}

// Events returns a copy of the current collection, insertion order
// preserved.
func (s *EventStore) Events() []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Event(nil), s.events...)
}

// Add synthesizes a fresh id, normalizes tags, and appends the event.
func (s *EventStore) Add(ctx context.Context, event types.Event) (types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.Id = s.newId()
	event.Tags = types.NormalizeTags(event.Tags)
	if event.Status == "" {
		event.Status = types.EventStatusUpcoming
	}
	now := s.now().UTC().Format(time.RFC3339)
	if event.CreatedAt == "" {
		event.CreatedAt = now
	}
	if event.UpdatedAt == "" {
		event.UpdatedAt = now
	}

	next := append(append([]types.Event(nil), s.events...), event)
	s.commit(ctx, next)
	return event, nil
}

// Update merges the patch over the event with the given id: present
// fields replace, absent fields are retained. Unknown ids are a silent
// no-op at every call site (permissive policy) and return a zero Event.
func (s *EventStore) Update(ctx context.Context, id string, patch types.EventPatch) (types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated types.Event
	found := false
	next := make([]types.Event, len(s.events))
	for i, event := range s.events {
		if event.Id == id {
			event = applyPatch(event, patch)
			event.UpdatedAt = s.now().UTC().Format(time.RFC3339)
			updated = event
			found = true
		}
		next[i] = event
	}
	if !found {
		return types.Event{}, nil
	}
	s.commit(ctx, next)
	return updated, nil
}

// Delete removes the event with the given id; no-op when absent, so a
// second delete of the same id leaves the collection untouched.
func (s *EventStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]types.Event, 0, len(s.events))
	for _, event := range s.events {
		if event.Id != id {
			next = append(next, event)
		}
	}
	if len(next) == len(s.events) {
		return nil
	}
	s.commit(ctx, next)
	return nil
}

func (s *EventStore) GetByID(id string) (types.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.events {
		if event.Id == id {
			return event, true
		}
	}
	return types.Event{}, false
}

// Filter returns events whose title, description, category, or
// location contains the query, case-insensitively, original order
// preserved.
func (s *EventStore) Filter(query string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	matches := make([]types.Event, 0)
	for _, event := range s.events {
		if strings.Contains(strings.ToLower(event.Title), q) ||
			strings.Contains(strings.ToLower(event.Description), q) ||
			strings.Contains(strings.ToLower(event.Category), q) ||
			strings.Contains(strings.ToLower(event.Location), q) {
			matches = append(matches, event)
		}
	}
	return matches
}

// Close detaches from the broadcast channel. Messages published while
// detached are not replayed.
func (s *EventStore) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	return nil
}

// commit installs a new collection, persists it, and broadcasts it.
// Storage and broadcast failures are logged and do not fail the
// mutation: the in-memory collection stays the source of truth until
// persistence succeeds again. Caller must hold the write lock, which
// keeps mutations strictly ordered within the process.
func (s *EventStore) commit(ctx context.Context, next []types.Event) {
	s.events = next
	if err := s.storage.SaveEvents(ctx, next); err != nil {
		log.Printf("ERR: persisting events snapshot: %v", err)
	}
	if err := s.broadcaster.Publish(ctx, s.instanceId, next); err != nil {
		log.Printf("ERR: broadcasting events snapshot: %v", err)
	}
}

// applySnapshot replaces the collection wholesale with a snapshot
// received from another instance, and persists it so a restart sees
// the converged state. It does not rebroadcast.
func (s *EventStore) applySnapshot(snapshot []types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]types.Event(nil), snapshot...)
	if err := s.storage.SaveEvents(context.Background(), s.events); err != nil {
		log.Printf("ERR: persisting received snapshot: %v", err)
	}
}

func applyPatch(event types.Event, patch types.EventPatch) types.Event {
	if patch.Title != nil {
		event.Title = *patch.Title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.Date != nil {
		event.Date = *patch.Date
	}
	if patch.Location != nil {
		event.Location = *patch.Location
	}
	if patch.Category != nil {
		event.Category = *patch.Category
	}
	if patch.Capacity != nil {
		event.Capacity = *patch.Capacity
	}
	if patch.Attendees != nil {
		event.Attendees = *patch.Attendees
	}
	if patch.Image != nil {
		event.Image = *patch.Image
	}
	if patch.ImageUrl != nil {
		event.ImageUrl = *patch.ImageUrl
	}
	if patch.Tags != nil {
		event.Tags = types.NormalizeTags(*patch.Tags)
	}
	if patch.Status != nil {
		event.Status = *patch.Status
	}
	if patch.RegistrationRequired != nil {
		event.RegistrationRequired = *patch.RegistrationRequired
	}
	if patch.RegistrationUrl != nil {
		event.RegistrationUrl = *patch.RegistrationUrl
	}
	if patch.OrganizerId != nil {
		event.OrganizerId = *patch.OrganizerId
	}
	if patch.Latitude != nil {
		event.Latitude = patch.Latitude
	}
	if patch.Longitude != nil {
		event.Longitude = patch.Longitude
	}
	return event
}

// SeedEvents is the built-in sample set used when storage holds no
// snapshot yet.
func SeedEvents() []types.Event {
	return []types.Event{
		{
			Id:                   "1",
			Title:                "Web Development Workshop",
			Description:          "Learn the basics of web development with HTML, CSS, and JavaScript.",
			Date:                 "2025-06-15T14:00:00Z",
			Location:             "Online Zoom Meeting",
			Category:             "Workshop",
			ImageUrl:             "https://images.unsplash.com/photo-1593720219276-0b1eacd0aef4?w=800&auto=format&fit=crop",
			Tags:                 types.TagList{"web", "coding", "beginner"},
			Status:               types.EventStatusUpcoming,
			RegistrationRequired: true,
			OrganizerId:          "1",
			CreatedAt:            "2025-05-01T00:00:00Z",
			UpdatedAt:            "2025-05-01T00:00:00Z",
		},
		{
			Id:                   "2",
			Title:                "Summer Tech Conference",
			Description:          "Annual technology conference featuring speakers from top tech companies.",
			Date:                 "2025-07-20T09:00:00Z",
			Location:             "Tech Hub, San Francisco",
			Category:             "Conference",
			ImageUrl:             "https://images.unsplash.com/photo-1540575467063-178a50c2df87?w=800&auto=format&fit=crop",
			Tags:                 types.TagList{"conference", "networking", "tech"},
			Status:               types.EventStatusUpcoming,
			RegistrationRequired: true,
			OrganizerId:          "1",
			CreatedAt:            "2025-05-01T00:00:00Z",
			UpdatedAt:            "2025-05-01T00:00:00Z",
		},
		{
			Id:                   "3",
			Title:                "AI and Machine Learning Hackathon",
			Description:          "Build innovative solutions using AI and machine learning technologies.",
			Date:                 "2025-08-05T10:30:00Z",
			Location:             "Innovation Center, New York",
			Category:             "Hackathon",
			ImageUrl:             "https://images.unsplash.com/photo-1581092918056-0c4c3acd3789?w=800&auto=format&fit=crop",
			Tags:                 types.TagList{"AI", "ML", "hackathon"},
			Status:               types.EventStatusUpcoming,
			RegistrationRequired: true,
			OrganizerId:          "1",
			CreatedAt:            "2025-05-01T00:00:00Z",
			UpdatedAt:            "2025-05-01T00:00:00Z",
		},
		{
			Id:                   "4",
			Title:                "UI/UX Design Workshop",
			Description:          "Master the principles of user interface and user experience design.",
			Date:                 "2025-09-10T15:00:00Z",
			Location:             "Design Studio, London",
			Category:             "Workshop",
			ImageUrl:             "https://images.unsplash.com/photo-1603969409447-ba86143a03f6?w=800&auto=format&fit=crop",
			Tags:                 types.TagList{"design", "UI", "UX"},
			Status:               types.EventStatusUpcoming,
			RegistrationRequired: true,
			OrganizerId:          "1",
			CreatedAt:            "2025-05-01T00:00:00Z",
			UpdatedAt:            "2025-05-01T00:00:00Z",
		},
	}
}
