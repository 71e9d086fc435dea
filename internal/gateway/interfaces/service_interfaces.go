package interfaces

import (
	"context"

	"github.com/gatherpoint/api/internal/gateway/types"
)

// SnapshotStorage is the durable-storage port: one key holding the
// full JSON-serialized event collection. Load's bool reports whether a
// snapshot existed.
type SnapshotStorage interface {
	LoadEvents(ctx context.Context) ([]types.Event, bool, error)
	SaveEvents(ctx context.Context, events []types.Event) error
	Close() error
}

// SnapshotBroadcaster is the pub/sub port. Publish sends the full
// collection; handlers receive snapshots published by any instance,
// possibly including the caller's own (filtered by origin upstream).
// Subscribe returns an unsubscribe func. Delivery is at most once,
// with no replay of messages missed while detached.
type SnapshotBroadcaster interface {
	Publish(ctx context.Context, origin string, events []types.Event) error
	Subscribe(handler func(origin string, events []types.Event)) (func(), error)
	Close() error
}

type EventStoreInterface interface {
	Events() []types.Event
	Add(ctx context.Context, event types.Event) (types.Event, error)
	Update(ctx context.Context, id string, patch types.EventPatch) (types.Event, error)
	Delete(ctx context.Context, id string) error
	GetByID(id string) (types.Event, bool)
	Filter(query string) []types.Event
	ImportCSV(ctx context.Context, csvText string) (int, error)
	ExportCSV() string
	ExportCalendar() (string, error)
	Close() error
}

type GeocodeServiceInterface interface {
	Geocode(ctx context.Context, location string) (types.GeocodeResult, error)
}
