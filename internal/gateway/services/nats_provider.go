package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/gatherpoint/api/internal/gateway/types"
)

// NatsBroadcaster implements the snapshot pub/sub port on core NATS.
// Core publish/subscribe is at-most-once with no replay for detached
// subscribers, matching the broadcast-channel contract exactly.
type NatsBroadcaster struct {
	conn    *nats.Conn
	subject string
	subs    []*nats.Subscription
}

func GetNatsClient() (*nats.Conn, error) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		return nil, fmt.Errorf("NATS_URL environment variable is required")
	}
	return nats.Connect(url)
}

func NewNatsBroadcaster(conn *nats.Conn, subject string) *NatsBroadcaster {
	return &NatsBroadcaster{conn: conn, subject: subject}
}

func (b *NatsBroadcaster) Publish(ctx context.Context, origin string, events []types.Event) error {
	msg := types.EventsSyncMessage{
		Type:   types.EventsUpdatedType,
		Origin: origin,
		Events: events,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal events snapshot: %w", err)
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("failed to publish events snapshot: %w", err)
	}
	return nil
}

func (b *NatsBroadcaster) Subscribe(handler func(origin string, events []types.Event)) (func(), error) {
	sub, err := b.conn.Subscribe(b.subject, func(m *nats.Msg) {
		var msg types.EventsSyncMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Printf("ERR: discarding malformed sync message: %v", err)
			return
		}
		if msg.Type != types.EventsUpdatedType {
			return
		}
		handler(msg.Origin, msg.Events)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.subject, err)
	}
	b.subs = append(b.subs, sub)
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("ERR: unsubscribing from %s: %v", b.subject, err)
		}
	}, nil
}

func (b *NatsBroadcaster) Close() error {
	if b.conn != nil {
		b.conn.Close()
	}
	return nil
}
