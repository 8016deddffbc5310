package changefeed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic names mirror the backing tables.
const (
	TopicParkingSpaces    = "parking_spaces"
	TopicGuestRequests    = "guest_requests"
	TopicPendingApprovals = "pending_approvals"
)

type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event is the closed change-notification variant carried by the feed.
// Kind is matched exhaustively by consumers; payloads are raw JSON so an
// Update may carry only the fields that changed.
type Event struct {
	ID        string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Kind      Kind            `json:"kind"`
	Old       json.RawMessage `json:"old,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewInsert(topic string, entity any) (Event, error) {
	return newEvent(topic, KindInsert, nil, entity)
}

func NewUpdate(topic string, old, entity any) (Event, error) {
	return newEvent(topic, KindUpdate, old, entity)
}

func NewDelete(topic string, old any) (Event, error) {
	return newEvent(topic, KindDelete, old, nil)
}

func newEvent(topic string, kind Kind, old, entity any) (Event, error) {
	ev := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
	if old != nil {
		raw, err := json.Marshal(old)
		if err != nil {
			return Event{}, fmt.Errorf("changefeed: marshaling old payload for %s/%s: %w", topic, kind, err)
		}
		ev.Old = raw
	}
	if entity != nil {
		raw, err := json.Marshal(entity)
		if err != nil {
			return Event{}, fmt.Errorf("changefeed: marshaling new payload for %s/%s: %w", topic, kind, err)
		}
		ev.New = raw
	}
	return ev, nil
}
