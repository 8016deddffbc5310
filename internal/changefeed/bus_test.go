package changefeed

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reg struct {
	ID int `json:"id"`
}

func TestBusDeliversPerTopicInOrder(t *testing.T) {
	bus := NewBus()
	stream, err := bus.Open(TopicGuestRequests)
	require.NoError(t, err)
	defer stream.Close()

	const n = 50
	for i := 0; i < n; i++ {
		ev, err := NewInsert(TopicGuestRequests, reg{ID: i})
		require.NoError(t, err)
		bus.Publish(ev)
	}

	for i := 0; i < n; i++ {
		select {
		case ev := <-stream.Events():
			assert.JSONEq(t, fmt.Sprintf(`{"id":%d}`, i), string(ev.New))
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBusIsolatesTopics(t *testing.T) {
	bus := NewBus()
	spaces, err := bus.Open(TopicParkingSpaces)
	require.NoError(t, err)
	defer spaces.Close()

	ev, err := NewInsert(TopicGuestRequests, reg{ID: 1})
	require.NoError(t, err)
	bus.Publish(ev)

	select {
	case got := <-spaces.Events():
		t.Fatalf("parking-space stream received foreign event %s", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusOverflowTearsDownStream(t *testing.T) {
	bus := NewBus()
	stream, err := bus.Open(TopicParkingSpaces)
	require.NoError(t, err)
	defer stream.Close()

	// Nobody reads; the stream buffer fills and the next publish must
	// fail the stream instead of silently dropping an event.
	for i := 0; i <= streamBuffer; i++ {
		ev, err := NewInsert(TopicParkingSpaces, reg{ID: i})
		require.NoError(t, err)
		bus.Publish(ev)
	}

	select {
	case err := <-stream.Errs():
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected a stream error after overflow")
	}

	// The dead stream no longer receives publishes.
	ev, err := NewInsert(TopicParkingSpaces, reg{ID: -1})
	require.NoError(t, err)
	bus.Publish(ev)
	assert.Len(t, stream.Events(), streamBuffer)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	bus := NewBus()
	stream, err := bus.Open(TopicParkingSpaces)
	require.NoError(t, err)

	stream.Close()
	stream.Close()
}
