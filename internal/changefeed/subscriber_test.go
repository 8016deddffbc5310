package changefeed

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport hands out pre-built streams one Open at a time; an
// attempt with no stream scripted fails.
type scriptedTransport struct {
	mu       sync.Mutex
	streams  []*scriptedStream
	attempts int
	opens    int
}

type scriptedStream struct {
	events chan Event
	errs   chan error
	closed bool
	mu     sync.Mutex
}

func newScriptedStream() *scriptedStream {
	return &scriptedStream{
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
	}
}

func (s *scriptedStream) Events() <-chan Event { return s.events }
func (s *scriptedStream) Errs() <-chan error   { return s.errs }
func (s *scriptedStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *scriptedStream) fail() { s.errs <- errors.New("transport lost") }

func (tr *scriptedTransport) Open(topic string) (Stream, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.attempts++
	if tr.opens >= len(tr.streams) {
		return nil, errors.New("no stream scripted")
	}
	s := tr.streams[tr.opens]
	tr.opens++
	return s, nil
}

func (tr *scriptedTransport) script(s *scriptedStream) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.streams = append(tr.streams, s)
}

func fastSubscriber(tr Transport) *Subscriber {
	s := NewSubscriber(tr)
	s.initialBackoff = time.Millisecond
	s.maxBackoff = 5 * time.Millisecond
	return s
}

func TestSubscriptionDeliversAndUnsubscribes(t *testing.T) {
	stream := newScriptedStream()
	tr := &scriptedTransport{streams: []*scriptedStream{stream}}
	sub := fastSubscriber(tr).Subscribe(TopicGuestRequests)

	ev, err := NewInsert(TopicGuestRequests, reg{ID: 7})
	require.NoError(t, err)
	stream.events <- ev

	select {
	case got := <-sub.Events():
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	assert.Equal(t, StateConnected, sub.State())
	assert.False(t, sub.Stale())

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	// The event channel closes after the final flush.
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-sub.Events():
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("event channel never closed")
		}
	}
}

func TestSubscriptionReconnectsAndMarksStale(t *testing.T) {
	first := newScriptedStream()
	second := newScriptedStream()
	tr := &scriptedTransport{streams: []*scriptedStream{first, second}}
	sub := fastSubscriber(tr).Subscribe(TopicParkingSpaces)
	defer sub.Unsubscribe()

	first.fail()

	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.opens == 2
	}, time.Second, time.Millisecond, "expected a resubscription after the failure")

	// Stale persists across the reconnect until the owner reseeds.
	assert.True(t, sub.Stale())
	assert.Equal(t, StateStale, sub.State())

	// Both transitions were signaled out-of-band.
	seen := map[State]bool{}
	require.Eventually(t, func() bool {
		for {
			select {
			case st := <-sub.StateChanges():
				seen[st] = true
			default:
				return seen[StateReconnecting] && seen[StateConnected]
			}
		}
	}, time.Second, time.Millisecond)

	// Delivery resumes on the fresh stream.
	ev, err := NewInsert(TopicParkingSpaces, reg{ID: 1})
	require.NoError(t, err)
	second.events <- ev
	select {
	case got := <-sub.Events():
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for post-reconnect delivery")
	}

	sub.ClearStale()
	assert.False(t, sub.Stale())
	assert.Equal(t, StateConnected, sub.State())
}

func TestSubscribeRetriesOpenWithBackoff(t *testing.T) {
	stream := newScriptedStream()
	tr := &scriptedTransport{}
	sub := fastSubscriber(tr).Subscribe(TopicParkingSpaces)
	defer sub.Unsubscribe()

	// No stream scripted yet, so every open fails and retries.
	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.attempts >= 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, StateStale, sub.State())

	tr.script(stream)
	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.opens == 1
	}, time.Second, time.Millisecond)
	assert.True(t, sub.Stale(), "a subscription that ever failed to open stays stale until reseeded")
}
