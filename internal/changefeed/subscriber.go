package changefeed

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

var errStreamOverflow = errors.New("stream buffer overflow")

// State is the visible condition of one subscription's underlying stream.
type State string

const (
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateStale        State = "stale"
)

// Subscriber hands out per-topic subscriptions over a Transport and owns
// the reconnect policy. Delivery within one subscription is ordered; no
// ordering is promised across topics.
type Subscriber struct {
	transport      Transport
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewSubscriber(transport Transport) *Subscriber {
	return &Subscriber{
		transport:      transport,
		initialBackoff: 250 * time.Millisecond,
		maxBackoff:     30 * time.Second,
	}
}

// Subscription delivers one topic's events in order. After a transport
// failure the subscription resubscribes with backoff and reports itself
// stale until the owner has reseeded from a fresh snapshot and called
// ClearStale; events missed during the outage (deletes in particular) are
// unrecoverable any other way.
type Subscription struct {
	topic  string
	events chan Event
	states chan State

	state atomic.Value // State
	stale atomic.Bool

	done chan struct{}
	once sync.Once
}

func (s *Subscriber) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic:  topic,
		events: make(chan Event, streamBuffer),
		states: make(chan State, 8),
		done:   make(chan struct{}),
	}
	sub.state.Store(StateConnected)
	go s.run(sub)
	return sub
}

// Events yields the subscription's ordered event stream. The channel is
// closed once Unsubscribe has been called and the final buffered events
// have been flushed.
func (sub *Subscription) Events() <-chan Event { return sub.events }

func (sub *Subscription) Topic() string { return sub.topic }

// StateChanges signals connection transitions out-of-band, so owners react
// at interruption and reconnect time rather than at the next delivery. A
// Reconnecting signal means delivery was interrupted; a Connected signal
// means the stream is live again and a stale consumer can reseed now.
func (sub *Subscription) StateChanges() <-chan State { return sub.states }

func (sub *Subscription) notifyState(st State) {
	select {
	case sub.states <- st:
	default:
	}
}

func (sub *Subscription) State() State {
	if sub.stale.Load() {
		return StateStale
	}
	return sub.state.Load().(State)
}

// Stale reports whether delivery was interrupted since the last reseed.
// A stale subscription keeps delivering, but its consumer must not trust
// incremental events until it has reseeded and called ClearStale.
func (sub *Subscription) Stale() bool { return sub.stale.Load() }

// ClearStale is called by the owning mirror after a fresh snapshot has
// been loaded.
func (sub *Subscription) ClearStale() { sub.stale.Store(false) }

// Unsubscribe stops delivery. It is idempotent; events already buffered
// are flushed and then the event channel is closed.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() { close(sub.done) })
}

func (s *Subscriber) run(sub *Subscription) {
	defer close(sub.events)

	backoff := s.initialBackoff
	for {
		stream, err := s.transport.Open(sub.topic)
		if err != nil {
			sub.state.Store(StateReconnecting)
			sub.stale.Store(true)
			sub.notifyState(StateReconnecting)
			log.Printf("changefeed: open topic %q failed: %v (retrying in %v)", sub.topic, err, backoff)
			select {
			case <-time.After(backoff):
			case <-sub.done:
				return
			}
			backoff = nextBackoff(backoff, s.maxBackoff)
			continue
		}

		sub.state.Store(StateConnected)
		sub.notifyState(StateConnected)
		backoff = s.initialBackoff

		if !s.pump(sub, stream) {
			stream.Close()
			return
		}
		// Stream broke: mark stale and go around for a fresh one.
		stream.Close()
		sub.state.Store(StateReconnecting)
		sub.stale.Store(true)
		sub.notifyState(StateReconnecting)
		select {
		case <-time.After(backoff):
		case <-sub.done:
			return
		}
		backoff = nextBackoff(backoff, s.maxBackoff)
	}
}

// pump forwards stream events until the stream errors (returns true) or
// the subscription is unsubscribed (returns false).
func (s *Subscriber) pump(sub *Subscription, stream Stream) bool {
	for {
		select {
		case <-sub.done:
			return false
		case err := <-stream.Errs():
			log.Printf("changefeed: topic %q stream failed: %v", sub.topic, err)
			return true
		case ev := <-stream.Events():
			select {
			case sub.events <- ev:
			case <-sub.done:
				return false
			}
		}
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}
