package changefeed

import (
	"log"
	"sync"

	"github.com/naigggs/hau2park.web-sub001/internal/domain"
)

// Publisher is the write side of the feed. The persistence layer publishes
// after every successful write; nothing else originates events.
type Publisher interface {
	Publish(ev Event)
}

// Stream is one live per-topic event stream handed out by a Transport.
type Stream interface {
	Events() <-chan Event
	// Errs reports a broken stream. After an error the stream is dead and
	// must be reopened.
	Errs() <-chan error
	Close()
}

// Transport opens per-topic streams. The in-process Bus and any external
// source adapter both satisfy it.
type Transport interface {
	Open(topic string) (Stream, error)
}

const streamBuffer = 256

// Bus is the in-process feed broker. Delivery is ordered per topic; a
// stream whose consumer falls more than streamBuffer events behind is torn
// down with an error rather than silently dropping events, which forces the
// subscriber through its reconnect-and-reseed path.
type Bus struct {
	mu      sync.Mutex
	streams map[string][]*busStream
}

func NewBus() *Bus {
	return &Bus{streams: make(map[string][]*busStream)}
}

type busStream struct {
	topic  string
	bus    *Bus
	events chan Event
	errs   chan error
	once   sync.Once
}

func (s *busStream) Events() <-chan Event { return s.events }
func (s *busStream) Errs() <-chan error   { return s.errs }

func (s *busStream) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

func (b *Bus) Open(topic string) (Stream, error) {
	s := &busStream{
		topic:  topic,
		bus:    b,
		events: make(chan Event, streamBuffer),
		errs:   make(chan error, 1),
	}
	b.mu.Lock()
	b.streams[topic] = append(b.streams[topic], s)
	b.mu.Unlock()
	return s, nil
}

func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var dead []*busStream
	for _, s := range b.streams[ev.Topic] {
		select {
		case s.events <- ev:
		default:
			log.Printf("changefeed: stream on topic %q overflowed, tearing it down", ev.Topic)
			s.errs <- &domain.TransportError{Topic: ev.Topic, Err: errStreamOverflow}
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		b.removeLocked(s)
	}
}

func (b *Bus) remove(s *busStream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(s)
}

func (b *Bus) removeLocked(s *busStream) {
	streams := b.streams[s.topic]
	for i, cur := range streams {
		if cur == s {
			b.streams[s.topic] = append(streams[:i], streams[i+1:]...)
			return
		}
	}
}
