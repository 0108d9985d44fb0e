// Package broadcast fans session events out to the listeners subscribed to each session topic.
//
// Delivery is best-effort and at-most-once: each subscriber has a bounded buffer, sends never block, and an event
// that does not fit is dropped for that subscriber only. There is no replay; a listener that joins late gets the
// current state from a snapshot instead.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/shared"
)

// DefaultBuffer is the per-subscriber buffer used when none is configured.
const DefaultBuffer = 32

// Kind names an outbound event.
type Kind string

const (
	KindSnapshot Kind = "snapshot" // full session state, applied as a total overwrite
	KindProgress Kind = "progress" // advisory progress delta
)

// Event is one message on a session topic.
type Event struct {
	Kind    Kind   `json:"event"`
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Publisher is the send side of the bus as seen by the playback engine and the scheduler.
type Publisher interface {
	Publish(topic string, kind Kind, payload any) int
}

// Subscriber is one listener's registration on a topic.
type Subscriber struct {
	id     string
	topic  string
	events chan Event
}

// ID identifies the subscriber in logs.
func (s *Subscriber) ID() string { return s.id }

// Topic is the session id the subscriber joined.
func (s *Subscriber) Topic() string { return s.topic }

// Events yields delivered events until the subscription is cancelled, then is closed.
func (s *Subscriber) Events() <-chan Event { return s.events }

// Bus is an in-process topic registry.
type Bus struct {
	mu      sync.RWMutex
	topics  map[string]map[*Subscriber]struct{}
	buffer  int
	dropped atomic.Int64
	logger  *log.Logger
}

// NewBus creates a bus whose subscribers buffer up to buffer events.
func NewBus(buffer int, logger *log.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		topics: make(map[string]map[*Subscriber]struct{}),
		buffer: buffer,
		logger: shared.WithLogger(logger, "component", "bus"),
	}
}

// Subscribe registers a listener on topic. The returned cancel func removes it and closes its channel; it is safe to
// call more than once.
func (b *Bus) Subscribe(topic string) (*Subscriber, func()) {
	sub := &Subscriber{id: shared.GenerateID(), topic: topic, events: make(chan Event, b.buffer)}

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	b.logger.Debug("subscribed", "topic", topic, "subscriber", sub.id)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs, ok := b.topics[topic]
		if !ok {
			return
		}
		if _, ok := subs[sub]; !ok {
			return
		}
		delete(subs, sub)
		close(sub.events)
		if len(subs) == 0 {
			delete(b.topics, topic)
		}
		b.logger.Debug("unsubscribed", "topic", topic, "subscriber", sub.id)
	}

	return sub, cancel
}

// Publish sends an event to every current subscriber of topic and returns how many accepted it.
func (b *Bus) Publish(topic string, kind Kind, payload any) int {
	ev := Event{Kind: kind, Topic: topic, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()

	sent := 0
	for sub := range b.topics[topic] {
		if b.send(sub, ev) {
			sent++
		}
	}
	return sent
}

// Deliver sends an event to a single subscriber, if it is still registered.
func (b *Bus) Deliver(sub *Subscriber, ev Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.topics[sub.topic][sub]; !ok {
		return false
	}
	return b.send(sub, ev)
}

// send must be called with the read lock held so a concurrent cancel cannot close the channel mid-send.
func (b *Bus) send(sub *Subscriber, ev Event) bool {
	select {
	case sub.events <- ev:
		return true
	default:
		b.dropped.Add(1)
		b.logger.Debug("subscriber full, dropping event", "topic", ev.Topic, "event", ev.Kind, "subscriber", sub.id)
		return false
	}
}

// Count returns the number of subscribers on topic.
func (b *Bus) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Topics returns every topic with at least one subscriber.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]string, 0, len(b.topics))
	for topic := range b.topics {
		topics = append(topics, topic)
	}
	return topics
}

// Dropped returns how many events were discarded because a subscriber's buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
