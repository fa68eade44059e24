/*
Package chat contains the realtime coordination core of Campus Connect.

This file defines Bus, the typed publish/subscribe channel owned by one session. Producers
(connector, simulator) enqueue events; a single Run loop delivers them to the handlers of the
event's type in registration order, so events of one emitter arrive in publish order.
*/
package chat

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"campusconnect/internal/pkg/logx"
)

// DefaultBusBuffer is the queue depth of a session bus.
const DefaultBusBuffer = 256

// eventBarrier is an internal event used by Flush.
const eventBarrier EventType = "__barrier"

// Handler consumes one event. Handlers run on the bus goroutine and must not call Flush.
type Handler func(Event)

// Subscription identifies one registered handler.
type Subscription struct {
	id        uint64
	eventType EventType
}

type subscriber struct {
	id     uint64
	handle Handler
}

// Bus is a per-session event queue with typed subscribers.
type Bus struct {
	// mu protects handlers and nextID.
	mu sync.RWMutex

	// handlers holds the subscribers of each event type in registration order.
	handlers map[EventType][]subscriber

	nextID uint64

	// queue buffers published events until Run delivers them.
	queue chan Event

	// stopChan is closed by Stop; done is closed when Run returns.
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger zerolog.Logger
}

// NewBus creates a bus with the given queue depth. Run must be started for delivery to happen.
func NewBus(buffer int, logger zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBusBuffer
	}

	return &Bus{
		handlers: make(map[EventType][]subscriber),
		queue:    make(chan Event, buffer),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t EventType, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[t] = append(b.handlers[t], subscriber{id: b.nextID, handle: h})

	return Subscription{id: b.nextID, eventType: t}
}

// Unsubscribe removes the handler registered under sub. Unknown or already removed subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			b.handlers[sub.eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish enqueues an event of type t for the current epoch.
// It reports false when the bus is stopped and the event was dropped.
func (b *Bus) Publish(t EventType, payload any) bool {
	return b.PublishEvent(Event{Type: t, Payload: payload})
}

// PublishEvent enqueues evt. It blocks while the queue is full and returns false once the bus is stopped.
func (b *Bus) PublishEvent(evt Event) bool {
	select {
	case <-b.stopChan:
		b.logger.Debug().Str("event", string(evt.Type)).Msg("Bus stopped, event dropped.")
		return false
	default:
	}

	select {
	case b.queue <- evt:
		return true
	case <-b.stopChan:
		b.logger.Debug().Str("event", string(evt.Type)).Msg("Bus stopped, event dropped.")
		return false
	}
}

// TryPublish enqueues an event of type t without blocking. Handlers publishing from the bus
// goroutine must use it; it reports false when the queue is full or the bus is stopped.
func (b *Bus) TryPublish(t EventType, payload any) bool {
	select {
	case <-b.stopChan:
		return false
	default:
	}

	select {
	case b.queue <- Event{Type: t, Payload: payload}:
		return true
	default:
		b.logger.Warn().Str("event", string(t)).Int("queue_len", len(b.queue)).Msg("Bus queue full, event dropped.")
		return false
	}
}

// Run delivers queued events until Stop is called.
func (b *Bus) Run() {
	defer close(b.done)

	for {
		select {
		case evt := <-b.queue:
			select {
			case <-b.stopChan:
				return
			default:
			}
			b.deliver(evt)

		case <-b.stopChan:
			return
		}
	}
}

// Stop terminates Run. Events still queued are discarded. Safe to call more than once.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
}

// Done is closed once Run has returned.
func (b *Bus) Done() <-chan struct{} {
	return b.done
}

// Flush blocks until every event published before the call has been delivered.
// It returns false if the bus stopped first.
func (b *Bus) Flush() bool {
	barrier := make(chan struct{})
	if !b.PublishEvent(Event{Type: eventBarrier, Payload: barrier}) {
		return false
	}

	select {
	case <-barrier:
		return true
	case <-b.done:
		return false
	}
}

// deliver invokes the handlers registered for evt.Type, in order, outside the lock.
func (b *Bus) deliver(evt Event) {
	if evt.Type == eventBarrier {
		close(evt.Payload.(chan struct{}))
		return
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.handlers[evt.Type]))
	copy(subs, b.handlers[evt.Type])
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Debug().Str("event", string(evt.Type)).Msg("No subscribers for event.")
		return
	}

	for _, s := range subs {
		b.invoke(s, evt)
	}
}

// invoke runs one handler; a panicking handler is logged and does not stop delivery to the others.
func (b *Bus) invoke(s subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error(fmt.Errorf("%v", r), "Recovered from panic in event handler",
				"event", string(evt.Type), "subscription", s.id)
		}
	}()

	s.handle(evt)
}
