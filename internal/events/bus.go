package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Each subscriber is served from its own queue, so Emit never waits on a
// slow consumer.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Emit publishes an event to all subscribers of its type.
func (b *Bus) Emit(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case ConfigDataEvent:
		event.Publish(b.dispatcher, e)
	case LoadingMessageEvent:
		event.Publish(b.dispatcher, e)
	case StatusEvent:
		event.Publish(b.dispatcher, e)
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	case WindowEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a typed handler; the handler's parameter type selects
// the events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e StatusEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ConfigDataEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LoadingMessageEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StatusEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(WindowEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

// SubscribeAll delivers every event type to handler.
func (b *Bus) SubscribeAll(handler func(Event)) func() {
	unsubs := []func(){
		event.Subscribe(b.dispatcher, func(e ConfigDataEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e LoadingMessageEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e StatusEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e StateChangedEvent) { handler(e) }),
		event.Subscribe(b.dispatcher, func(e WindowEvent) { handler(e) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// SubscribeToChannel bridges a typed subscription to a channel. Events are
// dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- Event) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
