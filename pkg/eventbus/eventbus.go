package eventbus

import (
	"reflect"
	"sync"
)

// Handler is a function that handles an event.
type Handler func(event interface{})

// EventBus provides in-process pub/sub between the domain services and the
// outbound publishers (NATS, RabbitMQ). Subscriptions are keyed by the
// concrete event type; pointer and value forms of the same event are
// treated as one type.
type EventBus struct {
	handlers map[reflect.Type][]Handler
	mu       sync.RWMutex
}

// New creates a new EventBus.
func New() *EventBus {
	return &EventBus{
		handlers: make(map[reflect.Type][]Handler),
	}
}

func normalize(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Subscribe registers a handler for a specific event type. The eventType
// argument is a zero value of the event, e.g. Subscribe(ReleasedEvent{}, fn).
func (e *EventBus) Subscribe(eventType interface{}, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := normalize(eventType)
	e.handlers[t] = append(e.handlers[t], handler)
}

// Publish delivers the event to all subscribers, each on its own goroutine.
func (e *EventBus) Publish(event interface{}) {
	e.mu.RLock()
	handlers := e.handlers[normalize(event)]
	e.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}
}

// PublishSync delivers the event to all subscribers on the calling goroutine.
func (e *EventBus) PublishSync(event interface{}) {
	e.mu.RLock()
	handlers := e.handlers[normalize(event)]
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// HasSubscribers returns true if there are subscribers for the event type.
func (e *EventBus) HasSubscribers(eventType interface{}) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.handlers[normalize(eventType)]) > 0
}

// SubscriberCount returns the number of subscribers for an event type.
func (e *EventBus) SubscriberCount(eventType interface{}) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.handlers[normalize(eventType)])
}
