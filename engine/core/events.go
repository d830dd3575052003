package core

import "sync"

type EventCode int

const (
	// EventQuit shuts the application down on the next frame.
	EventQuit EventCode = iota + 1
	// EventKeyPressed carries Key.
	EventKeyPressed
	// EventKeyReleased carries Key.
	EventKeyReleased
	// EventResized carries the new framebuffer Width and Height.
	EventResized
	// EventAssetChanged carries the Path of a file that changed on disk.
	EventAssetChanged
)

func (c EventCode) String() string {
	switch c {
	case EventQuit:
		return "quit"
	case EventKeyPressed:
		return "key-pressed"
	case EventKeyReleased:
		return "key-released"
	case EventResized:
		return "resized"
	case EventAssetChanged:
		return "asset-changed"
	default:
		return "unknown"
	}
}

// Event is the payload of a fired event. Only the fields relevant to Code
// are set.
type Event struct {
	Code   EventCode
	Key    KeyCode
	Width  uint32
	Height uint32
	Path   string
}

// EventHandler returns true when it handled the event, which stops it
// from reaching handlers registered after it.
type EventHandler func(e Event) bool

// EventBus queues events from any goroutine and delivers them on the
// goroutine that calls Dispatch.
type EventBus struct {
	mu       sync.Mutex
	handlers map[EventCode][]EventHandler
	queue    []Event
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[EventCode][]EventHandler)}
}

func (b *EventBus) Register(code EventCode, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[code] = append(b.handlers[code], h)
}

// Fire queues e for the next Dispatch.
func (b *EventBus) Fire(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, e)
}

// Dispatch delivers every queued event in order and returns how many were
// delivered. Events fired by handlers wait for the next call.
func (b *EventBus) Dispatch() int {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, e := range queue {
		b.mu.Lock()
		handlers := b.handlers[e.Code]
		b.mu.Unlock()
		for _, h := range handlers {
			if h(e) {
				break
			}
		}
	}
	return len(queue)
}

// Pending returns the number of queued events.
func (b *EventBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
