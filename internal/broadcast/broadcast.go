// Package broadcast fans owner events out to every listening observer.
// Delivery is fire-and-forget: a subscriber whose buffer is full misses the
// event and is expected to catch up by re-reading the store.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// Action names carried in Event.Action.
const (
	ActionTimerUpdate  = "timerUpdate"
	ActionTimerReset   = "timerReset"
	ActionNotification = "notification"
)

// Event is one pushed message. The JSON shape is the wire format of the
// websocket events endpoint.
type Event struct {
	Action      string `json:"action"`
	ElapsedTime int64  `json:"elapsedTime,omitempty"`
	Title       string `json:"title,omitempty"`
	Message     string `json:"message,omitempty"`
}

// TimerUpdate builds a timerUpdate event for elapsedMs.
func TimerUpdate(elapsedMs int64) Event {
	return Event{Action: ActionTimerUpdate, ElapsedTime: elapsedMs}
}

// TimerReset builds a timerReset event.
func TimerReset() Event {
	return Event{Action: ActionTimerReset}
}

// Notification builds a notification event.
func Notification(title, message string) Event {
	return Event{Action: ActionNotification, Title: title, Message: message}
}

// Broadcaster holds the set of live subscriptions.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]chan Event
	closed bool
}

// New returns an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subs: make(map[string]chan Event)}
}

// Subscribe registers a new observer channel. The returned func removes the
// subscription and closes the channel; calling it more than once is safe.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := uuid.New().String()
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() { b.unsubscribe(id) }
}

func (b *Broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish offers e to every subscriber without blocking and returns how many
// accepted it.
func (b *Broadcaster) Publish(e Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- e:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers reports the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already-closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
