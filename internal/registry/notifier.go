package registry

import (
	"sync"
	"time"
)

// Reason describes what changed in a rules-changed event
type Reason string

const (
	ReasonSubscriptions Reason = "subscriptions"
	ReasonCategories    Reason = "categories"
	ReasonRules         Reason = "rules"
	ReasonInvalidated   Reason = "invalidated"
)

// Event signals that the composed rule set may differ from the last one published
type Event struct {
	Reason Reason    `json:"reason"`
	At     time.Time `json:"at"`
}

// Notifier fans rules-changed events out to every subscriber
type Notifier struct {
	sync.RWMutex
	clients map[chan Event]bool
}

// NewNotifier creates a notifier with no subscribers
func NewNotifier() *Notifier {
	return &Notifier{clients: make(map[chan Event]bool)}
}

func (n *Notifier) Subscribe() chan Event {
	n.Lock()
	defer n.Unlock()

	ch := make(chan Event, 10)
	n.clients[ch] = true
	return ch
}

func (n *Notifier) Unsubscribe(ch chan Event) {
	n.Lock()
	defer n.Unlock()

	if _, ok := n.clients[ch]; !ok {
		return
	}
	delete(n.clients, ch)
	close(ch)
}

// Notify sends without blocking; slow subscribers miss events.
func (n *Notifier) Notify(reason Reason) {
	n.RLock()
	defer n.RUnlock()

	ev := Event{Reason: reason, At: time.Now().UTC()}
	for ch := range n.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}
