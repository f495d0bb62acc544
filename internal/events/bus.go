// Package events carries accepted webhook alerts to the per-team relays.
package events

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/valentinpelus/alertdesk/pkg/types"
)

// DefaultBuffer is the per-subscriber queue length
const DefaultBuffer = 64

// Subscription is one subscriber's view of the bus
type Subscription struct {
	key    string
	ch     chan types.Alert
	bus    *Bus
	closed bool
}

// Alerts returns the channel alerts are delivered on. It is closed on Cancel
// or when another subscriber takes over the same key.
func (s *Subscription) Alerts() <-chan types.Alert {
	return s.ch
}

// Cancel removes the subscription from the bus
func (s *Subscription) Cancel() {
	s.bus.remove(s)
}

// Bus fans alerts out to an explicit list of subscribers
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*Subscription
	onDrop      func(key string)
}

// NewBus creates an empty bus. onDrop, if set, is called for each alert a full subscriber misses.
func NewBus(onDrop func(key string)) *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscription),
		onDrop:      onDrop,
	}
}

// Subscribe registers a subscriber under key, replacing any previous subscriber with that key
func (b *Bus) Subscribe(key string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		key: key,
		ch:  make(chan types.Alert, buffer),
		bus: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[key]; ok {
		old.close()
	}
	b.subscribers[key] = sub

	return sub
}

// Publish delivers alert to every subscriber without blocking and returns the number of deliveries
func (b *Bus) Publish(alert types.Alert) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for key, sub := range b.subscribers {
		select {
		case sub.ch <- alert:
			delivered++
		default:
			log.WithFields(log.Fields{"subscriber": key, "alert_id": alert.ID}).Warn("Alert queue full, dropping alert")
			if b.onDrop != nil {
				b.onDrop(key)
			}
		}
	}
	return delivered
}

// Len returns the number of subscribers
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.subscribers[sub.key]; ok && cur == sub {
		delete(b.subscribers, sub.key)
	}
	sub.close()
}

// close must be called with b.mu held
func (s *Subscription) close() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
