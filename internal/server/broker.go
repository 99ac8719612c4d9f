package server

import (
	"encoding/json"
	"sync"

	"github.com/GoQuestly/backend-sub000/internal/session"
)

// Broker is an in-process pub/sub for SSE events, keyed by channel name
// (organizer or participant channels from the session package).
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events published to
// the named channel.
func (b *Broker) Subscribe(channel string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber from the named channel.
func (b *Broker) Unsubscribe(channel string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[channel], ch)
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the named channel. Implements
// session.EventSink; delivery is best-effort.
func (b *Broker) Publish(channel string, event session.Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[channel] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
