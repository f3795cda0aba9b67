// Package stream fans decoded packets out to live subscribers.
package stream

import (
	"context"
	"time"

	"github.com/danmuck/meshdecode/internal/observability"
	"github.com/danmuck/meshdecode/internal/protocol"
)

// Event is one decoded line as seen by subscribers.
type Event struct {
	Time   time.Time        `json:"ts"`
	Source string           `json:"source"`
	Hex    string           `json:"hex"`
	Packet *protocol.Packet `json:"packet"`
}

// Hub broadcasts events to subscriber channels. A subscriber that falls behind
// misses events rather than stalling the publisher, so the hub only feeds live
// viewers; records that must be complete go through ingest sinks.
type Hub struct {
	broadcast  chan Event
	register   chan chan Event
	unregister chan chan Event
	clients    map[chan Event]struct{}
	clientBuf  int
	done       chan struct{}
}

type Option func(*Hub)

func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan Event, size)
		}
	}
}

func WithClientBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		broadcast:  make(chan Event, 256),
		register:   make(chan chan Event),
		unregister: make(chan chan Event),
		clients:    make(map[chan Event]struct{}),
		clientBuf:  64,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the subscriber set until ctx ends, then closes every subscriber
// channel. It must be called exactly once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.drain()
			for ch := range h.clients {
				close(ch)
			}
			observability.SetStreamClients(0)
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
			observability.SetStreamClients(len(h.clients))
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
				observability.SetStreamClients(len(h.clients))
			}
		case ev := <-h.broadcast:
			h.fanout(ev)
		}
	}
}

// drain delivers whatever was published before shutdown.
func (h *Hub) drain() {
	for {
		select {
		case ev := <-h.broadcast:
			h.fanout(ev)
		default:
			return
		}
	}
}

func (h *Hub) fanout(ev Event) {
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Subscribe() chan Event {
	return h.SubscribeWithBuffer(h.clientBuf)
}

// SubscribeWithBuffer returns a closed channel once the hub has stopped.
func (h *Hub) SubscribeWithBuffer(size int) chan Event {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan Event, size)
	select {
	case h.register <- ch:
	case <-h.done:
		close(ch)
	}
	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	select {
	case h.unregister <- ch:
	case <-h.done:
	}
}

// Publish queues ev for broadcast. It blocks only while the broadcast buffer
// is full and returns false once the hub has stopped.
func (h *Hub) Publish(ev Event) bool {
	select {
	case h.broadcast <- ev:
		return true
	case <-h.done:
		return false
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
