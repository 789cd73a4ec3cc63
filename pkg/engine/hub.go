// Package engine fans decoded observations out to any number of sinks
// (CSV writer, live bridge, terminal view).
package engine

import (
	"context"

	"tc2100/pkg/observation"
)

type Hub struct {
	broadcast  chan observation.Observation
	register   chan chan observation.Observation
	unregister chan chan observation.Observation
	clients    map[chan observation.Observation]struct{}
	clientBuf  int
}

type Option func(*Hub)

func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan observation.Observation, size)
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
		broadcast:  make(chan observation.Observation, 64),
		register:   make(chan chan observation.Observation),
		unregister: make(chan chan observation.Observation),
		clients:    make(map[chan observation.Observation]struct{}),
		clientBuf:  16,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for ch := range h.clients {
				close(ch)
			}
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case obs := <-h.broadcast:
			// A slow sink drops readings rather than stalling the serial
			// pipeline.
			for ch := range h.clients {
				select {
				case ch <- obs:
				default:
				}
			}
		}
	}
}

func (h *Hub) Subscribe() chan observation.Observation {
	return h.SubscribeWithBuffer(h.clientBuf)
}

func (h *Hub) SubscribeWithBuffer(size int) chan observation.Observation {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan observation.Observation, size)
	h.register <- ch
	return ch
}

func (h *Hub) Unsubscribe(ch chan observation.Observation) {
	h.unregister <- ch
}

func (h *Hub) Publish(obs observation.Observation) {
	h.broadcast <- obs
}
