// Package realtime streams hub events to browsers over Server-Sent Events.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"homehub/events"
	"homehub/logger"
)

type message struct {
	event string
	data  []byte
}

// Broker handles Server-Sent Events (SSE) clients and broadcasting. It
// implements events.Publisher.
type Broker struct {
	clients    map[chan message]bool
	register   chan chan message
	unregister chan chan message
	broadcast  chan message
	done       chan struct{}
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewBroker creates a new SSE broker
func NewBroker(log *logger.Logger) *Broker {
	return &Broker{
		clients:    make(map[chan message]bool),
		register:   make(chan chan message),
		unregister: make(chan chan message),
		broadcast:  make(chan message, 1000),
		done:       make(chan struct{}),
		log:        logger.OrNop(log),
	}
}

// Run starts the broker loop and blocks until ctx is done. Connected
// clients are closed on exit.
func (b *Broker) Run(ctx context.Context) error {
	defer func() {
		b.mu.Lock()
		for client := range b.clients {
			delete(b.clients, client)
			close(client)
		}
		b.mu.Unlock()
		close(b.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			total := len(b.clients)
			b.mu.Unlock()
			b.log.Info("📡 SSE client connected", "total", total)

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			total := len(b.clients)
			b.mu.Unlock()
			b.log.Info("📡 SSE client disconnected", "total", total)

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					// slow client, drop
				}
			}
			b.mu.RUnlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := make(chan message, 10)
	select {
	case b.register <- clientChan:
	case <-b.done:
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			select {
			case b.unregister <- clientChan:
			case <-b.done:
			}
			return
		case msg, ok := <-clientChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.event, msg.data)
			flusher.Flush()
		}
	}
}

// Broadcast sends a message to all connected clients. It never blocks;
// messages are dropped when the buffer is full.
func (b *Broker) Broadcast(event string, payload interface{}) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("⚠️  Failed to marshal broadcast message", "event", event, "error", err)
		return
	}

	select {
	case b.broadcast <- message{event: event, data: jsonBytes}:
	default:
	}
}

// Publish implements events.Publisher
func (b *Broker) Publish(_ context.Context, ev events.Event) {
	b.Broadcast(ev.Type, ev)
}
