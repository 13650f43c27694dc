// Package wsbridge bridges the normalized tick stream to WebSocket clients,
// for consumers that want the subscriber feed over ws:// instead of the raw
// TCP delta protocol the broadcaster package speaks.
package wsbridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/tick"
)

// Hooks are optional metrics callbacks, all nil-safe.
type Hooks struct {
	OnConnected    func()
	OnDisconnected func(reason string)
	OnSent         func()
}

// Hub maintains the set of connected WebSocket clients and fans each
// normalized tick out to all of them.
type Hub struct {
	logger zerolog.Logger
	hooks  Hooks

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// wireTick mirrors natsbridge's delta shape so both bridges emit the same
// JSON a subscriber would recognize.
type wireTick struct {
	TimestampMs uint64  `json:"timestamp_ms"`
	FeedID      uint32  `json:"feed_id"`
	SeqID       uint64  `json:"seq_id"`
	Price       float64 `json:"price"`
	Size        uint64  `json:"size"`
	Flags       uint8   `json:"flags"`
}

// NewHub constructs a Hub. Run must be started before clients register.
func NewHub(logger zerolog.Logger, hooks Hooks) *Hub {
	return &Hub{
		logger:     logger,
		hooks:      hooks,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan []byte, 1024),
		clients:    make(map[*Client]struct{}),
	}
}

// Run processes register/unregister/broadcast events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*Client]struct{})
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			if h.hooks.OnConnected != nil {
				h.hooks.OnConnected()
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client's send buffer is full; drop the connection rather
					// than block the fan-out or grow memory without bound.
					go h.forceDisconnect(c, "send_buffer_full")
				}
			}
			h.mu.RUnlock()
			if h.hooks.OnSent != nil {
				h.hooks.OnSent()
			}
		}
	}
}

func (h *Hub) forceDisconnect(c *Client, reason string) {
	h.unregister <- c
	if h.hooks.OnDisconnected != nil {
		h.hooks.OnDisconnected(reason)
	}
}

// Emit implements sink.Sink: marshal the tick and hand it to the broadcast
// loop. Emit never blocks the normalizer's drain pass; a full broadcast
// channel drops the tick for this sink only.
func (h *Hub) Emit(t tick.Tick) {
	data, err := json.Marshal(wireTick{
		TimestampMs: t.TimestampMs,
		FeedID:      t.FeedID,
		SeqID:       t.SeqID,
		Price:       t.Price,
		Size:        t.Size,
		Flags:       t.Flags,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("wsbridge: marshal failed")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Msg("wsbridge: broadcast channel full, dropping tick")
	}
}

// BroadcastRaw hands already-encoded bytes straight to the broadcast loop,
// for callers bridging an upstream JSON stream that needs no re-marshaling
// (the standalone wsbridge CLI, which re-sends lines read from a tickflow
// subscriber connection verbatim).
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Msg("wsbridge: broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of currently connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
