// Package broadcaster implements the subscriber-facing TCP fan-out: a single
// listener accepts subscriber connections, and each normalized tick is
// pushed to every subscriber under one lock, gated by that subscriber's
// token bucket.
package broadcaster

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/ratelimit"
	"github.com/adred-codev/tickflow/internal/tick"
)

// sendDeadline bounds how long a per-subscriber write may block. Go's net.Conn
// has no MSG_DONTWAIT equivalent; a short write deadline is the idiomatic
// substitute for a non-blocking send that fails fast on a stalled peer.
const sendDeadline = 5 * time.Millisecond

// Config controls rate-limit defaults applied to every accepted subscriber.
type Config struct {
	ListenAddr    string
	RateLimit     float64 // tokens/sec refill
	BurstSize     float64 // bucket capacity
	MaxFrameSize  uint32
}

// subscriber is one connected client: its raw connection plus its rate limiter.
type subscriber struct {
	id     string
	conn   net.Conn
	bucket *ratelimit.TokenBucket
}

// deltaMessage is the JSON shape of one streamed tick, per the subscriber wire protocol.
type deltaMessage struct {
	Type string    `json:"type"`
	Tick tickJSON  `json:"tick"`
}

type tickJSON struct {
	TimestampMs uint64  `json:"timestamp_ms"`
	FeedID      uint32  `json:"feed_id"`
	SeqID       uint64  `json:"seq_id"`
	Price       float64 `json:"price"`
	Size        uint64  `json:"size"`
	Flags       uint8   `json:"flags"`
}

const welcomeLine = `{"type":"snapshot","note":"welcome"}` + "\n"

// Broadcaster owns the subscriber table and the listener accepting new connections.
type Broadcaster struct {
	cfg    Config
	logger zerolog.Logger

	listener net.Listener

	mu   sync.Mutex
	subs map[string]*subscriber

	onSubscriberDropped func(reason string)
	onTickSent          func()
	onTickDropped       func()

	wg sync.WaitGroup
}

// New constructs a Broadcaster bound to no listener yet; call Start to accept.
func New(cfg Config, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]*subscriber),
	}
}

// SetHooks wires optional metrics callbacks. All are nil-safe no-ops by default.
func (b *Broadcaster) SetHooks(onDropped func(reason string), onSent func(), onTickDropped func()) {
	b.onSubscriberDropped = onDropped
	b.onTickSent = onSent
	b.onTickDropped = onTickDropped
}

// Start binds the listener and begins accepting subscriber connections.
// Returns an error on bind/listen failure; callers in the standalone binary
// map that to the documented exit codes.
func (b *Broadcaster) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("broadcaster: listen on %s: %w", b.cfg.ListenAddr, err)
	}
	b.listener = ln

	b.wg.Add(1)
	go b.acceptLoop(ctx)
	return nil
}

// Stop closes the listener and every subscriber connection, then waits for
// the accept loop and the per-subscriber reader goroutines to exit.
func (b *Broadcaster) Stop() {
	if b.listener != nil {
		b.listener.Close()
	}

	b.mu.Lock()
	for id, s := range b.subs {
		s.conn.Close()
		delete(b.subs, id)
	}
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Broadcaster) acceptLoop(ctx context.Context) {
	defer b.wg.Done()

	for {
		conn, err := b.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("broadcaster accept failed")
			continue
		}

		b.wg.Add(1)
		go b.handleConnection(conn)
	}
}

// handleConnection performs the one-shot subscribe handshake, sends the
// welcome line, registers the subscriber, then blocks solely to detect
// peer-close — it never reads application data after the handshake.
func (b *Broadcaster) handleConnection(conn net.Conn) {
	defer b.wg.Done()

	typ, payload, err := tick.ReadFrame(conn, b.cfg.MaxFrameSize)
	if err != nil {
		b.logger.Debug().Err(err).Msg("broadcaster: handshake read failed")
		conn.Close()
		return
	}
	if typ != tick.TypeSubscribe {
		b.logger.Debug().Uint8("type", typ).Msg("broadcaster: unexpected handshake frame type")
		conn.Close()
		return
	}

	clientID := extractClientID(payload)

	if _, err := conn.Write([]byte(welcomeLine)); err != nil {
		conn.Close()
		return
	}

	sub := &subscriber{
		id:     fmt.Sprintf("%s#%s", conn.RemoteAddr(), clientID),
		conn:   conn,
		bucket: ratelimit.New(b.cfg.BurstSize, b.cfg.RateLimit),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.waitForPeerClose(sub)
}

// waitForPeerClose is the reader goroutine's sole job: detect when the peer
// closes the connection (or the read fails) so the subscriber can be
// removed. Any bytes a subscriber sends after the handshake are discarded.
func (b *Broadcaster) waitForPeerClose(sub *subscriber) {
	r := bufio.NewReader(sub.conn)
	buf := make([]byte, 1)
	for {
		_, err := r.Read(buf)
		if err != nil {
			b.removeSubscriber(sub.id, "closed")
			return
		}
	}
}

func (b *Broadcaster) removeSubscriber(id string, reason string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if ok {
		sub.conn.Close()
		if b.onSubscriberDropped != nil {
			b.onSubscriberDropped(reason)
		}
	}
}

func extractClientID(payload []byte) string {
	var hs struct {
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(payload, &hs); err != nil || hs.ClientID == "" {
		return "anonymous"
	}
	return hs.ClientID
}

// Emit implements sink.Sink: it fans t out to every subscriber under a
// single lock held for the full pass, per the rate-limited, non-queueing,
// drop-on-failure policy.
func (b *Broadcaster) Emit(t tick.Tick) {
	line, err := json.Marshal(deltaMessage{
		Type: "delta",
		Tick: tickJSON{
			TimestampMs: t.TimestampMs,
			FeedID:      t.FeedID,
			SeqID:       t.SeqID,
			Price:       t.Price,
			Size:        t.Size,
			Flags:       t.Flags,
		},
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("broadcaster: failed to marshal delta")
		return
	}
	line = append(line, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		if !sub.bucket.TryConsume(1) {
			if b.onTickDropped != nil {
				b.onTickDropped()
			}
			continue
		}

		sub.conn.SetWriteDeadline(time.Now().Add(sendDeadline))
		if _, err := sub.conn.Write(line); err != nil {
			sub.conn.Close()
			delete(b.subs, id)
			if b.onSubscriberDropped != nil {
				b.onSubscriberDropped("send_error")
			}
			continue
		}
		if b.onTickSent != nil {
			b.onTickSent()
		}
	}
}

// SubscriberCount returns the number of currently registered subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
