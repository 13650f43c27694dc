// Package ingest runs the feed-facing TCP listener: one connection per
// upstream feed, each decoding a stream of framed ticks and pushing them
// into the normalizer.
package ingest

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/adred-codev/tickflow/internal/tick"
)

// Sink is the subset of normalizer.Normalizer the ingest listener needs.
type Sink interface {
	PushRaw(t tick.Tick)
}

// Hooks are optional metrics callbacks, all nil-safe.
type Hooks struct {
	OnConnected    func()
	OnDisconnected func()
	OnTickIngested func()
	OnDecodeError  func()
	OnAcceptError  func()
}

// Config controls the ingest listener.
type Config struct {
	ListenAddr   string
	MaxFrameSize uint32
	// AcceptBackoffRate/Burst throttle retries after a failing Accept, so a
	// persistently broken listener backs off instead of busy-spinning.
	AcceptBackoffRate  float64
	AcceptBackoffBurst int
}

// Listener accepts feed connections and dispatches decoded ticks to a Sink.
type Listener struct {
	cfg    Config
	sink   Sink
	logger zerolog.Logger
	hooks  Hooks

	listener net.Listener
	wg       sync.WaitGroup
}

// New constructs a Listener. Start binds it.
func New(cfg Config, sink Sink, logger zerolog.Logger, hooks Hooks) *Listener {
	return &Listener{cfg: cfg, sink: sink, logger: logger, hooks: hooks}
}

// Start binds the listener and begins accepting feed connections.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddr)
	if err != nil {
		return err
	}
	l.listener = ln

	l.wg.Add(1)
	go l.acceptLoop(ctx)
	return nil
}

// Stop closes the listener and waits for the accept loop and any in-flight
// feed readers to exit.
func (l *Listener) Stop() {
	if l.listener != nil {
		l.listener.Close()
	}
	l.wg.Wait()
}

func (l *Listener) acceptLoop(ctx context.Context) {
	defer l.wg.Done()

	backoffRate := l.cfg.AcceptBackoffRate
	if backoffRate <= 0 {
		backoffRate = 10
	}
	backoffBurst := l.cfg.AcceptBackoffBurst
	if backoffBurst <= 0 {
		backoffBurst = 5
	}
	limiter := rate.NewLimiter(rate.Limit(backoffRate), backoffBurst)

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if l.hooks.OnAcceptError != nil {
				l.hooks.OnAcceptError()
			}
			l.logger.Error().Err(err).Msg("ingest accept failed, backing off")
			_ = limiter.Wait(ctx)
			continue
		}

		if l.hooks.OnConnected != nil {
			l.hooks.OnConnected()
		}
		l.wg.Add(1)
		go l.handleFeed(conn)
	}
}

func (l *Listener) handleFeed(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()
	defer func() {
		if l.hooks.OnDisconnected != nil {
			l.hooks.OnDisconnected()
		}
	}()

	for {
		typ, payload, err := tick.ReadFrame(conn, l.cfg.MaxFrameSize)
		if err != nil {
			l.logger.Debug().Err(err).Msg("ingest: feed connection closed")
			return
		}
		if typ != tick.TypeTick {
			l.logger.Debug().Uint8("type", typ).Msg("ingest: unexpected frame type, ignoring")
			continue
		}

		t, err := tick.Unpack(payload)
		if err != nil {
			if l.hooks.OnDecodeError != nil {
				l.hooks.OnDecodeError()
			}
			l.logger.Debug().Err(err).Msg("ingest: decode failed, closing feed connection")
			return
		}

		if l.hooks.OnTickIngested != nil {
			l.hooks.OnTickIngested()
		}
		l.sink.PushRaw(t)
	}
}
