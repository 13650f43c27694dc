// Package natsbridge implements a sink.Sink that republishes normalized
// ticks onto NATS subjects, one subject per feed, for downstream consumers
// that want the stream without holding a raw TCP subscriber connection.
package natsbridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/tick"
)

// Hooks are optional metrics callbacks, all nil-safe.
type Hooks struct {
	OnConnected    func()
	OnDisconnected func()
	OnReconnected  func()
	OnError        func()
	OnPublished    func()
}

// Config controls the NATS connection.
type Config struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
	MaxPingsOut     int
	PingInterval    time.Duration

	// SubjectPrefix is prepended to "<feed_id>" to form the publish subject,
	// e.g. prefix "ticks" publishes feed 7 to "ticks.7".
	SubjectPrefix string
}

// Sink publishes each emitted tick to "<SubjectPrefix>.<feed_id>" as JSON.
// It implements sink.Sink and is wired into the normalizer's fan-out list
// only when Config.URL is non-empty.
type Sink struct {
	cfg    Config
	conn   *nats.Conn
	logger zerolog.Logger
	hooks  Hooks
}

// wireTick is the JSON shape published on the wire; field names are
// deliberately snake_case to match the subscriber-facing delta format.
type wireTick struct {
	TimestampMs uint64  `json:"timestamp_ms"`
	FeedID      uint32  `json:"feed_id"`
	SeqID       uint64  `json:"seq_id"`
	Price       float64 `json:"price"`
	Size        uint64  `json:"size"`
	Flags       uint8   `json:"flags"`
}

// New connects to NATS and returns a ready Sink. Connection event handlers
// keep the Hooks callbacks (and therefore Prometheus metrics) in sync with
// actual link state.
func New(cfg Config, logger zerolog.Logger, hooks Hooks) (*Sink, error) {
	s := &Sink{cfg: cfg, logger: logger, hooks: hooks}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(cfg.ReconnectJitter, cfg.ReconnectJitter),
		nats.MaxPingsOutstanding(cfg.MaxPingsOut),
		nats.PingInterval(cfg.PingInterval),
		nats.ConnectHandler(s.onConnect),
		nats.DisconnectErrHandler(s.onDisconnect),
		nats.ReconnectHandler(s.onReconnect),
		nats.ErrorHandler(s.onError),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("natsbridge: connect %s: %w", cfg.URL, err)
	}
	s.conn = conn
	return s, nil
}

func (s *Sink) onConnect(conn *nats.Conn) {
	s.logger.Info().Str("url", conn.ConnectedUrl()).Msg("natsbridge: connected")
	if s.hooks.OnConnected != nil {
		s.hooks.OnConnected()
	}
}

func (s *Sink) onDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		s.logger.Warn().Err(err).Msg("natsbridge: disconnected with error")
	} else {
		s.logger.Warn().Msg("natsbridge: disconnected")
	}
	if s.hooks.OnDisconnected != nil {
		s.hooks.OnDisconnected()
	}
}

func (s *Sink) onReconnect(conn *nats.Conn) {
	s.logger.Info().Str("url", conn.ConnectedUrl()).Msg("natsbridge: reconnected")
	if s.hooks.OnReconnected != nil {
		s.hooks.OnReconnected()
	}
}

func (s *Sink) onError(_ *nats.Conn, _ *nats.Subscription, err error) {
	s.logger.Error().Err(err).Msg("natsbridge: error")
	if s.hooks.OnError != nil {
		s.hooks.OnError()
	}
}

// subject returns the publish subject for a feed ID.
func (s *Sink) subject(feedID uint32) string {
	return fmt.Sprintf("%s.%d", s.cfg.SubjectPrefix, feedID)
}

// Emit implements sink.Sink. Publish errors are logged and surfaced via
// Hooks.OnError; they never block or panic the normalizer's drain pass.
func (s *Sink) Emit(t tick.Tick) {
	w := wireTick{
		TimestampMs: t.TimestampMs,
		FeedID:      t.FeedID,
		SeqID:       t.SeqID,
		Price:       t.Price,
		Size:        t.Size,
		Flags:       t.Flags,
	}

	data, err := json.Marshal(w)
	if err != nil {
		s.logger.Error().Err(err).Msg("natsbridge: marshal failed")
		if s.hooks.OnError != nil {
			s.hooks.OnError()
		}
		return
	}

	if err := s.conn.Publish(s.subject(t.FeedID), data); err != nil {
		s.logger.Error().Err(err).Msg("natsbridge: publish failed")
		if s.hooks.OnError != nil {
			s.hooks.OnError()
		}
		return
	}
	if s.hooks.OnPublished != nil {
		s.hooks.OnPublished()
	}
}

// IsConnected reports whether the underlying NATS connection is up.
func (s *Sink) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Close closes the underlying NATS connection without draining it.
func (s *Sink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
