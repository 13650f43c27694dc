// Package server wires the ingest listener, normalizer, broadcaster, and
// satellite sinks into one process and owns its startup/shutdown sequence.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/admin"
	"github.com/adred-codev/tickflow/internal/broadcaster"
	"github.com/adred-codev/tickflow/internal/config"
	"github.com/adred-codev/tickflow/internal/ingest"
	"github.com/adred-codev/tickflow/internal/metrics"
	"github.com/adred-codev/tickflow/internal/natsbridge"
	"github.com/adred-codev/tickflow/internal/normalizer"
	"github.com/adred-codev/tickflow/internal/persistence"
	"github.com/adred-codev/tickflow/internal/sink"
	"github.com/adred-codev/tickflow/internal/tick"
	"github.com/adred-codev/tickflow/internal/wsbridge"
)

// Server owns every long-lived component of the tickflow pipeline.
type Server struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics

	normalizer *normalizer.Normalizer
	ingest     *ingest.Listener
	broadcast  *broadcaster.Broadcaster
	wsHub      *wsbridge.Hub
	admin      *admin.Server
	persist    *persistence.CSVSink
	nats       *natsbridge.Sink

	sysCollector *metrics.SystemCollector

	wsCancel context.CancelFunc
	errCh    chan error
}

// New constructs every component and wires the normalizer's sink fan-out.
// Nothing is listening yet; call Start.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	m := metrics.New()

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		errCh:   make(chan error, 8),
	}

	s.broadcast = broadcaster.New(broadcaster.Config{
		ListenAddr:   cfg.SubscriberAddr,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		MaxFrameSize: cfg.MaxFrameSize,
	}, logger)
	s.broadcast.SetHooks(m.SubscriberDropped, m.DeltaSent, m.DeltaDroppedByRate)

	persist, err := persistence.NewCSVSink(cfg.LogPath, m.PersistedRow, m.PersistenceError)
	if err != nil {
		return nil, fmt.Errorf("server: open persistence log: %w", err)
	}
	s.persist = persist

	s.wsHub = wsbridge.NewHub(logger, wsbridge.Hooks{})

	fanout := sink.Fanout{s.broadcast, sink.Func(s.persist.Emit), s.wsHub}

	if cfg.NATSUrl != "" {
		n, err := natsbridge.New(natsbridge.Config{
			URL:             cfg.NATSUrl,
			MaxReconnects:   cfg.NATSMaxReconnects,
			ReconnectWait:   cfg.NATSReconnectWait,
			ReconnectJitter: cfg.NATSReconnectJitter,
			MaxPingsOut:     cfg.NATSMaxPingsOut,
			PingInterval:    cfg.NATSPingInterval,
			SubjectPrefix:   cfg.NATSSubjectPrefix,
		}, logger, natsbridge.Hooks{
			OnConnected:    func() { m.SetNATSConnected(true) },
			OnDisconnected: func() { m.SetNATSConnected(false) },
			OnReconnected:  func() { m.SetNATSConnected(true) },
			OnPublished:    m.NATSPublished,
		})
		if err != nil {
			logger.Error().Err(err).Msg("server: nats connect failed, NATS sink disabled")
		} else {
			s.nats = n
			fanout = append(fanout, n)
		}
	}

	s.normalizer = normalizer.New(normalizer.Config{
		WindowMs:        cfg.WindowMs,
		SmoothingWindow: cfg.SmoothingWindow,
	}, wrapWithEmitMetrics(fanout, m), logger)

	s.ingest = ingest.New(ingest.Config{
		ListenAddr:         cfg.IngestAddr,
		MaxFrameSize:       cfg.MaxFrameSize,
		AcceptBackoffRate:  cfg.AcceptBackoffRate,
		AcceptBackoffBurst: cfg.AcceptBackoffBurst,
	}, s.normalizer, logger, ingest.Hooks{
		OnConnected:    m.FeedConnected,
		OnDisconnected: m.FeedDisconnected,
		OnTickIngested: m.TickIngested,
		OnDecodeError:  m.TickDecodeError,
		OnAcceptError:  m.AcceptError,
	})

	s.admin = admin.New(cfg.AdminAddr, s.normalizer, s.broadcast, logger)
	s.sysCollector = metrics.NewSystemCollector(m, cfg.MetricsInterval)

	return s, nil
}

// wrapWithEmitMetrics counts every tick the normalizer hands to its sinks
// before delegating to the real fan-out.
func wrapWithEmitMetrics(out sink.Sink, m *metrics.Metrics) sink.Sink {
	return sink.Func(func(t tick.Tick) {
		m.TickEmitted()
		out.Emit(t)
	})
}

// Start launches every background component: the normalizer worker, the
// ingest and subscriber listeners, the WebSocket bridge hub, system metrics
// sampling, and the admin HTTP server. It returns once everything is bound,
// without blocking for shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.normalizer.Start()

	if err := s.ingest.Start(ctx); err != nil {
		return fmt.Errorf("server: start ingest listener: %w", err)
	}
	if err := s.broadcast.Start(ctx); err != nil {
		return fmt.Errorf("server: start broadcaster: %w", err)
	}

	wsCtx, cancel := context.WithCancel(ctx)
	s.wsCancel = cancel
	go s.wsHub.Run(wsCtx)

	go s.sysCollector.Run(ctx)

	s.admin.Start(s.errCh)

	s.logger.Info().
		Str("ingest_addr", s.cfg.IngestAddr).
		Str("subscriber_addr", s.cfg.SubscriberAddr).
		Str("admin_addr", s.cfg.AdminAddr).
		Msg("server: started")

	return nil
}

// Run starts the server and blocks until ctx is cancelled or a signal is
// received, then shuts everything down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("server: received shutdown signal")
	case err := <-s.errCh:
		s.logger.Error().Err(err).Msg("server: component failed")
	}

	return s.Shutdown()
}

// Shutdown stops every component in reverse dependency order.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("server: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.admin.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("server: admin shutdown error")
	}

	s.ingest.Stop()
	s.broadcast.Stop()

	if s.wsCancel != nil {
		s.wsCancel()
	}

	s.normalizer.Stop()

	if s.nats != nil {
		s.nats.Close()
	}
	if err := s.persist.Close(); err != nil {
		s.logger.Error().Err(err).Msg("server: persistence close error")
	}

	s.logger.Info().Msg("server: shutdown complete")
	return nil
}
