// Package admin exposes the operator-facing HTTP surface: liveness, a
// lightweight JSON status summary, and the Prometheus scrape endpoint.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// FeedCounter and SubscriberCounter are the narrow interfaces the status
// endpoint needs from the normalizer and broadcaster, respectively.
type FeedCounter interface {
	FeedCount() int
}

type SubscriberCounter interface {
	SubscriberCount() int
}

// Server is the admin HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// New builds the admin mux and binds it to addr. Start begins serving.
func New(addr string, feeds FeedCounter, subs SubscriberCounter, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Connection", "close")
		json.NewEncoder(w).Encode(map[string]int{
			"feeds":       feeds.FeedCount(),
			"subscribers": subs.SubscriberCount(),
		})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "healthy",
			"timestamp":  time.Now().Unix(),
			"goroutines": runtime.NumGoroutine(),
		})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start runs the HTTP server in a background goroutine. Bind failures are
// reported on errCh.
func (s *Server) Start(errCh chan<- error) {
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("admin: listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin: serve: %w", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
