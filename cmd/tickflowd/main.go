// Command tickflowd runs the tick ingest/normalize/broadcast pipeline as a
// standalone service.
package main

import (
	"context"
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/tickflow/internal/config"
	"github.com/adred-codev/tickflow/internal/logging"
	"github.com/adred-codev/tickflow/internal/server"
)

// Exit codes: 0 clean shutdown, 1 configuration error, 2 any failure to
// construct or run the server (bind/listen failures included).
const (
	exitOK   = 0
	exitConfig = 1
	exitBind = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	bootstrapLogger := logging.New("info", "json")

	cfg, err := config.Load(&bootstrapLogger)
	if err != nil {
		bootstrapLogger.Error().Err(err).Msg("tickflowd: configuration error")
		return exitConfig
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("tickflowd: failed to construct server")
		return exitBind
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.Error().Err(err).Msg("tickflowd: run failed")
		return exitBind
	}

	fmt.Fprintln(os.Stdout, "tickflowd: clean shutdown")
	return exitOK
}
