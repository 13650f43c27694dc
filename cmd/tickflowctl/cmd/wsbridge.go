package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/adred-codev/tickflow/internal/logging"
	"github.com/adred-codev/tickflow/internal/tick"
	"github.com/adred-codev/tickflow/internal/wsbridge"
)

var (
	wsbridgeListenAddr string
	wsbridgeUpstream   string
)

// wsbridgeCmd runs a standalone process that subscribes to a running
// tickflow subscriber listener over TCP and re-serves the same delta stream
// to WebSocket clients, for deployments that keep the WebSocket edge in a
// separate process from the core pipeline.
var wsbridgeCmd = &cobra.Command{
	Use:   "wsbridge",
	Short: "Bridge a tickflow subscriber stream to WebSocket clients",
	RunE: func(c *cobra.Command, args []string) error {
		logger := logging.New("info", "pretty")

		hub := wsbridge.NewHub(logger, wsbridge.Hooks{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		go upstreamReaderLoop(ctx, wsbridgeUpstream, hub, logger)

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			wsbridge.ServeWS(hub, logger, w, r)
		})

		logger.Info().Str("addr", wsbridgeListenAddr).Str("upstream", wsbridgeUpstream).Msg("wsbridge: listening")
		return http.ListenAndServe(wsbridgeListenAddr, mux)
	},
}

// upstreamReaderLoop dials the upstream subscriber listener, performs the
// subscribe handshake, and forwards each delta line to hub verbatim,
// reconnecting with backoff if the upstream connection drops.
func upstreamReaderLoop(ctx context.Context, addr string, hub *wsbridge.Hub, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			logger.Warn().Err(err).Msg("wsbridge: upstream connect failed, retrying")
			time.Sleep(2 * time.Second)
			continue
		}

		req, _ := json.Marshal(map[string]string{"client_id": "wsbridge"})
		if _, err := conn.Write(tick.PackFrame(tick.TypeSubscribe, req)); err != nil {
			conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}

		logger.Info().Str("upstream", addr).Msg("wsbridge: connected to upstream")

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			hub.BroadcastRaw(line)
		}
		conn.Close()

		logger.Warn().Msg("wsbridge: upstream connection lost, reconnecting")
		time.Sleep(2 * time.Second)
	}
}

func init() {
	wsbridgeCmd.Flags().StringVar(&wsbridgeListenAddr, "listen", ":9300", "WebSocket listen address")
	wsbridgeCmd.Flags().StringVar(&wsbridgeUpstream, "upstream", "127.0.0.1:9100", "Upstream tickflow subscriber listener address")
	rootCmd.AddCommand(wsbridgeCmd)
}
