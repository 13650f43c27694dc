package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/adred-codev/tickflow/internal/tick"
)

var (
	subscribeAddr     string
	subscribeClientID string
)

// subscribeCmd connects to a subscriber listener, sends the one-shot
// subscribe handshake, and prints each streamed delta line. Unlike the
// original C++ reference client, the handshake payload is exactly the JSON
// body with no duplicated leading type byte.
var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe to a tickflow server and print the delta stream",
	RunE: func(c *cobra.Command, args []string) error {
		conn, err := net.Dial("tcp", subscribeAddr)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer conn.Close()

		req, err := json.Marshal(map[string]string{"client_id": subscribeClientID})
		if err != nil {
			return fmt.Errorf("marshal handshake: %w", err)
		}

		if _, err := conn.Write(tick.PackFrame(tick.TypeSubscribe, req)); err != nil {
			return fmt.Errorf("send handshake: %w", err)
		}

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			fmt.Fprintln(os.Stdout, scanner.Text())
		}
		return scanner.Err()
	},
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeAddr, "addr", "127.0.0.1:9100", "Subscriber listener address")
	subscribeCmd.Flags().StringVar(&subscribeClientID, "client-id", "tickflowctl", "Client ID sent in the subscribe handshake")
	rootCmd.AddCommand(subscribeCmd)
}
