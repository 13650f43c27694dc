package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adred-codev/tickflow/internal/broadcaster"
	"github.com/adred-codev/tickflow/internal/logging"
	"github.com/adred-codev/tickflow/internal/persistence"
)

var (
	replayLogPath string
	replaySpeed   float64
	replayPort    string
)

// replayCmd replays a persisted CSV tick log to subscriber connections at
// (roughly) the original inter-tick cadence, scaled by --speed. speed=0
// replays as fast as possible, matching the original replay_server's
// "0 = max speed" convention.
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a persisted tick log to subscribers",
	RunE: func(c *cobra.Command, args []string) error {
		if replayLogPath == "" {
			return fmt.Errorf("--log is required")
		}
		if replaySpeed < 0 {
			return fmt.Errorf("--speed must be >= 0")
		}

		logger := logging.New("info", "pretty")

		src, err := persistence.OpenCSVReplaySource(replayLogPath)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer src.Close()

		b := broadcaster.New(broadcaster.Config{
			ListenAddr:   replayPort,
			RateLimit:    100,
			BurstSize:    200,
			MaxFrameSize: 16 * 1024 * 1024,
		}, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("start broadcaster: %w", err)
		}
		defer b.Stop()

		fmt.Fprintf(os.Stdout, "Replay server starting:\n  Log file: %s\n  Speed: %s\n  Port: %s\n",
			replayLogPath, speedLabel(replaySpeed), replayPort)

		count := 0
		var prevTs uint64
		first := true

		for {
			t, err := src.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read tick: %w", err)
			}

			if !first && replaySpeed > 0 {
				deltaMs := t.TimestampMs - prevTs
				delayMs := time.Duration(float64(deltaMs)/replaySpeed) * time.Millisecond
				if delayMs > 0 {
					time.Sleep(delayMs)
				}
			}

			b.Emit(t)
			prevTs = t.TimestampMs
			first = false
			count++

			if count%1000 == 0 {
				fmt.Fprintf(os.Stdout, "Replayed %d ticks, subscribers: %d\r", count, b.SubscriberCount())
			}
		}

		fmt.Fprintf(os.Stdout, "\nReplay complete: %d ticks, final subscriber count %d\n", count, b.SubscriberCount())
		return nil
	},
}

func speedLabel(speed float64) string {
	if speed == 0 {
		return "max"
	}
	return fmt.Sprintf("%gx", speed)
}

func init() {
	replayCmd.Flags().StringVar(&replayLogPath, "log", "", "Path to a persisted CSV tick log (required)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Replay speed multiplier (0 = max speed)")
	replayCmd.Flags().StringVar(&replayPort, "port", ":9100", "Subscriber listen address")
	rootCmd.AddCommand(replayCmd)
}
