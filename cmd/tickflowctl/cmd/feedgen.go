package cmd

import (
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/adred-codev/tickflow/internal/tick"
)

var (
	feedgenHost    string
	feedgenFeedID  uint32
	feedgenCount   int
	feedgenMinJitterMs int
	feedgenMaxJitterMs int
)

// feedgenCmd connects to an ingest listener and streams synthetic ticks for
// one feed, jittering the inter-send delay and periodically resending the
// last frame as a duplicate, mirroring the original feed generator's traffic
// shape so the normalizer's reorder/dedup logic has something to do.
var feedgenCmd = &cobra.Command{
	Use:   "feedgen",
	Short: "Generate synthetic tick traffic for one feed",
	RunE: func(c *cobra.Command, args []string) error {
		conn, err := net.Dial("tcp", feedgenHost)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer conn.Close()

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		base := 100.0 + float64(feedgenFeedID)
		var seq uint64 = 1

		for i := 0; i < feedgenCount; i++ {
			t := tick.Tick{
				TimestampMs: uint64(time.Now().UnixMilli()),
				FeedID:      feedgenFeedID,
				SeqID:       seq,
				Price:       base + float64(i%20)*0.01,
				Size:        100,
				Flags:       0,
			}
			seq++

			frame := tick.PackFrame(tick.TypeTick, tick.Pack(t))

			jitter := feedgenMinJitterMs + rng.Intn(feedgenMaxJitterMs-feedgenMinJitterMs+1)
			time.Sleep(time.Duration(jitter) * time.Millisecond)

			if _, err := conn.Write(frame); err != nil {
				break
			}

			// Resend the same frame periodically to exercise dedup downstream.
			if i%50 == 0 {
				conn.Write(frame)
			}
		}
		return nil
	},
}

func init() {
	feedgenCmd.Flags().StringVar(&feedgenHost, "addr", "127.0.0.1:9000", "Ingest listener address")
	feedgenCmd.Flags().Uint32Var(&feedgenFeedID, "feed-id", 1, "Feed ID to tag generated ticks with")
	feedgenCmd.Flags().IntVar(&feedgenCount, "count", 5000, "Number of ticks to send")
	feedgenCmd.Flags().IntVar(&feedgenMinJitterMs, "min-jitter-ms", 10, "Minimum delay between sends, in milliseconds")
	feedgenCmd.Flags().IntVar(&feedgenMaxJitterMs, "max-jitter-ms", 50, "Maximum delay between sends, in milliseconds")
	rootCmd.AddCommand(feedgenCmd)
}
