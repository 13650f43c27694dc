package wsbridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/tick"
)

func TestHubEmitFansOutToRegisteredClients(t *testing.T) {
	hub := NewHub(zerolog.Nop(), Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := &Client{send: make(chan []byte, clientSendBuf)}
	hub.register <- c

	waitForCount(t, hub, 1)

	hub.Emit(tick.Tick{TimestampMs: 1000, FeedID: 1, SeqID: 1, Price: 100.5, Size: 10, Flags: 0})

	select {
	case msg := <-c.send:
		var w wireTick
		if err := json.Unmarshal(msg, &w); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if w.FeedID != 1 || w.SeqID != 1 || w.Price != 100.5 {
			t.Fatalf("unexpected delta: %+v", w)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast delta")
	}
}

func TestHubForceDisconnectsOnFullSendBuffer(t *testing.T) {
	hub := NewHub(zerolog.Nop(), Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// A zero-capacity send channel is always full, so the first broadcast
	// should force a disconnect.
	c := &Client{send: make(chan []byte)}
	hub.register <- c

	waitForCount(t, hub, 1)

	hub.Emit(tick.Tick{TimestampMs: 1000, FeedID: 1, SeqID: 1, Price: 1, Size: 1})

	waitForCount(t, hub, 0)
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("ClientCount never reached %d (last %d)", want, hub.ClientCount())
}
