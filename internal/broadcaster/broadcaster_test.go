package broadcaster

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/tick"
)

func startTestBroadcaster(t *testing.T, rate, burst float64) (*Broadcaster, string) {
	t.Helper()
	b := New(Config{ListenAddr: "127.0.0.1:0", RateLimit: rate, BurstSize: burst}, zerolog.Nop())
	// Bind an ephemeral listener directly instead of calling Start, so the
	// test knows the address it was given.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b.listener = ln
	b.wg.Add(1)
	go b.acceptLoop(context.Background())
	t.Cleanup(b.Stop)
	return b, ln.Addr().String()
}

func subscribeTestClient(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	payload, _ := json.Marshal(map[string]string{"client_id": "test"})
	frame := tick.PackFrame(tick.TypeSubscribe, payload)
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if line != welcomeLine {
		t.Fatalf("unexpected welcome line: %q", line)
	}
	return conn
}

func TestSubscribeHandshakeAndSubscriberCount(t *testing.T) {
	b, addr := startTestBroadcaster(t, 100, 100)
	conn := subscribeTestClient(t, addr)
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.SubscriberCount() == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected subscriber count 1, got %d", b.SubscriberCount())
}

func TestDropOnFullBucketKeepsConnectionOpen(t *testing.T) {
	b, addr := startTestBroadcaster(t, 0, 1)
	conn := subscribeTestClient(t, addr)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)

	b.Emit(tick.Tick{TimestampMs: 1, FeedID: 1, SeqID: 1, Price: 10, Size: 1})
	b.Emit(tick.Tick{TimestampMs: 2, FeedID: 1, SeqID: 2, Price: 20, Size: 1})
	b.Emit(tick.Tick{TimestampMs: 3, FeedID: 1, SeqID: 3, Price: 30, Size: 1})

	r := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("expected exactly one delta line, got read error: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if msg["type"] != "delta" {
		t.Fatalf("expected delta message, got %v", msg)
	}

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := r.ReadString('\n'); err == nil {
		t.Fatal("expected no second delta line: bucket should still be empty")
	}

	if b.SubscriberCount() != 1 {
		t.Fatalf("connection should remain open after a rate-limited drop, count=%d", b.SubscriberCount())
	}
}
