package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/tick"
)

type fakeSink struct {
	pushed chan tick.Tick
}

func (f *fakeSink) PushRaw(t tick.Tick) { f.pushed <- t }

func TestListenerDecodesAndDispatchesTick(t *testing.T) {
	sink := &fakeSink{pushed: make(chan tick.Tick, 1)}
	l := New(Config{ListenAddr: "127.0.0.1:0"}, sink, zerolog.Nop(), Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Stop()

	conn, err := net.Dial("tcp", l.listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	want := tick.Tick{TimestampMs: 1000, FeedID: 5, SeqID: 1, Price: 10.5, Size: 3, Flags: 0}
	frame := tick.PackFrame(tick.TypeTick, tick.Pack(want))
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-sink.pushed:
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched tick")
	}
}

func TestListenerIgnoresNonTickFrameType(t *testing.T) {
	sink := &fakeSink{pushed: make(chan tick.Tick, 1)}
	l := New(Config{ListenAddr: "127.0.0.1:0"}, sink, zerolog.Nop(), Hooks{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Stop()

	conn, err := net.Dial("tcp", l.listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.Write(tick.PackFrame(tick.TypeSubscribe, []byte("{}")))

	want := tick.Tick{TimestampMs: 1, FeedID: 1, SeqID: 1, Price: 1, Size: 1}
	conn.Write(tick.PackFrame(tick.TypeTick, tick.Pack(want)))

	select {
	case got := <-sink.pushed:
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched tick")
	}
}
