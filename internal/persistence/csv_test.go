package persistence

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/adred-codev/tickflow/internal/tick"
)

func TestCSVSinkWriteAndReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.csv")

	sink, err := NewCSVSink(path, nil, nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	want := []tick.Tick{
		{TimestampMs: 1000, FeedID: 1, SeqID: 1, Price: 100.123456, Size: 10, Flags: 0},
		{TimestampMs: 1010, FeedID: 1, SeqID: 2, Price: 101.5, Size: 20, Flags: 1},
	}
	for _, tk := range want {
		sink.Emit(tk)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := OpenCSVReplaySource(path)
	if err != nil {
		t.Fatalf("OpenCSVReplaySource: %v", err)
	}
	defer src.Close()

	var got []tick.Tick
	for {
		tk, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, tk)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d ticks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tick %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCSVSinkHeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.csv")

	s1, err := NewCSVSink(path, nil, nil)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	s1.Emit(tick.Tick{TimestampMs: 1, FeedID: 1, SeqID: 1, Price: 1, Size: 1})
	s1.Close()

	s2, err := NewCSVSink(path, nil, nil)
	if err != nil {
		t.Fatalf("reopen NewCSVSink: %v", err)
	}
	s2.Emit(tick.Tick{TimestampMs: 2, FeedID: 1, SeqID: 2, Price: 2, Size: 2})
	s2.Close()

	src, err := OpenCSVReplaySource(path)
	if err != nil {
		t.Fatalf("OpenCSVReplaySource: %v", err)
	}
	defer src.Close()

	count := 0
	for {
		_, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 data rows across both sink instances, got %d", count)
	}
}
