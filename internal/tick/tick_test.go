package tick

import (
	"bytes"
	"math"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []Tick{
		{TimestampMs: 1630000000000, FeedID: 5, SeqID: 42, Price: 123.456, Size: 1000, Flags: 0},
		{TimestampMs: 0, FeedID: 0, SeqID: 0, Price: 0.000001, Size: 0, Flags: 255},
		{TimestampMs: math.MaxUint64, FeedID: math.MaxUint32, SeqID: math.MaxUint64, Price: -1.5, Size: math.MaxUint64, Flags: 1},
	}
	for _, c := range cases {
		buf := Pack(c)
		if len(buf) != Size {
			t.Fatalf("Pack produced %d bytes, want %d", len(buf), Size)
		}
		got, err := Unpack(buf)
		if err != nil {
			t.Fatalf("Unpack: %v", err)
		}
		if got != c {
			t.Fatalf("round trip mismatch: want %+v got %+v", c, got)
		}
	}
}

func TestUnpackShortBuffer(t *testing.T) {
	_, err := Unpack(make([]byte, Size-1))
	if err != ErrShortBuffer {
		t.Fatalf("want ErrShortBuffer, got %v", err)
	}
}

func TestPackFrameLayout(t *testing.T) {
	payload := Pack(Tick{TimestampMs: 1630000000000, FeedID: 5, SeqID: 42, Price: 123.456, Size: 1000, Flags: 0})
	frame := PackFrame(TypeTick, payload)

	if len(frame) != 4+1+Size {
		t.Fatalf("frame length = %d, want %d", len(frame), 4+1+Size)
	}
	wantPrefix := []byte{0x00, 0x00, 0x00, 0x26, 0x01}
	if !bytes.Equal(frame[:5], wantPrefix) {
		t.Fatalf("frame prefix = % x, want % x", frame[:5], wantPrefix)
	}
}

func TestReadFrameRoundTrip(t *testing.T) {
	payload := []byte("hello world")
	frame := PackFrame(TypeSubscribe, payload)

	typ, got, err := ReadFrame(bytes.NewReader(frame), 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if typ != TypeSubscribe {
		t.Fatalf("type = %x, want %x", typ, TypeSubscribe)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestReadFrameOversize(t *testing.T) {
	payload := make([]byte, 100)
	frame := PackFrame(TypeTick, payload)

	_, _, err := ReadFrame(bytes.NewReader(frame), 50)
	if err != ErrOversize {
		t.Fatalf("want ErrOversize, got %v", err)
	}
}

func TestReadFrameShortRead(t *testing.T) {
	frame := PackFrame(TypeTick, []byte("abc"))
	truncated := frame[:len(frame)-1]

	_, _, err := ReadFrame(bytes.NewReader(truncated), 0)
	if err == nil {
		t.Fatal("expected error on truncated frame")
	}
}
