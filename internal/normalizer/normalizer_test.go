package normalizer

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/tick"
)

type collectSink struct {
	mu   sync.Mutex
	ticks []tick.Tick
}

func (c *collectSink) Emit(t tick.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = append(c.ticks, t)
}

func (c *collectSink) snapshot() []tick.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tick.Tick, len(c.ticks))
	copy(out, c.ticks)
	return out
}

func newTestNormalizer(cfg Config) (*Normalizer, *collectSink) {
	cs := &collectSink{}
	n := New(cfg, cs, zerolog.Nop())
	return n, cs
}

func TestReorderAndDedup(t *testing.T) {
	n, cs := newTestNormalizer(Config{WindowMs: 200})
	n.Start()
	defer n.Stop()

	now := uint64(time.Now().UnixMilli())
	n.PushRaw(tick.Tick{TimestampMs: now, FeedID: 1, SeqID: 2, Price: 100})
	n.PushRaw(tick.Tick{TimestampMs: now - 10, FeedID: 1, SeqID: 1, Price: 99})
	n.PushRaw(tick.Tick{TimestampMs: now, FeedID: 1, SeqID: 2, Price: 100})

	time.Sleep(250 * time.Millisecond)

	got := cs.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 emitted ticks after dedup, got %d: %+v", len(got), got)
	}
	if got[0].SeqID != 1 || got[1].SeqID != 2 {
		t.Fatalf("expected order seq 1 then seq 2, got %+v", got)
	}
}

func TestOutlierRejection(t *testing.T) {
	n, cs := newTestNormalizer(Config{WindowMs: 50})
	n.Start()
	defer n.Stop()

	now := uint64(time.Now().UnixMilli())
	n.PushRaw(tick.Tick{TimestampMs: now, FeedID: 7, SeqID: 1, Price: 100})
	n.PushRaw(tick.Tick{TimestampMs: now + 1, FeedID: 7, SeqID: 2, Price: 0})
	n.PushRaw(tick.Tick{TimestampMs: now + 2, FeedID: 7, SeqID: 3, Price: math.NaN()})
	n.PushRaw(tick.Tick{TimestampMs: now + 3, FeedID: 7, SeqID: 4, Price: 50})

	time.Sleep(150 * time.Millisecond)

	got := cs.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving ticks, got %d: %+v", len(got), got)
	}
	if got[0].SeqID != 1 || got[1].SeqID != 4 {
		t.Fatalf("expected seq 1 and seq 4 to survive, got %+v", got)
	}
}

func TestSmoothingWindow(t *testing.T) {
	n, cs := newTestNormalizer(Config{WindowMs: 0, SmoothingWindow: 3})
	n.Start()
	defer n.Stop()

	base := uint64(time.Now().UnixMilli()) - 1000
	prices := []float64{10, 20, 30, 40, 50}
	for i, p := range prices {
		n.PushRaw(tick.Tick{TimestampMs: base + uint64(i*5), FeedID: 1, SeqID: uint64(i + 1), Price: p})
		time.Sleep(15 * time.Millisecond)
	}

	time.Sleep(50 * time.Millisecond)

	got := cs.snapshot()
	if len(got) != 5 {
		t.Fatalf("expected 5 emissions, got %d: %+v", len(got), got)
	}
	want := []float64{10, 15, 20, 30, 40}
	for i, w := range want {
		if math.Abs(got[i].Price-w) > 1e-9 {
			t.Fatalf("emission %d: want %f got %f", i, w, got[i].Price)
		}
	}
}

func TestEmitsByValueNotByReference(t *testing.T) {
	n, cs := newTestNormalizer(Config{WindowMs: 0, SmoothingWindow: 2})
	n.Start()
	defer n.Stop()

	base := uint64(time.Now().UnixMilli()) - 1000
	n.PushRaw(tick.Tick{TimestampMs: base, FeedID: 9, SeqID: 1, Price: 10})
	time.Sleep(20 * time.Millisecond)
	n.PushRaw(tick.Tick{TimestampMs: base + 5, FeedID: 9, SeqID: 2, Price: 20})
	time.Sleep(20 * time.Millisecond)

	got := cs.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 emissions, got %d", len(got))
	}
	if got[0].Price == got[1].Price {
		t.Fatalf("later smoothing mutated an earlier emitted tick: %+v", got)
	}
}
