// Package normalizer implements the windowed reorder/dedup/outlier-filter/smoothing
// engine that sits between feed ingest and the downstream sinks.
package normalizer

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/tickflow/internal/sink"
	"github.com/adred-codev/tickflow/internal/tick"
)

// drainInterval is how often the worker loop scans per-feed buffers for
// ticks that have survived the reorder window.
const drainInterval = 10 * time.Millisecond

type dedupKey struct {
	feedID uint32
	seqID  uint64
}

// Config controls the normalizer's windowing and smoothing behavior.
type Config struct {
	// WindowMs is the minimum age, in milliseconds, a tick must reach
	// before it becomes eligible for emission.
	WindowMs int64
	// SmoothingWindow is the number of recent prices averaged per feed on
	// emission. Zero disables smoothing.
	SmoothingWindow int
}

// Normalizer reorders, deduplicates, filters, and optionally smooths ticks
// pushed from multiple feeds, emitting them in timestamp/sequence order
// through a Sink.
type Normalizer struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	byFeed    map[uint32][]tick.Tick
	history   map[uint32][]float64
	running   bool
	stopCh    chan struct{}
	drainedCh chan struct{}

	out sink.Sink
}

// New constructs a Normalizer. Emit is not called until Start.
func New(cfg Config, out sink.Sink, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		cfg:       cfg,
		logger:    logger,
		byFeed:    make(map[uint32][]tick.Tick),
		history:   make(map[uint32][]float64),
		stopCh:    make(chan struct{}),
		drainedCh: make(chan struct{}),
		out:       out,
	}
}

// SetSink atomically replaces the output sink.
func (n *Normalizer) SetSink(out sink.Sink) {
	n.mu.Lock()
	n.out = out
	n.mu.Unlock()
}

// PushRaw appends t to its feed's buffer without inspection. Safe for
// concurrent use by many feed readers.
func (n *Normalizer) PushRaw(t tick.Tick) {
	n.mu.Lock()
	n.byFeed[t.FeedID] = append(n.byFeed[t.FeedID], t)
	n.mu.Unlock()
}

// Start launches the background drain-pass worker. Call Stop to shut it down.
func (n *Normalizer) Start() {
	n.mu.Lock()
	n.running = true
	n.mu.Unlock()

	go n.workerLoop()
}

// Stop requests the worker to exit after it observes all buffers empty, and
// blocks until it does so remaining eligible ticks are flushed. Calling Stop
// again, or before Start, returns immediately.
func (n *Normalizer) Stop() {
	n.mu.Lock()
	wasRunning := n.running
	n.running = false
	n.mu.Unlock()
	if !wasRunning {
		return
	}

	close(n.stopCh)
	<-n.drainedCh
}

func (n *Normalizer) workerLoop() {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		n.drainPass()

		select {
		case <-n.stopCh:
			if n.buffersEmpty() {
				close(n.drainedCh)
				return
			}
		case <-ticker.C:
			continue
		}
	}
}

// FeedCount returns the number of feeds with a currently non-empty buffer.
func (n *Normalizer) FeedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.byFeed)
}

func (n *Normalizer) buffersEmpty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.byFeed) == 0
}

// drainPass performs one scan: pop eligible ticks from every feed buffer
// under the lock, then sort/dedup/filter/smooth/emit outside the lock.
func (n *Normalizer) drainPass() {
	nowMs := time.Now().UnixMilli()

	n.mu.Lock()
	var ready []tick.Tick
	for feedID, buf := range n.byFeed {
		i := 0
		for i < len(buf) && buf[i].TimestampMs+uint64(n.cfg.WindowMs) <= uint64(nowMs) {
			i++
		}
		if i > 0 {
			ready = append(ready, buf[:i]...)
			remaining := buf[i:]
			if len(remaining) == 0 {
				delete(n.byFeed, feedID)
			} else {
				n.byFeed[feedID] = append([]tick.Tick(nil), remaining...)
			}
		}
	}
	out := n.out
	n.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].TimestampMs != ready[j].TimestampMs {
			return ready[i].TimestampMs < ready[j].TimestampMs
		}
		return ready[i].SeqID < ready[j].SeqID
	})

	seen := make(map[dedupKey]struct{}, len(ready))

	for _, t := range ready {
		key := dedupKey{t.FeedID, t.SeqID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if !isPlausible(t.Price) {
			continue
		}

		emitted := t
		if n.cfg.SmoothingWindow > 0 {
			emitted.Price = n.smooth(t.FeedID, t.Price)
		}

		if out != nil {
			out.Emit(emitted)
		}
	}
}

func isPlausible(price float64) bool {
	return price > 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}

// smooth appends price to the feed's bounded history and returns the mean of
// the retained window. History is owned exclusively by the worker goroutine
// that calls drainPass, so it needs no separate lock.
func (n *Normalizer) smooth(feedID uint32, price float64) float64 {
	hist := append(n.history[feedID], price)
	if len(hist) > n.cfg.SmoothingWindow {
		hist = hist[len(hist)-n.cfg.SmoothingWindow:]
	}
	n.history[feedID] = hist

	sum := 0.0
	for _, p := range hist {
		sum += p
	}
	return sum / float64(len(hist))
}
