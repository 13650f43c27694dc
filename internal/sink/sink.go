// Package sink defines the single downstream boundary the normalizer emits through.
package sink

import "github.com/adred-codev/tickflow/internal/tick"

// Sink receives one normalized tick at a time, outside any normalizer-owned lock.
// Implementations must not block indefinitely and must not call back into the
// normalizer that invoked them.
type Sink interface {
	Emit(t tick.Tick)
}

// Func adapts a plain function to a Sink.
type Func func(t tick.Tick)

// Emit implements Sink.
func (f Func) Emit(t tick.Tick) { f(t) }

// Fanout invokes every member sink in order for each tick. A panic-free sink
// that errors internally is expected to log and continue; Fanout does not
// interpret return values because Sink.Emit has none.
type Fanout []Sink

// Emit implements Sink by delivering to every member sink.
func (fo Fanout) Emit(t tick.Tick) {
	for _, s := range fo {
		if s != nil {
			s.Emit(t)
		}
	}
}
