// Package tick defines the normalized market-data event and its wire codec.
package tick

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Size is the packed byte length of a Tick on the wire.
const Size = 8 + 4 + 8 + 8 + 8 + 1

// Tick is one market-data update from an upstream feed.
type Tick struct {
	TimestampMs uint64
	FeedID      uint32
	SeqID       uint64
	Price       float64
	Size        uint64
	Flags       uint8
}

// ErrShortBuffer is returned by Unpack when the input is too small to hold a Tick.
var ErrShortBuffer = fmt.Errorf("tick: buffer shorter than %d bytes", Size)

// Pack encodes t into exactly Size bytes, big-endian.
func Pack(t Tick) []byte {
	buf := make([]byte, Size)
	PackInto(buf, t)
	return buf
}

// PackInto encodes t into buf, which must be at least Size bytes long.
func PackInto(buf []byte, t Tick) {
	_ = buf[Size-1]
	binary.BigEndian.PutUint64(buf[0:8], t.TimestampMs)
	binary.BigEndian.PutUint32(buf[8:12], t.FeedID)
	binary.BigEndian.PutUint64(buf[12:20], t.SeqID)
	binary.BigEndian.PutUint64(buf[20:28], math.Float64bits(t.Price))
	binary.BigEndian.PutUint64(buf[28:36], t.Size)
	buf[36] = t.Flags
}

// Unpack decodes the first Size bytes of buf into a Tick.
func Unpack(buf []byte) (Tick, error) {
	if len(buf) < Size {
		return Tick{}, ErrShortBuffer
	}
	return Tick{
		TimestampMs: binary.BigEndian.Uint64(buf[0:8]),
		FeedID:      binary.BigEndian.Uint32(buf[8:12]),
		SeqID:       binary.BigEndian.Uint64(buf[12:20]),
		Price:       math.Float64frombits(binary.BigEndian.Uint64(buf[20:28])),
		Size:        binary.BigEndian.Uint64(buf[28:36]),
		Flags:       buf[36],
	}, nil
}
