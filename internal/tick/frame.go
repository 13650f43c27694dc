package tick

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame type bytes, per the ingest/subscribe wire protocols.
const (
	TypeTick      byte = 0x01
	TypeSubscribe byte = 0x10
)

// DefaultMaxFrameSize bounds the declared length of an incoming frame.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// ErrShortRead is returned when the peer closes before a full frame arrives.
var ErrShortRead = fmt.Errorf("tick: short read while framing")

// ErrOversize is returned when a frame's declared length exceeds the configured maximum.
var ErrOversize = fmt.Errorf("tick: frame exceeds maximum size")

// PackFrame writes a 4-byte big-endian length (len(payload)+1), the type byte,
// then payload.
func PackFrame(typ byte, payload []byte) []byte {
	buf := make([]byte, 4+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)+1))
	buf[4] = typ
	copy(buf[5:], payload)
	return buf
}

// ReadFrame blocks until one full frame is read from r, returning its type and payload.
// maxSize of 0 selects DefaultMaxFrameSize.
func ReadFrame(r io.Reader, maxSize uint32) (byte, []byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return 0, nil, fmt.Errorf("tick: frame declares zero length")
	}
	if length > maxSize {
		return 0, nil, ErrOversize
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	return body[0], body[1:], nil
}
