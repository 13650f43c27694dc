// Package persistence implements the durable CSV append log and the replay
// reader that plays it back.
package persistence

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/adred-codev/tickflow/internal/tick"
)

var csvHeader = []byte("timestamp_ms,feed_id,seq_id,price,size,flags\n")

// CSVSink implements sink.Sink, appending one CSV row per tick and flushing
// immediately so each row is durable before Emit returns.
type CSVSink struct {
	mu      sync.Mutex
	file    *os.File
	onRow   func()
	onError func()
}

// NewCSVSink opens path in append mode, writing the header only if the file
// is new/empty.
func NewCSVSink(path string, onRow func(), onError func()) (*CSVSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("persistence: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if _, err := file.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("persistence: write header: %w", err)
		}
	}

	return &CSVSink{file: file, onRow: onRow, onError: onError}, nil
}

// Emit implements sink.Sink.
func (s *CSVSink) Emit(t tick.Tick) {
	row := fmt.Sprintf("%d,%d,%d,%s,%d,%d\n",
		t.TimestampMs, t.FeedID, t.SeqID, strconv.FormatFloat(t.Price, 'f', 6, 64), t.Size, t.Flags)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.WriteString(row); err != nil {
		if s.onError != nil {
			s.onError()
		}
		return
	}
	if err := s.file.Sync(); err != nil {
		if s.onError != nil {
			s.onError()
		}
		return
	}
	if s.onRow != nil {
		s.onRow()
	}
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
