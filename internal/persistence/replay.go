package persistence

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/adred-codev/tickflow/internal/tick"
)

// CSVReplaySource reads a persisted CSV log back into Tick values, in file order.
type CSVReplaySource struct {
	file   *os.File
	reader *csv.Reader
}

// OpenCSVReplaySource opens path and positions past the header row.
func OpenCSVReplaySource(path string) (*CSVReplaySource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}

	r := csv.NewReader(file)
	if _, err := r.Read(); err != nil {
		file.Close()
		return nil, fmt.Errorf("persistence: read header: %w", err)
	}

	return &CSVReplaySource{file: file, reader: r}, nil
}

// Next returns the next tick in the log, or io.EOF once exhausted.
func (s *CSVReplaySource) Next() (tick.Tick, error) {
	record, err := s.reader.Read()
	if err != nil {
		return tick.Tick{}, err
	}
	if len(record) != 6 {
		return tick.Tick{}, fmt.Errorf("persistence: malformed row: %v", record)
	}

	ts, err := strconv.ParseUint(record[0], 10, 64)
	if err != nil {
		return tick.Tick{}, fmt.Errorf("persistence: bad timestamp_ms: %w", err)
	}
	feedID, err := strconv.ParseUint(record[1], 10, 32)
	if err != nil {
		return tick.Tick{}, fmt.Errorf("persistence: bad feed_id: %w", err)
	}
	seqID, err := strconv.ParseUint(record[2], 10, 64)
	if err != nil {
		return tick.Tick{}, fmt.Errorf("persistence: bad seq_id: %w", err)
	}
	price, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return tick.Tick{}, fmt.Errorf("persistence: bad price: %w", err)
	}
	size, err := strconv.ParseUint(record[4], 10, 64)
	if err != nil {
		return tick.Tick{}, fmt.Errorf("persistence: bad size: %w", err)
	}
	flags, err := strconv.ParseUint(record[5], 10, 8)
	if err != nil {
		return tick.Tick{}, fmt.Errorf("persistence: bad flags: %w", err)
	}

	return tick.Tick{
		TimestampMs: ts,
		FeedID:      uint32(feedID),
		SeqID:       seqID,
		Price:       price,
		Size:        size,
		Flags:       uint8(flags),
	}, nil
}

// Reset seeks back to the start of the file and re-skips the header.
func (s *CSVReplaySource) Reset() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	s.reader = csv.NewReader(s.file)
	_, err := s.reader.Read()
	return err
}

// Close closes the underlying file.
func (s *CSVReplaySource) Close() error {
	return s.file.Close()
}
