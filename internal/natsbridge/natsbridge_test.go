package natsbridge

import (
	"encoding/json"
	"testing"
)

func TestSubjectFormat(t *testing.T) {
	s := &Sink{cfg: Config{SubjectPrefix: "ticks"}}
	if got, want := s.subject(7), "ticks.7"; got != want {
		t.Fatalf("subject(7) = %q, want %q", got, want)
	}
	if got, want := s.subject(0), "ticks.0"; got != want {
		t.Fatalf("subject(0) = %q, want %q", got, want)
	}
}

func TestWireTickJSONFieldNames(t *testing.T) {
	w := wireTick{TimestampMs: 1, FeedID: 2, SeqID: 3, Price: 4.5, Size: 6, Flags: 1}
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"timestamp_ms", "feed_id", "seq_id", "price", "size", "flags"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing expected JSON field %q in %s", key, data)
		}
	}
}
