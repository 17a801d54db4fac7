package messaging

import "testing"

func TestIngestShardSubject(t *testing.T) {
	got := IngestShardSubject("shard-0")
	want := "events.ingest.shard-0"
	if got != want {
		t.Errorf("IngestShardSubject() = %q, want %q", got, want)
	}
}

func TestDLQSubject(t *testing.T) {
	tests := []struct {
		stage  string
		reason string
		want   string
	}{
		{"ingest", "max_deliveries", "dlq.ingest.max_deliveries"},
		{"transform", "read_failed", "dlq.transform.read_failed"},
	}

	for _, tt := range tests {
		if got := DLQSubject(tt.stage, tt.reason); got != tt.want {
			t.Errorf("DLQSubject(%q, %q) = %q, want %q", tt.stage, tt.reason, got, tt.want)
		}
	}
}
