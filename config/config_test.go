package config

import (
	"testing"
	"time"
)

func TestDefault_MatchesDocumentedDefaults(t *testing.T) {
	eng := Default()

	if eng.HeartbeatInterval != 30*time.Second {
		t.Fatalf("want 30s heartbeat, got %v", eng.HeartbeatInterval)
	}
	if eng.AllowLowerSeqNumLogon {
		t.Fatalf("want allow_lower_seqnum_logon false by default")
	}
	if eng.CompactionSize != 64*1024 {
		t.Fatalf("want 64KiB compaction size, got %d", eng.CompactionSize)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	eng, err := Load("/nonexistent/path/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if eng.HeartbeatInterval != 30*time.Second {
		t.Fatalf("want default heartbeat on missing file, got %v", eng.HeartbeatInterval)
	}
}
