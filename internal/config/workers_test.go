package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWorkerSettings_MissingFileReturnsDefaults(t *testing.T) {
	settings, err := LoadWorkerSettings(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings != DefaultWorkerSettings() {
		t.Errorf("expected defaults, got %+v", settings)
	}
}

func TestLoadWorkerSettings_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	contents := `
batch_creator:
  poll_interval_ms: 2500
signer:
  poll_interval_ms: 750
  claim_timeout_ms: 90000
broadcaster:
  poll_interval_ms: 3000
  claim_timeout_ms: 60000
confirmation_checker:
  poll_interval_ms: 20000
unsigned_tx_creator:
  poll_interval_ms: 4000
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	settings, err := LoadWorkerSettings(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.BatchCreator.PollIntervalMS != 2500 {
		t.Errorf("batch_creator.poll_interval_ms = %d, want 2500", settings.BatchCreator.PollIntervalMS)
	}
	if settings.Signer.ClaimTimeoutMS != 90000 {
		t.Errorf("signer.claim_timeout_ms = %d, want 90000", settings.Signer.ClaimTimeoutMS)
	}
	if settings.Signer.ClaimTimeout().String() != "1m30s" {
		t.Errorf("signer claim timeout = %s, want 1m30s", settings.Signer.ClaimTimeout())
	}
}

func TestLoadWorkerSettings_RejectsZeroInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	contents := "batch_creator:\n  poll_interval_ms: 0\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadWorkerSettings(path); err == nil {
		t.Error("expected error for zero poll interval, got nil")
	}
}
