package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"medtracker/internal/core"
)

func TestSnapshotCommandSeedsMemoryStore(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	body := "patients:\n  - id: alice\n    name: Alice\nmedications:\n  - id: ibu\n    patient_id: alice\n    name: Ibuprofen\n"
	if err := os.WriteFile(seed, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	t.Setenv("MEDTRACKER_STORAGE_DRIVER", "memory")
	t.Setenv("MEDTRACKER_SEED_FILE", seed)

	var out, logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs([]string{"snapshot"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if snap.Patients["alice"].Name != "Alice" || snap.NextDoses["ibu"].Status != "never_taken" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !bytes.Contains(logs.Bytes(), []byte("dataset seeded")) {
		t.Fatalf("expected seeding to be logged, got %s", logs.String())
	}
}

func TestSnapshotCommandRejectsBadConfig(t *testing.T) {
	t.Setenv("MEDTRACKER_STORAGE_DRIVER", "floppy")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"snapshot"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected config validation error")
	}
}

func TestSnapshotCommandWithSQLite(t *testing.T) {
	t.Setenv("MEDTRACKER_STORAGE_DRIVER", "sqlite")
	t.Setenv("MEDTRACKER_SQLITE_PATH", filepath.Join(t.TempDir(), "med.db"))
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"snapshot"})
	if err := cmd.Execute(); err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"next_doses": {}`)) {
		t.Fatalf("unexpected output %s", out.String())
	}
}
