package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"medtracker/internal/infra/persistence/memory"
	"medtracker/pkg/domain"
)

const seedYAML = `
patients:
  - id: alice
    name: Alice
    weight: 62.5
    weight_unit: KG
    age: 34
medications:
  - id: ibu
    patient_id: alice
    name: Ibuprofen
    dosage: 200
    unit: mg
    frequency_hours: "6"
  - patient_id: nobody
    name: Orphan
`

func writeSeed(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestLoadSeedYAML(t *testing.T) {
	seed, err := LoadSeed(writeSeed(t, "seed.yaml", seedYAML))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if len(seed.Patients) != 1 || seed.Patients[0].Weight == nil || *seed.Patients[0].Weight != 62.5 {
		t.Fatalf("unexpected patients %+v", seed.Patients)
	}
	if len(seed.Medications) != 2 || seed.Medications[0].FrequencyHours != 6 || seed.Medications[0].PatientID != "alice" {
		t.Fatalf("unexpected medications %+v", seed.Medications)
	}
}

func TestLoadSeedJSON(t *testing.T) {
	seed, err := LoadSeed(writeSeed(t, "seed.json", `{"patients":[{"id":"p","name":"Bob"}]}`))
	if err != nil || len(seed.Patients) != 1 || seed.Patients[0].Name != "Bob" {
		t.Fatalf("unexpected seed %+v %v", seed, err)
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing seed")
	}
}

func TestSetupSeedsEmptyDataset(t *testing.T) {
	seed, err := LoadSeed(writeSeed(t, "seed.yaml", seedYAML))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	gw := memory.New()
	c := newReady(t, gw, WithSeed(seed))

	snap, _ := c.Latest()
	alice, ok := snap.Patients["alice"]
	if !ok || alice.WeightUnit != domain.WeightKilograms || alice.Age == nil || *alice.Age != 34 {
		t.Fatalf("unexpected seeded patient %+v", snap.Patients)
	}
	if len(snap.Medications) != 1 || snap.Medications["ibu"].PatientID != "alice" {
		t.Fatalf("orphan seed medication should be skipped: %+v", snap.Medications)
	}
	if snap.NextDoses["ibu"].Status != domain.StatusNeverTaken {
		t.Fatalf("unexpected next dose %+v", snap.NextDoses["ibu"])
	}
	if gw.Saves() != 1 {
		t.Fatalf("seeded dataset should be saved once, got %d", gw.Saves())
	}
}

func TestSetupSkipsSeedWhenDataExists(t *testing.T) {
	doc := domain.NewDocument()
	doc.Patients["p1"] = domain.Patient{ID: "p1", Name: "Existing", WeightUnit: domain.WeightKilograms}
	gw := memory.NewWithDocument(doc)
	c := newReady(t, gw, WithSeed(Seed{Patients: []SeedPatient{{ID: "alice", Name: "Alice"}}}))
	snap, _ := c.Latest()
	if len(snap.Patients) != 1 || gw.Saves() != 0 {
		t.Fatalf("seed must not apply to a populated dataset")
	}
}

func TestSetupRejectsInvalidSeed(t *testing.T) {
	c := NewCoordinator(memory.New(), WithSeed(Seed{Patients: []SeedPatient{{Name: ""}}}))
	if err := c.Setup(context.Background()); err == nil {
		t.Fatalf("expected invalid seed to fail setup")
	}
}
