package core

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"medtracker/internal/repository"
	"medtracker/pkg/domain"
)

// Seed lists patients and medications used to populate an empty dataset.
// Medications reference patients by the ids given in the seed.
type Seed struct {
	Patients    []SeedPatient    `mapstructure:"patients"`
	Medications []SeedMedication `mapstructure:"medications"`
}

// SeedPatient is a patient entry in a seed file.
type SeedPatient struct {
	ID         string   `mapstructure:"id"`
	Name       string   `mapstructure:"name"`
	Weight     *float64 `mapstructure:"weight"`
	WeightUnit string   `mapstructure:"weight_unit"`
	Age        *int     `mapstructure:"age"`
}

// SeedMedication is a medication entry in a seed file.
type SeedMedication struct {
	ID             string   `mapstructure:"id"`
	PatientID      string   `mapstructure:"patient_id"`
	Name           string   `mapstructure:"name"`
	Dosage         *float64 `mapstructure:"dosage"`
	Unit           string   `mapstructure:"unit"`
	FrequencyHours float64  `mapstructure:"frequency_hours"`
	MaxDailyDoses  *int     `mapstructure:"max_daily_doses"`
	Instructions   string   `mapstructure:"instructions"`
	Disabled       bool     `mapstructure:"disabled"`
	Temporary      bool     `mapstructure:"temporary"`
}

// LoadSeed reads a seed file. The format follows the file extension (yaml,
// json or toml).
func LoadSeed(path string) (Seed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Seed{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := v.Unmarshal(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return seed, nil
}

// applySeed adds every seeded record. Seed ids may be replaced when taken, so
// medication owners are resolved through the ids actually assigned.
func applySeed(repo *repository.Repository, seed Seed, log Logger) error {
	assigned := make(map[string]string, len(seed.Patients))
	for i, sp := range seed.Patients {
		p := domain.Patient{
			ID:         sp.ID,
			Name:       sp.Name,
			Weight:     sp.Weight,
			WeightUnit: domain.WeightUnit(strings.ToLower(strings.TrimSpace(sp.WeightUnit))),
			Age:        sp.Age,
		}
		if err := domain.ValidatePatient(p); err != nil {
			return fmt.Errorf("patient %d: %w", i, err)
		}
		id := repo.AddPatient(p)
		if sp.ID != "" {
			assigned[sp.ID] = id
		}
	}
	for i, sm := range seed.Medications {
		owner, ok := assigned[sm.PatientID]
		if !ok {
			owner = sm.PatientID
		}
		m := domain.Medication{
			ID:             sm.ID,
			PatientID:      owner,
			Name:           sm.Name,
			Dosage:         sm.Dosage,
			Unit:           sm.Unit,
			FrequencyHours: domain.Frequency(sm.FrequencyHours),
			MaxDailyDoses:  sm.MaxDailyDoses,
			Instructions:   sm.Instructions,
			Disabled:       sm.Disabled,
			Temporary:      sm.Temporary,
		}
		if err := domain.ValidateMedication(m, true); err != nil {
			return fmt.Errorf("medication %d: %w", i, err)
		}
		if _, ok := repo.AddMedication(m); !ok {
			log.Warn("seed medication skipped: unknown patient", "medication", sm.Name, "patient_id", sm.PatientID)
		}
	}
	log.Info("dataset seeded", "patients", len(seed.Patients), "medications", len(seed.Medications))
	return nil
}
