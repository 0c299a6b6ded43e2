// Package domain defines the persistent entities, derived dose state, and
// persistence contract shared by the medtracker packages.
package domain

import "time"

// EntityType identifies the kind of record held in the dataset.
type EntityType string

// Supported entity type identifiers used in validation errors and persistence buckets.
const (
	// EntityPatient identifies a patient record.
	EntityPatient EntityType = "patient"
	// EntityMedication identifies a medication regimen.
	EntityMedication EntityType = "medication"
	// EntityDose identifies an administered dose.
	EntityDose EntityType = "dose"
	// EntityTemperature identifies a temperature reading.
	EntityTemperature EntityType = "temperature"
)

// WeightUnit is the unit a patient's weight is recorded in.
type WeightUnit string

// Supported weight units.
const (
	WeightKilograms WeightUnit = "kg"
	WeightPounds    WeightUnit = "lb"
)

// Defaults applied when optional fields are omitted.
const (
	DefaultWeightUnit      = WeightKilograms
	DefaultMedicationUnit  = "mg"
	DefaultFrequencyHours  = 6.0
	DefaultTemperatureUnit = "°C"
)

// DoseStatus summarises whether a medication can be taken now.
type DoseStatus string

// Dose availability states reported per medication.
const (
	StatusDisabled   DoseStatus = "disabled"
	StatusNeverTaken DoseStatus = "never_taken"
	StatusAvailable  DoseStatus = "available"
	StatusWaiting    DoseStatus = "waiting"
)

// Patient is a tracked individual.
type Patient struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Weight     *float64   `json:"weight,omitempty"`
	WeightUnit WeightUnit `json:"weight_unit"`
	Age        *int       `json:"age,omitempty"`
}

// PatientPatch carries the fields to merge into an existing patient. Nil
// fields are left untouched.
type PatientPatch struct {
	Name       *string     `json:"name,omitempty"`
	Weight     *float64    `json:"weight,omitempty"`
	WeightUnit *WeightUnit `json:"weight_unit,omitempty"`
	Age        *int        `json:"age,omitempty"`
}

// Medication is a dosing regimen belonging to one patient.
type Medication struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	Name           string    `json:"name"`
	Dosage         *float64  `json:"dosage,omitempty"`
	Unit           string    `json:"unit"`
	FrequencyHours Frequency `json:"frequency_hours"`
	// MaxDailyDoses is informational and never enforced.
	MaxDailyDoses *int   `json:"max_daily_doses,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
	Disabled      bool   `json:"disabled"`
	Temporary     bool   `json:"temporary"`
}

// Dose is one administered dose of a medication.
type Dose struct {
	Timestamp string   `json:"timestamp"`
	Amount    *float64 `json:"amount,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Temperature is one temperature reading for a patient.
type Temperature struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
}

// NextDoseState is the derived availability of a medication at refresh time.
type NextDoseState struct {
	AvailableNow   bool       `json:"available_now"`
	NextTime       *time.Time `json:"next_time"`
	LastDoseTime   *time.Time `json:"last_dose_time,omitempty"`
	LastDoseAmount *float64   `json:"last_dose_amount,omitempty"`
	LastDoseUnit   string     `json:"last_dose_unit,omitempty"`
	Status         DoseStatus `json:"status"`
}

// MedicationSummary aggregates dose history for presentation layers.
type MedicationSummary struct {
	TotalDoses       int     `json:"total_doses"`
	OnTimeDoses      int     `json:"on_time_doses"`
	AdherencePercent float64 `json:"adherence_percent"`
	DosesLast24h     int     `json:"doses_last_24h"`
	History          []Dose  `json:"history"`
}
