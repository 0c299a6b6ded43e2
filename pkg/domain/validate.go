package domain

import (
	"fmt"
	"math"
	"strings"
)

func invalid(entity EntityType, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func validWeightUnit(u WeightUnit) bool {
	return u == "" || u == WeightKilograms || u == WeightPounds
}

// ValidatePatient checks a patient submitted for creation.
func ValidatePatient(p Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid(EntityPatient, "name", "is required")
	}
	if p.Weight != nil && (!finite(*p.Weight) || *p.Weight < 0) {
		return invalid(EntityPatient, "weight", "must be a non-negative number")
	}
	if !validWeightUnit(p.WeightUnit) {
		return invalid(EntityPatient, "weight_unit", `must be "kg" or "lb"`)
	}
	if p.Age != nil && *p.Age < 0 {
		return invalid(EntityPatient, "age", "must not be negative")
	}
	return nil
}

// ValidatePatientPatch checks the fields present in a patch.
func ValidatePatientPatch(p PatientPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid(EntityPatient, "name", "must not be blank")
	}
	if p.Weight != nil && (!finite(*p.Weight) || *p.Weight < 0) {
		return invalid(EntityPatient, "weight", "must be a non-negative number")
	}
	if p.WeightUnit != nil && (*p.WeightUnit == "" || !validWeightUnit(*p.WeightUnit)) {
		return invalid(EntityPatient, "weight_unit", `must be "kg" or "lb"`)
	}
	if p.Age != nil && *p.Age < 0 {
		return invalid(EntityPatient, "age", "must not be negative")
	}
	return nil
}

// ValidateMedication checks a medication submitted for creation or replacement.
// requirePatient is false for updates, where an empty patient id keeps the owner.
func ValidateMedication(m Medication, requirePatient bool) error {
	if requirePatient && strings.TrimSpace(m.PatientID) == "" {
		return invalid(EntityMedication, "patient_id", "is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return invalid(EntityMedication, "name", "is required")
	}
	if m.Dosage != nil && (!finite(*m.Dosage) || *m.Dosage < 0) {
		return invalid(EntityMedication, "dosage", "must be a non-negative number")
	}
	if !m.FrequencyHours.Valid() || m.FrequencyHours > MaxFrequencyHours {
		return invalid(EntityMedication, "frequency_hours", fmt.Sprintf("must be between 0 and %g hours", MaxFrequencyHours))
	}
	if m.MaxDailyDoses != nil && *m.MaxDailyDoses < 0 {
		return invalid(EntityMedication, "max_daily_doses", "must not be negative")
	}
	return nil
}

// ValidateDose checks a dose submitted for recording.
func ValidateDose(d Dose) error {
	if d.Timestamp != "" {
		if _, err := ParseTimestamp(d.Timestamp, nil); err != nil {
			return invalid(EntityDose, "timestamp", "is not an ISO-8601 instant")
		}
	}
	if d.Amount != nil && (!finite(*d.Amount) || *d.Amount < 0) {
		return invalid(EntityDose, "amount", "must be a non-negative number")
	}
	return nil
}

// ValidateTemperature checks a temperature reading submitted for recording.
func ValidateTemperature(t Temperature) error {
	if t.Timestamp != "" {
		if _, err := ParseTimestamp(t.Timestamp, nil); err != nil {
			return invalid(EntityTemperature, "timestamp", "is not an ISO-8601 instant")
		}
	}
	if !finite(t.Value) {
		return invalid(EntityTemperature, "value", "must be a number")
	}
	return nil
}
