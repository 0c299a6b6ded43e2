package core

import (
	"context"

	"medtracker/pkg/domain"
)

// AddPatient stores p and returns its id.
func (c *Coordinator) AddPatient(ctx context.Context, p domain.Patient) (string, error) {
	var id string
	_, err := c.mutate(ctx, "add_patient", func() (bool, error) {
		if err := domain.ValidatePatient(p); err != nil {
			return false, err
		}
		id = c.repo.AddPatient(p)
		return true, nil
	})
	return id, err
}

// UpdatePatient merges patch into the patient. It reports false for an unknown id.
func (c *Coordinator) UpdatePatient(ctx context.Context, id string, patch domain.PatientPatch) (bool, error) {
	return c.mutate(ctx, "update_patient", func() (bool, error) {
		if err := domain.ValidatePatientPatch(patch); err != nil {
			return false, err
		}
		return c.repo.UpdatePatient(id, patch), nil
	})
}

// DeletePatient removes the patient together with its medications, doses and
// temperature readings.
func (c *Coordinator) DeletePatient(ctx context.Context, id string) (bool, error) {
	return c.mutate(ctx, "delete_patient", func() (bool, error) {
		return c.repo.DeletePatient(id), nil
	})
}

// AddMedication stores m and returns its id, or "" when the patient is unknown.
func (c *Coordinator) AddMedication(ctx context.Context, m domain.Medication) (string, error) {
	var id string
	_, err := c.mutate(ctx, "add_medication", func() (bool, error) {
		if err := domain.ValidateMedication(m, true); err != nil {
			return false, err
		}
		var ok bool
		id, ok = c.repo.AddMedication(m)
		return ok, nil
	})
	return id, err
}

// UpdateMedication replaces the medication's fields, keeping its id.
func (c *Coordinator) UpdateMedication(ctx context.Context, id string, m domain.Medication) (bool, error) {
	return c.mutate(ctx, "update_medication", func() (bool, error) {
		if err := domain.ValidateMedication(m, false); err != nil {
			return false, err
		}
		return c.repo.UpdateMedication(id, m), nil
	})
}

// ToggleMedicationStatus enables or disables a medication.
func (c *Coordinator) ToggleMedicationStatus(ctx context.Context, id string, enabled bool) (bool, error) {
	return c.mutate(ctx, "toggle_medication", func() (bool, error) {
		return c.repo.ToggleMedicationStatus(id, enabled), nil
	})
}

// DeleteMedication removes the medication and its dose history.
func (c *Coordinator) DeleteMedication(ctx context.Context, id string) (bool, error) {
	return c.mutate(ctx, "delete_medication", func() (bool, error) {
		return c.repo.DeleteMedication(id), nil
	})
}

// RecordDose appends a dose to the medication's history.
func (c *Coordinator) RecordDose(ctx context.Context, medicationID string, d domain.Dose) (bool, error) {
	return c.mutate(ctx, "record_dose", func() (bool, error) {
		if err := domain.ValidateDose(d); err != nil {
			return false, err
		}
		return c.repo.AddDose(medicationID, d), nil
	})
}

// RecordDefaultDose records a dose taken now using the medication's configured
// dosage and unit.
func (c *Coordinator) RecordDefaultDose(ctx context.Context, medicationID string) (bool, error) {
	return c.mutate(ctx, "record_dose", func() (bool, error) {
		m, ok := c.repo.Medication(medicationID)
		if !ok {
			return false, nil
		}
		return c.repo.AddDose(medicationID, domain.Dose{Amount: m.Dosage, Unit: m.Unit}), nil
	})
}

// RecordTemperature appends a temperature reading for the patient.
func (c *Coordinator) RecordTemperature(ctx context.Context, patientID string, t domain.Temperature) (bool, error) {
	return c.mutate(ctx, "record_temperature", func() (bool, error) {
		if err := domain.ValidateTemperature(t); err != nil {
			return false, err
		}
		return c.repo.AddTemperature(patientID, t), nil
	})
}
