package repository

import (
	"medtracker/pkg/domain"
)

func applyMedicationDefaults(m *domain.Medication) {
	if m.Unit == "" {
		m.Unit = domain.DefaultMedicationUnit
	}
	if m.FrequencyHours == 0 {
		m.FrequencyHours = domain.DefaultFrequencyHours
	}
}

// AddMedication stores m for an existing patient. It returns false when the
// referenced patient does not exist.
func (r *Repository) AddMedication(m domain.Medication) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.Patients[m.PatientID]; !ok {
		return "", false
	}
	m.ID = r.allocID(m.ID)
	applyMedicationDefaults(&m)
	r.state.Medications[m.ID] = domain.CloneMedication(m)
	r.log.Debug("medication added", "medication", m.ID, "patient", m.PatientID)
	return m.ID, true
}

// UpdateMedication replaces every field of the medication except its id. An
// empty PatientID keeps the current owner; a different owner must exist.
func (r *Repository) UpdateMedication(id string, m domain.Medication) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.state.Medications[id]
	if !ok {
		return false
	}
	if m.PatientID == "" {
		m.PatientID = current.PatientID
	} else if _, exists := r.state.Patients[m.PatientID]; !exists {
		return false
	}
	m.ID = id
	applyMedicationDefaults(&m)
	r.state.Medications[id] = domain.CloneMedication(m)
	return true
}

// ToggleMedicationStatus sets disabled to !enabled. Repeating the call with
// the same value is a no-op that still reports success.
func (r *Repository) ToggleMedicationStatus(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.state.Medications[id]
	if !ok {
		return false
	}
	current.Disabled = !enabled
	r.state.Medications[id] = current
	return true
}

// DeleteMedication removes the medication and its dose history.
func (r *Repository) DeleteMedication(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.Medications[id]; !ok {
		return false
	}
	delete(r.state.Doses, id)
	delete(r.state.Medications, id)
	r.retire(id)
	r.log.Debug("medication deleted", "medication", id)
	return true
}

// Medication returns a copy of one medication.
func (r *Repository) Medication(id string) (domain.Medication, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.state.Medications[id]
	if !ok {
		return domain.Medication{}, false
	}
	return domain.CloneMedication(m), true
}

// Medications returns copies keyed by id, filtered to one patient when
// patientID is not empty.
func (r *Repository) Medications(patientID string) map[string]domain.Medication {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Medication)
	for id, m := range r.state.Medications {
		if patientID != "" && m.PatientID != patientID {
			continue
		}
		out[id] = domain.CloneMedication(m)
	}
	return out
}

// AddDose appends d to the medication's history. It returns false when the
// medication is unknown and creates no dose list in that case.
func (r *Repository) AddDose(medicationID string, d domain.Dose) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.Medications[medicationID]; !ok {
		return false
	}
	if d.Timestamp == "" {
		d.Timestamp = r.now()
	}
	r.state.Doses[medicationID] = append(r.state.Doses[medicationID], domain.CloneDoses([]domain.Dose{d})...)
	return true
}

// Doses returns copies of the dose lists, filtered to one medication when
// medicationID is not empty.
func (r *Repository) Doses(medicationID string) map[string][]domain.Dose {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]domain.Dose)
	for id, list := range r.state.Doses {
		if medicationID != "" && id != medicationID {
			continue
		}
		out[id] = domain.CloneDoses(list)
	}
	return out
}
