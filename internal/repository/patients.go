package repository

import (
	"sort"

	"medtracker/pkg/domain"
)

// AddPatient stores p with defaults applied and returns its id.
func (r *Repository) AddPatient(p domain.Patient) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.allocID(p.ID)
	if p.WeightUnit == "" {
		p.WeightUnit = domain.DefaultWeightUnit
	}
	r.state.Patients[p.ID] = domain.ClonePatient(p)
	r.log.Debug("patient added", "patient", p.ID)
	return p.ID
}

// UpdatePatient merges the non-nil fields of patch into the patient.
func (r *Repository) UpdatePatient(id string, patch domain.PatientPatch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.state.Patients[id]
	if !ok {
		return false
	}
	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Weight != nil {
		w := *patch.Weight
		current.Weight = &w
	}
	if patch.WeightUnit != nil {
		current.WeightUnit = *patch.WeightUnit
	}
	if patch.Age != nil {
		a := *patch.Age
		current.Age = &a
	}
	r.state.Patients[id] = current
	return true
}

// DeletePatient removes the patient together with its medications, their
// doses, and its temperature readings.
func (r *Repository) DeletePatient(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.Patients[id]; !ok {
		return false
	}
	for medID, med := range r.state.Medications {
		if med.PatientID != id {
			continue
		}
		delete(r.state.Doses, medID)
		delete(r.state.Medications, medID)
		r.retire(medID)
	}
	delete(r.state.Temperatures, id)
	delete(r.state.Patients, id)
	r.retire(id)
	r.log.Debug("patient deleted", "patient", id)
	return true
}

// Patient returns a copy of one patient.
func (r *Repository) Patient(id string) (domain.Patient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.state.Patients[id]
	if !ok {
		return domain.Patient{}, false
	}
	return domain.ClonePatient(p), true
}

// Patients returns copies of all patients keyed by id.
func (r *Repository) Patients() map[string]domain.Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Patient, len(r.state.Patients))
	for id, p := range r.state.Patients {
		out[id] = domain.ClonePatient(p)
	}
	return out
}

// PatientIDs returns patient ids in lexical order.
func (r *Repository) PatientIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.state.Patients))
	for id := range r.state.Patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddTemperature appends a reading to the patient's history. It returns false
// when the patient is unknown.
func (r *Repository) AddTemperature(patientID string, t domain.Temperature) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.Patients[patientID]; !ok {
		return false
	}
	if t.Timestamp == "" {
		t.Timestamp = r.now()
	}
	if t.Unit == "" {
		t.Unit = domain.DefaultTemperatureUnit
	}
	r.state.Temperatures[patientID] = append(r.state.Temperatures[patientID], t)
	return true
}

// Temperatures returns copies of the reading lists. An empty patientID
// returns every list; otherwise only that patient's list is included.
func (r *Repository) Temperatures(patientID string) map[string][]domain.Temperature {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]domain.Temperature)
	for id, list := range r.state.Temperatures {
		if patientID != "" && id != patientID {
			continue
		}
		out[id] = append([]domain.Temperature(nil), list...)
	}
	return out
}
