package domain

import "fmt"

// DocumentVersion is the storage schema version written by this build.
const DocumentVersion = 1

// Document is the full persisted dataset. Doses are keyed by medication id and
// temperatures by patient id; each list keeps insertion order.
type Document struct {
	Version      int                      `json:"version"`
	Patients     map[string]Patient       `json:"patients"`
	Medications  map[string]Medication    `json:"medications"`
	Doses        map[string][]Dose        `json:"doses"`
	Temperatures map[string][]Temperature `json:"temperatures"`
	// RetiredIDs lists deleted patient and medication ids, sorted. They are
	// never handed out again.
	RetiredIDs []string `json:"retired_ids,omitempty"`
}

// NewDocument returns an empty document tagged with the current version.
func NewDocument() Document {
	return Document{
		Version:      DocumentVersion,
		Patients:     map[string]Patient{},
		Medications:  map[string]Medication{},
		Doses:        map[string][]Dose{},
		Temperatures: map[string][]Temperature{},
	}
}

// Normalize fills nil collections and stamps a missing version. Documents
// written by a newer schema are rejected.
func (d Document) Normalize() (Document, error) {
	if d.Version > DocumentVersion {
		return Document{}, fmt.Errorf("document version %d is newer than supported version %d", d.Version, DocumentVersion)
	}
	if d.Version == 0 {
		d.Version = DocumentVersion
	}
	if d.Patients == nil {
		d.Patients = map[string]Patient{}
	}
	if d.Medications == nil {
		d.Medications = map[string]Medication{}
	}
	if d.Doses == nil {
		d.Doses = map[string][]Dose{}
	}
	if d.Temperatures == nil {
		d.Temperatures = map[string][]Temperature{}
	}
	return d, nil
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{
		Version:      d.Version,
		Patients:     make(map[string]Patient, len(d.Patients)),
		Medications:  make(map[string]Medication, len(d.Medications)),
		Doses:        make(map[string][]Dose, len(d.Doses)),
		Temperatures: make(map[string][]Temperature, len(d.Temperatures)),
		RetiredIDs:   append([]string(nil), d.RetiredIDs...),
	}
	for k, v := range d.Patients {
		out.Patients[k] = ClonePatient(v)
	}
	for k, v := range d.Medications {
		out.Medications[k] = CloneMedication(v)
	}
	for k, v := range d.Doses {
		out.Doses[k] = CloneDoses(v)
	}
	for k, v := range d.Temperatures {
		out.Temperatures[k] = append([]Temperature(nil), v...)
	}
	return out
}

// ClonePatient copies pointer fields so the result shares no memory with p.
func ClonePatient(p Patient) Patient {
	cp := p
	if p.Weight != nil {
		w := *p.Weight
		cp.Weight = &w
	}
	if p.Age != nil {
		a := *p.Age
		cp.Age = &a
	}
	return cp
}

// CloneMedication copies pointer fields so the result shares no memory with m.
func CloneMedication(m Medication) Medication {
	cp := m
	if m.Dosage != nil {
		d := *m.Dosage
		cp.Dosage = &d
	}
	if m.MaxDailyDoses != nil {
		n := *m.MaxDailyDoses
		cp.MaxDailyDoses = &n
	}
	return cp
}

// CloneDoses deep-copies a dose list.
func CloneDoses(in []Dose) []Dose {
	if in == nil {
		return nil
	}
	out := make([]Dose, len(in))
	for i, d := range in {
		out[i] = d
		if d.Amount != nil {
			a := *d.Amount
			out[i].Amount = &a
		}
	}
	return out
}
