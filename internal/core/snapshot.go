package core

import (
	"time"

	"medtracker/internal/scheduler"
	"medtracker/pkg/domain"
)

// Snapshot is the derived view published after every refresh. Every section
// is keyed by entity id. Published snapshots are shared between readers and
// must be treated as read-only.
type Snapshot struct {
	Patients           map[string]domain.Patient           `json:"patients"`
	Medications        map[string]domain.Medication        `json:"medications"`
	Doses              map[string][]domain.Dose            `json:"doses"`
	Temperatures       map[string][]domain.Temperature     `json:"temperatures"`
	NextDoses          map[string]domain.NextDoseState     `json:"next_doses"`
	Summaries          map[string]domain.MedicationSummary `json:"summaries"`
	LatestTemperatures map[string]domain.Temperature       `json:"latest_temperatures"`
	RefreshedAt        time.Time                           `json:"refreshed_at"`
}

func buildSnapshot(doc domain.Document, now time.Time, opts ...scheduler.Option) Snapshot {
	return Snapshot{
		Patients:           doc.Patients,
		Medications:        doc.Medications,
		Doses:              doc.Doses,
		Temperatures:       doc.Temperatures,
		NextDoses:          scheduler.ComputeNextDoses(doc.Medications, doc.Doses, now, opts...),
		Summaries:          scheduler.Summarize(doc.Medications, doc.Doses, now, opts...),
		LatestTemperatures: scheduler.LatestTemperatures(doc.Temperatures, opts...),
		RefreshedAt:        now,
	}
}
