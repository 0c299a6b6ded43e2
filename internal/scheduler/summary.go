package scheduler

import (
	"sort"
	"time"

	"medtracker/pkg/domain"
)

// HistoryLimit is the number of recent doses included in a summary.
const HistoryLimit = 10

type timedDose struct {
	at    time.Time
	index int
	dose  domain.Dose
}

// sortedDoses orders parseable doses oldest first, keeping insertion order
// for equal instants. Unparseable doses are dropped.
func sortedDoses(list []domain.Dose, loc *time.Location) []timedDose {
	out := make([]timedDose, 0, len(list))
	for i, d := range list {
		at, err := domain.ParseTimestamp(d.Timestamp, loc)
		if err != nil {
			continue
		}
		out = append(out, timedDose{at: at, index: i, dose: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

// Summarize aggregates the dose history of every medication in meds.
// Adherence counts a dose as on time when at least the medication's frequency
// elapsed since the previous dose; the first dose is always on time.
func Summarize(meds map[string]domain.Medication, doses map[string][]domain.Dose, now time.Time, opts ...Option) map[string]domain.MedicationSummary {
	s := resolve(opts)
	out := make(map[string]domain.MedicationSummary, len(meds))
	dayAgo := now.Add(-24 * time.Hour)
	for id, med := range meds {
		ordered := sortedDoses(doses[id], s.loc)
		sum := domain.MedicationSummary{TotalDoses: len(doses[id]), History: []domain.Dose{}}

		var gap time.Duration
		if med.FrequencyHours.Valid() {
			gap = time.Duration(med.FrequencyHours.Hours() * float64(time.Hour))
		}
		for i, td := range ordered {
			if i == 0 || td.at.Sub(ordered[i-1].at) >= gap {
				sum.OnTimeDoses++
			}
			if td.at.After(dayAgo) && !td.at.After(now) {
				sum.DosesLast24h++
			}
		}
		if len(ordered) > 0 {
			sum.AdherencePercent = float64(sum.OnTimeDoses) / float64(len(ordered)) * 100
		}
		for i := len(ordered) - 1; i >= 0 && len(sum.History) < HistoryLimit; i-- {
			sum.History = append(sum.History, domain.CloneDoses([]domain.Dose{ordered[i].dose})...)
		}
		out[id] = sum
	}
	return out
}

// LatestTemperatures returns the most recent parseable reading per patient.
// Patients with no parseable reading are omitted.
func LatestTemperatures(temps map[string][]domain.Temperature, opts ...Option) map[string]domain.Temperature {
	s := resolve(opts)
	out := make(map[string]domain.Temperature, len(temps))
	for patientID, list := range temps {
		var (
			best  domain.Temperature
			bestT time.Time
			found bool
		)
		for _, reading := range list {
			at, err := domain.ParseTimestamp(reading.Timestamp, s.loc)
			if err != nil {
				continue
			}
			if !found || !at.Before(bestT) {
				best, bestT, found = reading, at, true
			}
		}
		if found {
			out[patientID] = best
		}
	}
	return out
}
