// Package scheduler derives per-medication dose availability from dose
// history. Every function here is pure: the caller supplies "now" and the
// inputs, and nothing is cached between calls.
package scheduler

import (
	"errors"
	"fmt"
	"math"
	"time"

	"medtracker/internal/platform/logging"
	"medtracker/pkg/domain"
)

// Option configures a computation.
type Option func(*settings)

type settings struct {
	loc *time.Location
	log logging.Logger
}

// WithLocation sets the zone used for timestamps stored without an offset.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger that receives fail-open warnings.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

func resolve(opts []Option) settings {
	s := settings{loc: time.UTC, log: logging.Noop{}}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

var errBadFrequency = errors.New("frequency is not a usable number of hours")

type latestDose struct {
	at   time.Time
	dose domain.Dose
}

// findLatest returns the dose with the greatest instant. Equal instants
// resolve to the later entry in the list. The first parse error is returned
// alongside whatever was found among the parseable doses.
func findLatest(doses []domain.Dose, loc *time.Location) (*latestDose, error) {
	var (
		best     *latestDose
		firstErr error
	)
	for i := range doses {
		at, err := domain.ParseTimestamp(doses[i].Timestamp, loc)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("dose %d: %w", i, err)
			}
			continue
		}
		if best == nil || !at.Before(best.at) {
			best = &latestDose{at: at, dose: doses[i]}
		}
	}
	return best, firstErr
}

// ComputeNextDoses returns the availability state of every medication in
// meds. Bad data never produces an error: a medication whose history or
// frequency cannot be evaluated is reported as available.
func ComputeNextDoses(meds map[string]domain.Medication, doses map[string][]domain.Dose, now time.Time, opts ...Option) map[string]domain.NextDoseState {
	s := resolve(opts)
	out := make(map[string]domain.NextDoseState, len(meds))
	for id, med := range meds {
		out[id] = nextDose(id, med, doses[id], now, s)
	}
	return out
}

func nextDose(id string, med domain.Medication, history []domain.Dose, now time.Time, s settings) domain.NextDoseState {
	if med.Disabled {
		return domain.NextDoseState{AvailableNow: false, Status: domain.StatusDisabled}
	}
	if len(history) == 0 {
		return domain.NextDoseState{AvailableNow: true, Status: domain.StatusNeverTaken}
	}

	latest, err := findLatest(history, s.loc)
	if err == nil && !med.FrequencyHours.Valid() {
		err = errBadFrequency
	}
	if err != nil {
		s.log.Warn("next dose falls back to available", "medication", id, "error", err)
		state := domain.NextDoseState{AvailableNow: true, Status: domain.StatusAvailable}
		if latest != nil {
			fillLastDose(&state, latest)
		}
		return state
	}

	due := latest.at.Add(interval(med.FrequencyHours))
	state := domain.NextDoseState{AvailableNow: !now.Before(due)}
	fillLastDose(&state, latest)
	if state.AvailableNow {
		state.Status = domain.StatusAvailable
	} else {
		state.Status = domain.StatusWaiting
		state.NextTime = &due
	}
	return state
}

// interval converts a valid frequency to a duration, saturating at the largest
// representable duration instead of wrapping around.
func interval(f domain.Frequency) time.Duration {
	hours := f.Hours()
	if hours >= float64(math.MaxInt64/int64(time.Hour)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(hours * float64(time.Hour))
}

func fillLastDose(state *domain.NextDoseState, latest *latestDose) {
	at := latest.at
	state.LastDoseTime = &at
	if latest.dose.Amount != nil {
		amount := *latest.dose.Amount
		state.LastDoseAmount = &amount
	}
	state.LastDoseUnit = latest.dose.Unit
}
