package scheduler

import (
	"fmt"
	"testing"
	"time"

	"medtracker/pkg/domain"
)

func TestSummarizeAdherence(t *testing.T) {
	meds := map[string]domain.Medication{"m1": {ID: "m1", FrequencyHours: 6}}
	doses := map[string][]domain.Dose{"m1": {
		{Timestamp: "2024-01-01T08:00:00"},
		{Timestamp: "2024-01-01T14:00:00"},
		{Timestamp: "2024-01-01T16:00:00"},
		{Timestamp: "2024-01-01T23:00:00"},
	}}
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	sum := Summarize(meds, doses, now)["m1"]
	if sum.TotalDoses != 4 || sum.OnTimeDoses != 3 {
		t.Fatalf("unexpected counts %+v", sum)
	}
	if sum.AdherencePercent != 75 {
		t.Fatalf("expected 75%% adherence, got %v", sum.AdherencePercent)
	}
	if sum.DosesLast24h != 3 {
		t.Fatalf("expected 3 doses in the last 24h, got %d", sum.DosesLast24h)
	}
	if sum.History[0].Timestamp != "2024-01-01T23:00:00" {
		t.Fatalf("history must be newest first, got %v", sum.History)
	}
}

func TestSummarizeEmptyAndCapped(t *testing.T) {
	meds := map[string]domain.Medication{
		"empty": {ID: "empty"},
		"busy":  {ID: "busy", FrequencyHours: 1},
	}
	var busy []domain.Dose
	for i := 0; i < 15; i++ {
		busy = append(busy, domain.Dose{Timestamp: fmt.Sprintf("2024-01-01T%02d:00:00", i)})
	}
	out := Summarize(meds, map[string][]domain.Dose{"busy": busy}, time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC))
	if e := out["empty"]; e.TotalDoses != 0 || e.AdherencePercent != 0 || len(e.History) != 0 {
		t.Fatalf("unexpected empty summary %+v", e)
	}
	b := out["busy"]
	if len(b.History) != HistoryLimit || b.History[0].Timestamp != "2024-01-01T14:00:00" {
		t.Fatalf("unexpected capped history %+v", b.History)
	}
	if b.AdherencePercent != 100 {
		t.Fatalf("expected full adherence, got %v", b.AdherencePercent)
	}
}

func TestLatestTemperatures(t *testing.T) {
	temps := map[string][]domain.Temperature{
		"p1": {
			{Timestamp: "2024-01-01T10:00:00", Value: 38.5},
			{Timestamp: "2024-01-01T09:00:00", Value: 37.0},
			{Timestamp: "garbage", Value: 40},
		},
		"p2": {{Timestamp: "garbage", Value: 36}},
	}
	out := LatestTemperatures(temps)
	if out["p1"].Value != 38.5 {
		t.Fatalf("expected latest reading 38.5, got %+v", out["p1"])
	}
	if _, ok := out["p2"]; ok {
		t.Fatalf("patient with only unparseable readings must be omitted")
	}
}
