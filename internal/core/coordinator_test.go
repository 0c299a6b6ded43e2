package core

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"medtracker/internal/infra/persistence/memory"
	"medtracker/pkg/domain"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func ptr[T any](v T) *T { return &v }

func mustStored(t *testing.T, gw *memory.Gateway) domain.Document {
	t.Helper()
	doc, ok := gw.Stored()
	if !ok {
		t.Fatalf("nothing stored")
	}
	return doc
}

func newReady(t *testing.T, gw domain.Gateway, opts ...Option) *Coordinator {
	t.Helper()
	c := NewCoordinator(gw, opts...)
	if err := c.Setup(context.Background()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return c
}

func TestEndToEndDoseScheduling(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	gw := memory.New()
	c := newReady(t, gw, WithClock(clock))

	patientID, err := c.AddPatient(ctx, domain.Patient{Name: "Alice"})
	if err != nil || patientID == "" {
		t.Fatalf("add patient: %q %v", patientID, err)
	}
	medID, err := c.AddMedication(ctx, domain.Medication{
		PatientID:      patientID,
		Name:           "Ibuprofen",
		FrequencyHours: 6,
		Unit:           "mg",
		Dosage:         ptr(200.0),
	})
	if err != nil || medID == "" {
		t.Fatalf("add medication: %q %v", medID, err)
	}
	ok, err := c.RecordDose(ctx, medID, domain.Dose{Timestamp: "2024-01-01T08:00:00", Amount: ptr(200.0), Unit: "mg"})
	if err != nil || !ok {
		t.Fatalf("record dose: %v %v", ok, err)
	}

	clock.Set(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	snap, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	state := snap.NextDoses[medID]
	if state.AvailableNow || state.Status != domain.StatusWaiting {
		t.Fatalf("expected waiting, got %+v", state)
	}
	if state.NextTime == nil || !state.NextTime.Equal(time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next time %v", state.NextTime)
	}
	if state.LastDoseTime == nil || !state.LastDoseTime.Equal(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last dose time %v", state.LastDoseTime)
	}
	if state.LastDoseAmount == nil || *state.LastDoseAmount != 200 || state.LastDoseUnit != "mg" {
		t.Fatalf("unexpected last dose fields %+v", state)
	}
	if gw.Saves() != 3 {
		t.Fatalf("expected one save per mutation, got %d", gw.Saves())
	}
	stored := mustStored(t, gw)
	if _, ok := stored.Medications[medID]; !ok {
		t.Fatalf("medication not persisted")
	}
}

func TestSetupLoadsExistingDocument(t *testing.T) {
	doc := domain.NewDocument()
	doc.Patients["p1"] = domain.Patient{ID: "p1", Name: "Alice", WeightUnit: domain.WeightKilograms}
	doc.Medications["m1"] = domain.Medication{ID: "m1", PatientID: "p1", Name: "Ibuprofen", Unit: "mg", FrequencyHours: 6}
	c := newReady(t, memory.NewWithDocument(doc))

	snap, ok := c.Latest()
	if !ok {
		t.Fatalf("expected snapshot after setup")
	}
	if snap.NextDoses["m1"].Status != domain.StatusNeverTaken || !snap.NextDoses["m1"].AvailableNow {
		t.Fatalf("unexpected next dose %+v", snap.NextDoses["m1"])
	}
	if snap.NextDoses["m1"].NextTime != nil {
		t.Fatalf("never taken medication must not carry a next time")
	}
}

func TestSetupLoadFailureIsFatal(t *testing.T) {
	gw := memory.New()
	gw.FailLoad(errors.New("disk gone"))
	c := NewCoordinator(gw)
	err := c.Setup(context.Background())
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) || pe.Op != "load" {
		t.Fatalf("expected load PersistenceError, got %v", err)
	}
	if _, err := c.AddPatient(context.Background(), domain.Patient{Name: "Alice"}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady after failed setup, got %v", err)
	}
	if _, ok := c.Latest(); ok {
		t.Fatalf("no snapshot expected after failed setup")
	}
}

func TestOperationsBeforeSetup(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(memory.New())
	if _, err := c.Refresh(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("refresh: expected ErrNotReady, got %v", err)
	}
	if _, err := c.DeleteMedication(ctx, "x"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("delete: expected ErrNotReady, got %v", err)
	}
}

func TestValidationErrorsLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	c := newReady(t, gw)
	before, _ := c.Latest()

	_, err := c.AddPatient(ctx, domain.Patient{Name: "  "})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if _, err := c.RecordTemperature(ctx, "p1", domain.Temperature{Timestamp: "yesterday", Value: 37}); !errors.As(err, &ve) {
		t.Fatalf("expected timestamp validation error, got %v", err)
	}
	after, _ := c.Latest()
	if gw.Saves() != 0 || !after.RefreshedAt.Equal(before.RefreshedAt) || len(after.Patients) != 0 {
		t.Fatalf("rejected mutation must not save or refresh")
	}
}

func TestUnknownReferencesReturnFalse(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	c := newReady(t, gw)

	id, err := c.AddMedication(ctx, domain.Medication{PatientID: "ghost", Name: "Ibuprofen"})
	if err != nil || id != "" {
		t.Fatalf("expected orphan medication to be rejected, got %q %v", id, err)
	}
	checks := map[string]func() (bool, error){
		"delete medication": func() (bool, error) { return c.DeleteMedication(ctx, "does-not-exist") },
		"delete patient":    func() (bool, error) { return c.DeletePatient(ctx, "does-not-exist") },
		"toggle":            func() (bool, error) { return c.ToggleMedicationStatus(ctx, "nope", false) },
		"dose":              func() (bool, error) { return c.RecordDose(ctx, "nope", domain.Dose{}) },
		"default dose":      func() (bool, error) { return c.RecordDefaultDose(ctx, "nope") },
		"temperature":       func() (bool, error) { return c.RecordTemperature(ctx, "nope", domain.Temperature{Value: 37}) },
		"update patient":    func() (bool, error) { return c.UpdatePatient(ctx, "nope", domain.PatientPatch{}) },
		"update medication": func() (bool, error) { return c.UpdateMedication(ctx, "nope", domain.Medication{Name: "x"}) },
	}
	for name, fn := range checks {
		ok, err := fn()
		if ok || err != nil {
			t.Fatalf("%s: expected false without error, got %v %v", name, ok, err)
		}
	}
	if gw.Saves() != 0 {
		t.Fatalf("failed operations must not save, got %d saves", gw.Saves())
	}
}

func TestSaveFailureKeepsChangeInMemory(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	c := newReady(t, gw)
	gw.FailSave(errors.New("read-only"))

	id, err := c.AddPatient(ctx, domain.Patient{Name: "Alice"})
	var pe *domain.PersistenceError
	if !errors.As(err, &pe) || pe.Op != "save" {
		t.Fatalf("expected save PersistenceError, got %v", err)
	}
	if id == "" {
		t.Fatalf("id must be returned alongside the persistence error")
	}
	snap, _ := c.Latest()
	if _, ok := snap.Patients[id]; !ok {
		t.Fatalf("change must stay in memory and be published")
	}

	gw.FailSave(nil)
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, ok := mustStored(t, gw).Patients[id]; !ok {
		t.Fatalf("final save should persist held changes")
	}
}

func TestToggleAndDisabledPrecedence(t *testing.T) {
	ctx := context.Background()
	c := newReady(t, memory.New())
	pid, _ := c.AddPatient(ctx, domain.Patient{Name: "Alice"})
	mid, _ := c.AddMedication(ctx, domain.Medication{PatientID: pid, Name: "Ibuprofen"})

	for i := 0; i < 2; i++ {
		ok, err := c.ToggleMedicationStatus(ctx, mid, false)
		if !ok || err != nil {
			t.Fatalf("toggle: %v %v", ok, err)
		}
	}
	snap, _ := c.Latest()
	if !snap.Medications[mid].Disabled || snap.NextDoses[mid].Status != domain.StatusDisabled || snap.NextDoses[mid].AvailableNow {
		t.Fatalf("expected disabled medication, got %+v", snap.NextDoses[mid])
	}
	if ok, _ := c.ToggleMedicationStatus(ctx, mid, true); !ok {
		t.Fatalf("re-enable failed")
	}
	snap, _ = c.Latest()
	if snap.NextDoses[mid].Status != domain.StatusNeverTaken {
		t.Fatalf("expected never_taken after enabling, got %s", snap.NextDoses[mid].Status)
	}
}

func TestRepeatedEnableKeepsNextDose(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	c := newReady(t, memory.New(), WithClock(clock))
	pid, _ := c.AddPatient(ctx, domain.Patient{Name: "Alice"})
	mid, _ := c.AddMedication(ctx, domain.Medication{PatientID: pid, Name: "Ibuprofen", FrequencyHours: 6})
	if ok, err := c.RecordDose(ctx, mid, domain.Dose{Timestamp: "2024-01-01T09:00:00Z"}); !ok || err != nil {
		t.Fatalf("record dose: %v %v", ok, err)
	}

	var states []domain.NextDoseState
	for i := 0; i < 2; i++ {
		if ok, err := c.ToggleMedicationStatus(ctx, mid, true); !ok || err != nil {
			t.Fatalf("toggle %d: %v %v", i, ok, err)
		}
		snap, _ := c.Latest()
		states = append(states, snap.NextDoses[mid])
	}
	if states[0].Status != domain.StatusWaiting {
		t.Fatalf("expected waiting, got %+v", states[0])
	}
	if !reflect.DeepEqual(states[0], states[1]) {
		t.Fatalf("next dose changed between enable calls: %+v vs %+v", states[0], states[1])
	}
}

func TestDeletedIDNotReusedAfterRestart(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	c := newReady(t, gw)
	pid, _ := c.AddPatient(ctx, domain.Patient{ID: "p-1", Name: "Alice"})
	mid, _ := c.AddMedication(ctx, domain.Medication{ID: "m-1", PatientID: pid, Name: "Ibuprofen"})
	if pid != "p-1" || mid != "m-1" {
		t.Fatalf("supplied ids not kept: %q %q", pid, mid)
	}
	if ok, err := c.DeletePatient(ctx, pid); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	restarted := newReady(t, gw)
	again, err := restarted.AddPatient(ctx, domain.Patient{ID: "p-1", Name: "Bob"})
	if err != nil || again == "" || again == "p-1" {
		t.Fatalf("deleted patient id reused after restart: %q %v", again, err)
	}
	med, err := restarted.AddMedication(ctx, domain.Medication{ID: "m-1", PatientID: again, Name: "Paracetamol"})
	if err != nil || med == "" || med == "m-1" {
		t.Fatalf("deleted medication id reused after restart: %q %v", med, err)
	}
}

func TestDeletePatientCascades(t *testing.T) {
	ctx := context.Background()
	c := newReady(t, memory.New())
	pid, _ := c.AddPatient(ctx, domain.Patient{Name: "Alice"})
	mid, _ := c.AddMedication(ctx, domain.Medication{PatientID: pid, Name: "Ibuprofen"})
	if ok, _ := c.RecordDefaultDose(ctx, mid); !ok {
		t.Fatalf("record default dose failed")
	}
	if ok, _ := c.RecordTemperature(ctx, pid, domain.Temperature{Value: 38.4}); !ok {
		t.Fatalf("record temperature failed")
	}
	if ok, err := c.DeletePatient(ctx, pid); !ok || err != nil {
		t.Fatalf("delete patient: %v %v", ok, err)
	}
	snap, _ := c.Latest()
	if len(snap.Patients)+len(snap.Medications)+len(snap.Doses)+len(snap.Temperatures)+len(snap.NextDoses) != 0 {
		t.Fatalf("expected empty snapshot after cascade, got %+v", snap)
	}
}

func TestRecordDefaultDoseUsesMedicationDefaults(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newReady(t, memory.New(), WithClock(clock))
	pid, _ := c.AddPatient(ctx, domain.Patient{Name: "Alice"})
	mid, _ := c.AddMedication(ctx, domain.Medication{PatientID: pid, Name: "Paracetamol", Dosage: ptr(500.0), Unit: "mg", FrequencyHours: 4})
	if ok, err := c.RecordDefaultDose(ctx, mid); !ok || err != nil {
		t.Fatalf("record default dose: %v %v", ok, err)
	}
	snap, _ := c.Latest()
	doses := snap.Doses[mid]
	if len(doses) != 1 || doses[0].Amount == nil || *doses[0].Amount != 500 || doses[0].Unit != "mg" {
		t.Fatalf("unexpected dose %+v", doses)
	}
	state := snap.NextDoses[mid]
	if state.Status != domain.StatusWaiting || !state.NextTime.Equal(clock.Now().Add(4*time.Hour)) {
		t.Fatalf("unexpected state %+v", state)
	}
	sum := snap.Summaries[mid]
	if sum.TotalDoses != 1 || sum.DosesLast24h != 1 || sum.AdherencePercent != 100 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestSubscribersReceiveLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newReady(t, memory.New())
	ch, cancel := c.Subscribe()

	initial := <-ch
	if len(initial.Patients) != 0 {
		t.Fatalf("unexpected initial snapshot")
	}
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		if _, err := c.AddPatient(ctx, domain.Patient{Name: name}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	got := <-ch
	if len(got.Patients) != 3 {
		t.Fatalf("slow subscriber should see newest snapshot, got %d patients", len(got.Patients))
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot %+v", extra)
	default:
	}
	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after cancel")
	}
}

func TestShutdownIsIdempotentAndClosesSubscribers(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	c := newReady(t, gw)
	ch, cancel := c.Subscribe()
	defer cancel()
	<-ch

	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if gw.Saves() != 1 {
		t.Fatalf("expected exactly one final save, got %d", gw.Saves())
	}
	if _, open := <-ch; open {
		t.Fatalf("subscriber channel should be closed")
	}
	if _, err := c.AddPatient(ctx, domain.Patient{Name: "late"}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady after shutdown, got %v", err)
	}
	if err := c.Setup(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("setup after shutdown should fail, got %v", err)
	}
}

func TestShutdownBeforeSetupDoesNotOverwrite(t *testing.T) {
	doc := domain.NewDocument()
	doc.Patients["p1"] = domain.Patient{ID: "p1", Name: "Alice", WeightUnit: domain.WeightKilograms}
	gw := memory.NewWithDocument(doc)
	c := NewCoordinator(gw)
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if gw.Saves() != 0 || mustStored(t, gw).Patients["p1"].Name != "Alice" {
		t.Fatalf("shutdown before setup must not save")
	}
}

func TestPollRefreshesUntilCancelled(t *testing.T) {
	c := newReady(t, memory.New())
	ch, cancel := c.Subscribe()
	defer cancel()
	<-ch

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Poll(ctx, 5*time.Millisecond) }()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("poll did not publish a snapshot")
	}
	stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("poll returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poll did not stop")
	}
}

func TestConcurrentMutationsAreSerialised(t *testing.T) {
	ctx := context.Background()
	gw := memory.New()
	c := newReady(t, gw)
	pid, _ := c.AddPatient(ctx, domain.Patient{Name: "Alice"})
	mid, _ := c.AddMedication(ctx, domain.Medication{PatientID: pid, Name: "Ibuprofen"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = c.RecordDose(ctx, mid, domain.Dose{})
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Refresh(ctx)
		}()
	}
	wg.Wait()
	snap, _ := c.Latest()
	if len(snap.Doses[mid]) != 20 || len(mustStored(t, gw).Doses[mid]) != 20 {
		t.Fatalf("expected 20 doses, got %d in snapshot and %d stored", len(snap.Doses[mid]), len(mustStored(t, gw).Doses[mid]))
	}
}
