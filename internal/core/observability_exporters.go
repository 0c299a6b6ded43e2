package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"medtracker/pkg/domain"
)

// PrometheusMetricsRecorder exports operation timings, outcome counters and
// the number of medications per dose status.
type PrometheusMetricsRecorder struct {
	durations   *prometheus.HistogramVec
	operations  *prometheus.CounterVec
	medications *prometheus.GaugeVec
}

var doseStatuses = []domain.DoseStatus{
	domain.StatusDisabled,
	domain.StatusNeverTaken,
	domain.StatusAvailable,
	domain.StatusWaiting,
}

// NewPrometheusMetricsRecorder registers the recorder's collectors with reg,
// or with the default registerer when reg is nil.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medtracker_operation_duration_seconds",
			Help:    "Duration of coordinator operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medtracker_operations_total",
			Help: "Coordinator operations by outcome.",
		}, []string{"operation", "status"}),
		medications: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "medtracker_medications",
			Help: "Medications per dose status at the last refresh.",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{rec.durations, rec.operations, rec.medications} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return rec, nil
}

// Observe records a coordinator operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation, status).Observe(duration.Seconds())
	r.operations.WithLabelValues(operation, status).Inc()
}

// RecordSnapshot updates the per-status medication gauge.
func (r *PrometheusMetricsRecorder) RecordSnapshot(snapshot Snapshot) {
	counts := make(map[domain.DoseStatus]int, len(doseStatuses))
	for _, state := range snapshot.NextDoses {
		counts[state.Status]++
	}
	for _, status := range doseStatuses {
		r.medications.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// JSONTraceEntry represents a serialized trace span emitted by JSONTraceTracer.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes spans as JSON lines and retains them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
	clock   Clock
}

// NewJSONTracer constructs a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{clock: ClockFunc(nil)}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{tracer: t, operation: operation, started: t.clock.Now()}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := s.tracer.clock.Now()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}
