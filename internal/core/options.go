package core

import (
	"context"
	"time"

	"medtracker/internal/platform/logging"
)

// Clock provides the current time to the coordinator.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now returns the current time in UTC. A nil ClockFunc reads the system clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Logger is the structured logger the coordinator writes to.
type Logger = logging.Logger

// Default timings applied when options are omitted.
const (
	DefaultPollInterval = time.Minute
	DefaultSaveTimeout  = 10 * time.Second
)

// Option configures a Coordinator.
type Option func(*coordinatorOptions)

type coordinatorOptions struct {
	clock       Clock
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
	saveTimeout time.Duration
	location    *time.Location
	seed        *Seed
}

func defaultOptions() coordinatorOptions {
	return coordinatorOptions{
		clock:       ClockFunc(nil),
		logger:      logging.Noop{},
		metrics:     noopMetricsRecorder{},
		tracer:      noopTracer{},
		saveTimeout: DefaultSaveTimeout,
		location:    time.UTC,
	}
}

// WithClock overrides the clock used for refreshes and default timestamps.
func WithClock(clock Clock) Option {
	return func(o *coordinatorOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger shared by the coordinator, repository and scheduler.
func WithLogger(logger Logger) Option {
	return func(o *coordinatorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *coordinatorOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer that receives one span per operation.
func WithTracer(tracer Tracer) Option {
	return func(o *coordinatorOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithSaveTimeout bounds each gateway save. Non-positive values keep the default.
func WithSaveTimeout(d time.Duration) Option {
	return func(o *coordinatorOptions) {
		if d > 0 {
			o.saveTimeout = d
		}
	}
}

// WithLocation sets the zone used for dose timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(o *coordinatorOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithSeed populates an empty dataset during Setup.
func WithSeed(seed Seed) Option {
	return func(o *coordinatorOptions) {
		o.seed = &seed
	}
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetricsRecorder) RecordSnapshot(Snapshot)                              {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
