package core

import (
	"context"
	"time"
)

// MetricsRecorder receives operation outcomes and published snapshots.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	RecordSnapshot(snapshot Snapshot)
}

// Tracer starts spans around coordinator operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}
