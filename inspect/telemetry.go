package inspect

import (
	"context"
	"log/slog"
	"time"
)

// AttemptRecord is the per-attempt telemetry record handed to the external
// logging collaborator.
type AttemptRecord struct {
	Target     TargetID
	Attempt    int
	Strategy   Strategy
	Success    bool
	Fields     int
	Samples    int
	Signals    int
	ErrorClass string
	Elapsed    time.Duration
}

// Telemetry receives one record per extraction attempt. Calls are
// fire-and-forget: implementations must not block, and any failure is
// swallowed by the engine.
type Telemetry interface {
	RecordAttempt(ctx context.Context, rec AttemptRecord)
}

// SlogTelemetry logs attempt records through slog.
type SlogTelemetry struct {
	Logger *slog.Logger
}

func (t SlogTelemetry) RecordAttempt(ctx context.Context, rec AttemptRecord) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "inspect: attempt",
		"target", rec.Target,
		"attempt", rec.Attempt,
		"strategy", rec.Strategy,
		"success", rec.Success,
		"fields", rec.Fields,
		"samples", rec.Samples,
		"signals", rec.Signals,
		"error_class", rec.ErrorClass,
		"elapsed", rec.Elapsed)
}
