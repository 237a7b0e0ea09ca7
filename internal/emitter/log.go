package emitter

import (
	"context"

	"github.com/yairfalse/lightsout/telemetry"
)

// LogEmitter writes a run summary and one line per failed resource.
type LogEmitter struct {
	logger *telemetry.Logger
}

// NewLogEmitter creates a log emitter.
func NewLogEmitter() *LogEmitter {
	return &LogEmitter{logger: telemetry.NewLogger("emitter.log")}
}

// Emit logs the report.
func (e *LogEmitter) Emit(ctx context.Context, report Report) error {
	result := report.Result
	logger := e.logger.WithContext(ctx)

	for _, r := range result.Results {
		if r.Success {
			continue
		}
		logger.Warn().
			Str("run_id", result.RunID).
			Str("resource_type", r.ResourceType).
			Str("resource_id", r.ResourceID).
			Str("action", string(r.Action)).
			Str("error", r.Error).
			Msg(r.Message)
	}

	event := logger.Info()
	if result.Failed > 0 {
		event = logger.Warn()
	}
	event.
		Str("run_id", result.RunID).
		Str("action", string(result.Action)).
		Str("group", report.Group).
		Str("strategy", report.Strategy).
		Bool("dry_run", report.DryRun).
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("run complete")

	return nil
}

// Close is a no-op for the log emitter.
func (e *LogEmitter) Close() error {
	return nil
}
