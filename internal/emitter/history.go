package emitter

import (
	"context"
	"fmt"

	"github.com/yairfalse/lightsout/storage"
	"github.com/yairfalse/lightsout/telemetry"
)

// RunRecorder is the storage the history emitter writes to
type RunRecorder interface {
	RecordRun(rec storage.RunRecord) (int64, error)
	Compact(keep int) (int, error)
	Close() error
}

// HistoryEmitter stores every report in the local run history.
type HistoryEmitter struct {
	store     RunRecorder
	retention int
	logger    *telemetry.Logger
}

// NewHistoryEmitter wraps a store. retention > 0 keeps only the newest runs.
func NewHistoryEmitter(store RunRecorder, retention int) *HistoryEmitter {
	return &HistoryEmitter{
		store:     store,
		retention: retention,
		logger:    telemetry.NewLogger("emitter.history"),
	}
}

// Emit records the report.
func (e *HistoryEmitter) Emit(ctx context.Context, report Report) error {
	rev, err := e.store.RecordRun(storage.RunRecord{
		Environment: report.Environment,
		Group:       report.Group,
		Strategy:    report.Strategy,
		DryRun:      report.DryRun,
		Result:      *report.Result,
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", report.Result.RunID, err)
	}

	logger := e.logger.WithContext(ctx)
	logger.Debug().
		Str("run_id", report.Result.RunID).
		Int64("revision", rev).
		Msg("run recorded")

	if e.retention > 0 {
		removed, err := e.store.Compact(e.retention)
		if err != nil {
			return fmt.Errorf("compact history: %w", err)
		}
		if removed > 0 {
			logger.Debug().Int("removed", removed).Msg("history compacted")
		}
	}
	return nil
}

// Close closes the underlying store.
func (e *HistoryEmitter) Close() error {
	return e.store.Close()
}
