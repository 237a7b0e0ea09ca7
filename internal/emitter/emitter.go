// Package emitter fans run reports out to their sinks.
package emitter

import (
	"context"
	"errors"

	"github.com/yairfalse/lightsout/types"
)

// Report is one finished orchestration run plus the context it ran in
type Report struct {
	Environment string
	Group       string
	Strategy    string
	DryRun      bool
	Result      *types.OrchestrationResult
}

// Emitter sends run reports to a backend.
type Emitter interface {
	// Emit sends one report.
	Emit(ctx context.Context, report Report) error

	// Close flushes and releases the backend.
	Close() error
}

// MultiEmitter fans out to multiple emitters.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that sends to multiple backends.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Add appends a backend.
func (m *MultiEmitter) Add(e Emitter) {
	m.emitters = append(m.emitters, e)
}

// Len returns the number of backends.
func (m *MultiEmitter) Len() int {
	return len(m.emitters)
}

// Emit sends to every emitter. A failing backend does not stop the others;
// all errors are joined.
func (m *MultiEmitter) Emit(ctx context.Context, report Report) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all emitters.
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
