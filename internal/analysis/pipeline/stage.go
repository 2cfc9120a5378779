// Package pipeline runs an analysis request through a fixed, ordered set
// of stages. Stages are skipped, short-circuited, or failed over based on
// the context state earlier stages produced.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/ai/routing"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// Confidence bands driving stage-skip decisions. The rule validator's
// score is unambiguous at or below earlyExitMax; only [ambiguousLow,
// ambiguousHigh] warrants an AI match check.
const (
	earlyExitMax  = 0.20
	ambiguousLow  = 0.30
	ambiguousHigh = 0.70
)

// regenerationThreshold is the compliance ratio below which the
// regeneration stage runs.
const regenerationThreshold = 95

// Stage is one unit of the pipeline. The stage set is closed: the
// executor's skip and failure handling is coupled to the Required
// semantics of these concrete types.
type Stage interface {
	// Name identifies the stage in logs and failure records.
	Name() string
	// Status is the human progress message emitted before execution.
	Status() string
	// Required marks stages whose failure can end the whole run.
	Required() bool
	// ShouldRun decides, from the current context, whether the stage
	// executes at all. Skipped stages emit no progress tick.
	ShouldRun(pctx *Context) bool
	Execute(ctx context.Context, pctx *Context) error
}

// BackendCaller dispatches one AI operation. Satisfied by the routing
// router; tests substitute canned responses.
type BackendCaller interface {
	Call(ctx context.Context, op backend.OperationKind, payload json.RawMessage) (*routing.Result, error)
}

// ProgressFunc receives one update per executed stage and a final one at
// completion. May be nil.
type ProgressFunc func(domain.Progress)

// HistoryRecorder persists a summary row per completed run. Failures are
// logged, never propagated; history is best-effort.
type HistoryRecorder interface {
	Record(ctx context.Context, rec domain.AnalysisRecord) error
}
