package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/ai/routing"
	"github.com/mhmod01110/priv-band-ai/internal/cache/fallback"
	"github.com/mhmod01110/priv-band-ai/internal/cache/idempotency"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
	"github.com/mhmod01110/priv-band-ai/internal/metrics"
)

// DefaultStages builds the fixed pipeline in execution order.
func DefaultStages(router BackendCaller, fb *fallback.Cache, logger *slog.Logger) []Stage {
	return []Stage{
		NewValidationStage(nil, fb, logger),
		NewBackendCheckStage(router, logger),
		NewCacheRetrievalStage(fb, logger),
		NewComplianceStage(router, logger),
		NewRegenerationStage(router, logger),
		NewFinalizationStage(),
	}
}

// Executor drives one context through the stage list, handling skips,
// early exits, per-stage failure policy, and result persistence.
type Executor struct {
	stages   []Stage
	idem     *idempotency.Cache
	fallback *fallback.Cache
	history  HistoryRecorder
	progress ProgressFunc
	logger   *slog.Logger
}

func NewExecutor(stages []Stage, idem *idempotency.Cache, fb *fallback.Cache, history HistoryRecorder, progress ProgressFunc, logger *slog.Logger) *Executor {
	return &Executor{
		stages:   stages,
		idem:     idem,
		fallback: fb,
		history:  history,
		progress: progress,
		logger:   logger.With("component", "executor"),
	}
}

func (e *Executor) emit(pctx *Context, current, total int, status string) {
	if e.progress == nil {
		return
	}
	e.progress(domain.Progress{Current: current, Total: total, Status: status, RunID: pctx.RunID})
}

// runnableFrom counts stages at index i and beyond whose predicate passes
// against the current context.
func (e *Executor) runnableFrom(pctx *Context, i int) int {
	n := 0
	for _, st := range e.stages[i:] {
		if st.ShouldRun(pctx) {
			n++
		}
	}
	return n
}

// Run executes the pipeline. The returned result's Success means the
// request was handled; a rule-based rejection is a handled request whose
// inner Result.Success is false.
func (e *Executor) Run(ctx context.Context, pctx *Context) domain.PipelineResult {
	// Provisional total from the empty context; replaced once the first
	// stage's outputs make the later predicates meaningful.
	total := e.runnableFrom(pctx, 0)
	recalculated := false
	current := 0

	for i, st := range e.stages {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, pctx, st.Name(), domain.ErrKindTimeout,
				fmt.Errorf("run deadline exceeded before %s: %w", st.Name(), err))
		}
		if !st.ShouldRun(pctx) {
			metrics.StagesSkippedTotal.WithLabelValues(st.Name()).Inc()
			e.logger.Debug("stage skipped", "run_id", pctx.RunID, "stage", st.Name())
			continue
		}

		// The first stage's own conditionality is determinable up front;
		// every later predicate depends on its outputs, so the true total
		// is only computable once execution moves past position one.
		if !recalculated && i > 0 {
			total = current + e.runnableFrom(pctx, i)
			recalculated = true
		}

		current++
		e.emit(pctx, current, total, st.Status())
		e.logger.Info("stage starting",
			"run_id", pctx.RunID, "stage", st.Name(), "step", current, "total", total)

		if err := st.Execute(ctx, pctx); err != nil {
			if res, done := e.handleStageError(ctx, pctx, st, err); done {
				return res
			}
			continue
		}
		if pctx.EarlyExit {
			return e.finishEarly(ctx, pctx, current)
		}
	}

	return e.finish(ctx, pctx, current, total)
}

// handleStageError applies the per-stage failure policy. done is false
// when the run should continue with the next stage.
func (e *Executor) handleStageError(ctx context.Context, pctx *Context, st Stage, err error) (domain.PipelineResult, bool) {
	kind := domain.KindOf(err)
	if kind == domain.ErrKindUnknown {
		kind = routing.Classify(err)
	}
	pctx.FailedStages = append(pctx.FailedStages, domain.FailedStage{
		Stage:    st.Name(),
		Kind:     kind,
		Required: st.Required(),
		Message:  err.Error(),
	})

	if !st.Required() {
		e.logger.Warn("optional stage failed, continuing",
			"run_id", pctx.RunID, "stage", st.Name(), "kind", kind, "error", err)
		pctx.Warnings = append(pctx.Warnings, fmt.Sprintf("%s failed: %v", st.Name(), err))
		return domain.PipelineResult{}, false
	}

	e.logger.Error("required stage failed",
		"run_id", pctx.RunID, "stage", st.Name(), "kind", kind, "error", err)

	// Quota and auth failures are deterministic until an operator acts;
	// serving stale content would only mask them.
	if kind != domain.ErrKindQuotaExceeded && kind != domain.ErrKindAuthentication && e.fallback != nil {
		hit, lookupErr := e.fallback.Lookup(ctx, pctx.Request.PolicyType, pctx.Request.PolicyText)
		if lookupErr != nil {
			e.logger.Warn("fallback lookup failed", "run_id", pctx.RunID, "error", lookupErr)
		}
		if hit != nil {
			e.logger.Info("serving fallback after required stage failure",
				"run_id", pctx.RunID, "stage", st.Name())
			metrics.AnalysesTotal.WithLabelValues("fallback").Inc()
			res := domain.PipelineResult{
				Success:      true,
				UsedFallback: true,
				Result:       hit,
				Warnings: append(pctx.Warnings,
					fmt.Sprintf("%s failed (%s); serving a prior result for identical content", st.Name(), kind)),
			}
			e.record(ctx, pctx, &res)
			return res, true
		}
	}

	return e.fail(ctx, pctx, st.Name(), kind, err), true
}

// finishEarly returns the exit payload a stage installed. Only a payload
// whose inner result is a primary success is persisted; rejections stay
// retryable and fallback serves are never promoted to canonical results.
func (e *Executor) finishEarly(ctx context.Context, pctx *Context, current int) domain.PipelineResult {
	res := *pctx.ExitResult
	res.Warnings = append(res.Warnings, pctx.Warnings...)
	e.emit(pctx, current, current, "Completed")

	if res.Result != nil && res.Result.Success && !res.UsedFallback {
		if err := e.idem.Put(ctx, pctx.Key, res.Result); err != nil {
			e.logger.Warn("result cache write failed", "run_id", pctx.RunID, "error", err)
		}
	}

	outcome := "early_exit"
	if res.UsedFallback {
		outcome = "fallback"
	}
	metrics.AnalysesTotal.WithLabelValues(outcome).Inc()
	e.record(ctx, pctx, &res)
	e.logger.Info("run exited early", "run_id", pctx.RunID, "used_fallback", res.UsedFallback)
	return res
}

// finish assembles the final result after a full pass over the stages.
func (e *Executor) finish(ctx context.Context, pctx *Context, current, total int) domain.PipelineResult {
	if pctx.Report == nil || pctx.Match == nil {
		names := make([]string, 0, len(pctx.FailedStages))
		for _, fs := range pctx.FailedStages {
			names = append(names, fs.Stage)
		}
		err := fmt.Errorf("pipeline finished without required outputs (failed stages: %s)",
			strings.Join(names, ", "))
		return e.fail(ctx, pctx, "finalization", domain.ErrKindUnknown, err)
	}

	result := &domain.AnalysisResult{
		Success:            true,
		Message:            "analysis completed",
		PolicyMatch:        pctx.Match,
		ComplianceReport:   pctx.Report,
		ImprovedPolicy:     pctx.Improved,
		ShopName:           pctx.Request.ShopName,
		ShopSpecialization: pctx.Request.ShopSpecialization,
		PolicyType:         pctx.Request.PolicyType,
		RunID:              pctx.RunID,
		AnalyzedAt:         time.Now().UTC(),
	}

	if err := e.idem.Put(ctx, pctx.Key, result); err != nil {
		e.logger.Warn("result cache write failed", "run_id", pctx.RunID, "error", err)
	}
	if e.fallback != nil {
		if err := e.fallback.Store(ctx, pctx.Request, result); err != nil {
			e.logger.Warn("fallback cache write failed", "run_id", pctx.RunID, "error", err)
		}
	}

	e.emit(pctx, total, total, "Completed")
	metrics.AnalysesTotal.WithLabelValues("success").Inc()

	res := domain.PipelineResult{Success: true, Result: result, Warnings: pctx.Warnings}
	e.record(ctx, pctx, &res)
	e.logger.Info("run complete",
		"run_id", pctx.RunID,
		"stages_run", current,
		"compliance", pctx.Report.OverallComplianceRatio,
		"regenerated", pctx.Improved != nil,
		"duration", time.Since(pctx.StartedAt))
	return res
}

func (e *Executor) fail(ctx context.Context, pctx *Context, stage string, kind domain.ErrorKind, err error) domain.PipelineResult {
	action := ""
	if stage == "validation" && pctx.Validation != nil {
		action = pctx.Validation.SuggestedAction
	}
	metrics.AnalysesTotal.WithLabelValues("failed").Inc()
	res := domain.PipelineResult{
		Success: false,
		Error: &domain.ErrorInfo{
			Kind:            kind,
			Message:         err.Error(),
			Stage:           stage,
			SuggestedAction: action,
		},
		Warnings: pctx.Warnings,
	}
	e.record(ctx, pctx, &res)
	return res
}

// record writes the best-effort history row.
func (e *Executor) record(ctx context.Context, pctx *Context, res *domain.PipelineResult) {
	if e.history == nil {
		return
	}
	rec := domain.AnalysisRecord{
		ID:             pctx.RunID,
		IdempotencyKey: pctx.Key,
		ShopName:       pctx.Request.ShopName,
		PolicyType:     pctx.Request.PolicyType,
		Provider:       pctx.ProviderUsed,
		UsedFallback:   res.UsedFallback,
		DurationMs:     time.Since(pctx.StartedAt).Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if res.Result != nil && res.Result.ComplianceReport != nil {
		rec.ComplianceRatio = res.Result.ComplianceReport.OverallComplianceRatio
	}
	if err := e.history.Record(ctx, rec); err != nil {
		e.logger.Warn("history write failed", "run_id", pctx.RunID, "error", err)
	}
}
