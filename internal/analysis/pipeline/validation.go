package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/analysis/validator"
	"github.com/mhmod01110/priv-band-ai/internal/cache/fallback"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// ScoreFunc is the rule-based scoring hook. Tests inject fixed scores to
// steer the pipeline shape.
type ScoreFunc func(domain.PolicyType, string) validator.Verdict

// ValidationStage scores the policy text without any AI call. An
// unambiguous rejection ends the run early; everything else records the
// confidence for the later stages' skip decisions.
type ValidationStage struct {
	score    ScoreFunc
	fallback *fallback.Cache
	logger   *slog.Logger
}

func NewValidationStage(score ScoreFunc, fb *fallback.Cache, logger *slog.Logger) *ValidationStage {
	if score == nil {
		score = validator.Evaluate
	}
	return &ValidationStage{score: score, fallback: fb, logger: logger}
}

func (s *ValidationStage) Name() string   { return "validation" }
func (s *ValidationStage) Status() string { return "Validating policy text" }
func (s *ValidationStage) Required() bool { return true }

func (s *ValidationStage) ShouldRun(*Context) bool { return true }

func (s *ValidationStage) Execute(ctx context.Context, pctx *Context) error {
	verdict := s.score(pctx.Request.PolicyType, pctx.Request.PolicyText)
	pctx.Validation = &verdict
	pctx.Confidence = verdict.Confidence

	s.logger.Debug("validation scored",
		"run_id", pctx.RunID,
		"confidence", verdict.Confidence,
		"matched", verdict.Matched)

	if verdict.Matched || verdict.Confidence > earlyExitMax {
		return nil
	}

	// Unambiguous rejection. A prior good result for the same text still
	// beats a rejection, so the fallback cache is consulted first.
	if s.fallback != nil {
		if hit, err := s.fallback.Lookup(ctx, pctx.Request.PolicyType, pctx.Request.PolicyText); err == nil && hit != nil {
			s.logger.Info("rejected text served from fallback cache", "run_id", pctx.RunID)
			pctx.exitWith(&domain.PipelineResult{
				Success:      true,
				UsedFallback: true,
				Result:       hit,
				Warnings:     []string{"validation rejected the text; serving a prior result for identical content"},
			})
			return nil
		}
	}

	pctx.exitWith(&domain.PipelineResult{
		Success: true,
		Result: &domain.AnalysisResult{
			Success:            false,
			Message:            verdict.Reason,
			PolicyMatch:        pctx.ruleMatch(),
			ShopName:           pctx.Request.ShopName,
			ShopSpecialization: pctx.Request.ShopSpecialization,
			PolicyType:         pctx.Request.PolicyType,
			SuggestedAction:    verdict.SuggestedAction,
			RunID:              pctx.RunID,
			AnalyzedAt:         time.Now().UTC(),
		},
	})
	return nil
}
