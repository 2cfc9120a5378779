package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/cache/fallback"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// CacheRetrievalStage runs only when the current verdict says the text
// does not match its declared type. It tries the fallback cache before
// surfacing the mismatch as the run's final outcome; either way the run
// ends here.
type CacheRetrievalStage struct {
	fallback *fallback.Cache
	logger   *slog.Logger
}

func NewCacheRetrievalStage(fb *fallback.Cache, logger *slog.Logger) *CacheRetrievalStage {
	return &CacheRetrievalStage{fallback: fb, logger: logger}
}

func (s *CacheRetrievalStage) Name() string   { return "cache_retrieval" }
func (s *CacheRetrievalStage) Status() string { return "Checking prior results" }
func (s *CacheRetrievalStage) Required() bool { return false }

func (s *CacheRetrievalStage) ShouldRun(pctx *Context) bool {
	matched, ok := pctx.Verdict()
	return ok && !matched
}

func (s *CacheRetrievalStage) Execute(ctx context.Context, pctx *Context) error {
	if s.fallback != nil {
		hit, err := s.fallback.Lookup(ctx, pctx.Request.PolicyType, pctx.Request.PolicyText)
		if err != nil {
			s.logger.Warn("fallback lookup failed", "run_id", pctx.RunID, "error", err)
		}
		if hit != nil {
			s.logger.Info("mismatch served from fallback cache", "run_id", pctx.RunID)
			pctx.exitWith(&domain.PipelineResult{
				Success:      true,
				UsedFallback: true,
				Result:       hit,
				Warnings:     []string{"type check rejected the text; serving a prior result for identical content"},
			})
			return nil
		}
	}

	match := pctx.Match
	if match == nil {
		match = pctx.ruleMatch()
	}
	reason := "policy text does not match the declared policy type"
	action := "correct the declared policy type or submit matching text"
	if match != nil {
		reason = match.Reason
	}
	if pctx.Validation != nil && pctx.Validation.SuggestedAction != "" {
		action = pctx.Validation.SuggestedAction
	}
	pctx.exitWith(&domain.PipelineResult{
		Success: true,
		Result: &domain.AnalysisResult{
			Success:            false,
			Message:            fmt.Sprintf("policy type mismatch: %s", reason),
			PolicyMatch:        match,
			ShopName:           pctx.Request.ShopName,
			ShopSpecialization: pctx.Request.ShopSpecialization,
			PolicyType:         pctx.Request.PolicyType,
			SuggestedAction:    action,
			RunID:              pctx.RunID,
			AnalyzedAt:         time.Now().UTC(),
		},
		Warnings: pctx.Warnings,
	})
	return nil
}
