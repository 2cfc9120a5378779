package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// RegenerationStage rewrites a low-scoring policy. Best effort: the
// executor records its failure as a warning and keeps the run alive.
type RegenerationStage struct {
	router BackendCaller
	logger *slog.Logger
}

func NewRegenerationStage(router BackendCaller, logger *slog.Logger) *RegenerationStage {
	return &RegenerationStage{router: router, logger: logger}
}

func (s *RegenerationStage) Name() string   { return "regeneration" }
func (s *RegenerationStage) Status() string { return "Improving policy text" }
func (s *RegenerationStage) Required() bool { return false }

func (s *RegenerationStage) ShouldRun(pctx *Context) bool {
	return pctx.Report != nil && pctx.Report.OverallComplianceRatio < regenerationThreshold
}

func (s *RegenerationStage) Execute(ctx context.Context, pctx *Context) error {
	payload, err := json.Marshal(backend.RegenerationInput{
		ShopName:           pctx.Request.ShopName,
		ShopSpecialization: pctx.Request.ShopSpecialization,
		PolicyType:         pctx.Request.PolicyType,
		PolicyText:         pctx.Request.PolicyText,
		Report:             pctx.Report,
	})
	if err != nil {
		return fmt.Errorf("marshal regeneration input: %w", err)
	}

	res, err := s.router.Call(ctx, backend.OpRegeneration, payload)
	if err != nil {
		return fmt.Errorf("regeneration: %w", err)
	}

	var improved domain.ImprovedPolicy
	if err := json.Unmarshal(res.Response.Data, &improved); err != nil {
		return fmt.Errorf("regeneration returned malformed policy: %w", err)
	}
	if improved.ImprovedText == "" {
		return fmt.Errorf("regeneration returned an empty policy")
	}

	pctx.ProviderUsed = res.Provider
	pctx.Improved = &improved
	s.logger.Info("regeneration complete",
		"run_id", pctx.RunID,
		"provider", res.Provider,
		"estimated_compliance", improved.EstimatedCompliance)
	return nil
}
