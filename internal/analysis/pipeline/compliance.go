package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// ComplianceStage is the principal AI call. It is the only stage whose
// failure can end the whole run; the executor handles fallback when it
// does.
type ComplianceStage struct {
	router BackendCaller
	logger *slog.Logger
}

func NewComplianceStage(router BackendCaller, logger *slog.Logger) *ComplianceStage {
	return &ComplianceStage{router: router, logger: logger}
}

func (s *ComplianceStage) Name() string   { return "compliance_analysis" }
func (s *ComplianceStage) Status() string { return "Analyzing compliance" }
func (s *ComplianceStage) Required() bool { return true }

func (s *ComplianceStage) ShouldRun(*Context) bool { return true }

func (s *ComplianceStage) Execute(ctx context.Context, pctx *Context) error {
	// Runs only on matched verdicts, but the match slot may still be empty
	// when the backend check was skipped as unambiguous.
	if pctx.Match == nil {
		pctx.Match = pctx.ruleMatch()
	}

	payload, err := json.Marshal(backend.ComplianceInput{
		ShopName:           pctx.Request.ShopName,
		ShopSpecialization: pctx.Request.ShopSpecialization,
		PolicyType:         pctx.Request.PolicyType,
		PolicyText:         pctx.Request.PolicyText,
	})
	if err != nil {
		return fmt.Errorf("marshal compliance input: %w", err)
	}

	res, err := s.router.Call(ctx, backend.OpComplianceAnalysis, payload)
	if err != nil {
		return fmt.Errorf("compliance analysis: %w", err)
	}

	var report domain.ComplianceReport
	if err := json.Unmarshal(res.Response.Data, &report); err != nil {
		return fmt.Errorf("compliance analysis returned malformed report: %w", err)
	}

	pctx.ProviderUsed = res.Provider
	pctx.Report = &report
	s.logger.Info("compliance analysis complete",
		"run_id", pctx.RunID,
		"provider", res.Provider,
		"ratio", report.OverallComplianceRatio,
		"grade", report.Grade)
	return nil
}
