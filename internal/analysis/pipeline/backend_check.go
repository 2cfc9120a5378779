package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// BackendCheckStage asks the AI to confirm the policy type, but only in
// the ambiguous confidence band where the rules alone cannot decide. Any
// backend failure falls back to the rule verdict; this stage never fails
// the run.
type BackendCheckStage struct {
	router BackendCaller
	logger *slog.Logger
}

func NewBackendCheckStage(router BackendCaller, logger *slog.Logger) *BackendCheckStage {
	return &BackendCheckStage{router: router, logger: logger}
}

func (s *BackendCheckStage) Name() string   { return "backend_check" }
func (s *BackendCheckStage) Status() string { return "Confirming policy type" }
func (s *BackendCheckStage) Required() bool { return false }

func (s *BackendCheckStage) ShouldRun(pctx *Context) bool {
	return pctx.Confidence >= ambiguousLow && pctx.Confidence <= ambiguousHigh
}

func (s *BackendCheckStage) Execute(ctx context.Context, pctx *Context) error {
	payload, err := json.Marshal(backend.MatchCheckInput{
		PolicyType: pctx.Request.PolicyType,
		PolicyText: pctx.Request.PolicyText,
	})
	if err != nil {
		return fmt.Errorf("marshal match check input: %w", err)
	}

	res, err := s.router.Call(ctx, backend.OpMatchCheck, payload)
	if err != nil {
		s.logger.Warn("match check failed, keeping rule verdict",
			"run_id", pctx.RunID, "error", err)
		pctx.Match = pctx.ruleMatch()
		return nil
	}

	var out struct {
		Matched    bool    `json:"matched"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal(res.Response.Data, &out); err != nil {
		s.logger.Warn("match check returned malformed JSON, keeping rule verdict",
			"run_id", pctx.RunID, "error", err)
		pctx.Match = pctx.ruleMatch()
		return nil
	}

	pctx.ProviderUsed = res.Provider
	pctx.Match = &domain.PolicyMatch{
		Matched:    out.Matched,
		Confidence: out.Confidence,
		Reason:     out.Reason,
		Method:     "backend",
	}
	s.logger.Info("match check complete",
		"run_id", pctx.RunID,
		"provider", res.Provider,
		"matched", out.Matched,
		"confidence", out.Confidence)
	return nil
}
