package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/mhmod01110/priv-band-ai/internal/analysis/validator"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// Context carries one run's mutable state between stages. It is owned
// exclusively by the executor for the duration of the run and never
// shared across goroutines.
type Context struct {
	Request domain.AnalysisRequest
	Key     string
	RunID   string

	// Stage output slots.
	Validation *validator.Verdict
	Confidence float64 // rule-based score in [0,1]
	Match      *domain.PolicyMatch
	Report     *domain.ComplianceReport
	Improved   *domain.ImprovedPolicy

	// Early exit: a stage decided the run is finished; ExitResult is
	// returned immediately and all later stages are skipped.
	EarlyExit  bool
	ExitResult *domain.PipelineResult

	FailedStages []domain.FailedStage
	Warnings     []string
	ProviderUsed string
	StartedAt    time.Time
}

// NewContext creates the per-run context. The run ID ties progress
// updates, logs, and the history row together.
func NewContext(req domain.AnalysisRequest, key string) *Context {
	return &Context{
		Request:   req.Normalize(),
		Key:       key,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// Verdict returns the current match verdict, preferring the AI check over
// the rule-based one. ok is false before validation has run.
func (c *Context) Verdict() (matched bool, ok bool) {
	if c.Match != nil {
		return c.Match.Matched, true
	}
	if c.Validation != nil {
		return c.Validation.Matched, true
	}
	return false, false
}

// ruleMatch converts the rule verdict into the match representation used
// in results.
func (c *Context) ruleMatch() *domain.PolicyMatch {
	if c.Validation == nil {
		return nil
	}
	return &domain.PolicyMatch{
		Matched:    c.Validation.Matched,
		Confidence: c.Validation.Confidence * 100,
		Reason:     c.Validation.Reason,
		Method:     "rule_based",
	}
}

func (c *Context) exitWith(result *domain.PipelineResult) {
	c.EarlyExit = true
	c.ExitResult = result
}
