package domain

import "time"

// AnalysisResult is the domain-level outcome of one run. Success here means
// the analysis itself passed; a rule-based rejection is carried as a result
// with Success=false inside a transport-level successful PipelineResult.
type AnalysisResult struct {
	Success            bool              `json:"success"`
	Message            string            `json:"message"`
	PolicyMatch        *PolicyMatch      `json:"policy_match,omitempty"`
	ComplianceReport   *ComplianceReport `json:"compliance_report,omitempty"`
	ImprovedPolicy     *ImprovedPolicy   `json:"improved_policy,omitempty"`
	ShopName           string            `json:"shop_name"`
	ShopSpecialization string            `json:"shop_specialization"`
	PolicyType         PolicyType        `json:"policy_type"`
	SuggestedAction    string            `json:"suggested_action,omitempty"`
	RunID              string            `json:"run_id,omitempty"`
	AnalyzedAt         time.Time         `json:"analyzed_at"`
}

// ErrorInfo is the machine-readable failure attached to a failed run.
type ErrorInfo struct {
	Kind            ErrorKind `json:"kind"`
	Message         string    `json:"message"`
	Stage           string    `json:"stage,omitempty"`
	SuggestedAction string    `json:"suggested_action,omitempty"`
}

// PipelineResult is the invocation contract returned to callers.
// Success means the request was handled, not that the analysis passed.
type PipelineResult struct {
	Success      bool            `json:"success"`
	FromCache    bool            `json:"from_cache"`
	UsedFallback bool            `json:"used_fallback,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
	Error        *ErrorInfo      `json:"error,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
}

// FailedStage records one stage failure inside a run.
type FailedStage struct {
	Stage    string    `json:"stage"`
	Kind     ErrorKind `json:"kind"`
	Required bool      `json:"required"`
	Message  string    `json:"message"`
}

// Progress is emitted once per executed stage and once more on completion.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
	RunID   string `json:"run_id,omitempty"`
}

// AnalysisRecord is the durable history row written after a completed run.
type AnalysisRecord struct {
	ID              string     `db:"id"`
	IdempotencyKey  string     `db:"idempotency_key"`
	ShopName        string     `db:"shop_name"`
	PolicyType      PolicyType `db:"policy_type"`
	ComplianceRatio float64    `db:"compliance_ratio"`
	Provider        string     `db:"provider"`
	UsedFallback    bool       `db:"used_fallback"`
	DurationMs      int64      `db:"duration_ms"`
	CreatedAt       time.Time  `db:"created_at"`
}
