package domain

// PolicyMatch is the verdict on whether the submitted text actually belongs
// to the declared policy type.
type PolicyMatch struct {
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"` // percentage, 0-100
	Reason     string  `json:"reason"`
	Method     string  `json:"method"` // "rule_based" or "backend"
}

// ComplianceIssue is one finding inside a compliance report.
type ComplianceIssue struct {
	Phrase          string  `json:"phrase"`
	Severity        string  `json:"severity"`
	ComplianceRatio float64 `json:"compliance_ratio"`
	Suggestion      string  `json:"suggestion"`
	LegalReference  string  `json:"legal_reference,omitempty"`
}

// CompliancePoint records a requirement the policy satisfies or misses.
type CompliancePoint struct {
	Requirement     string  `json:"requirement"`
	Status          string  `json:"status"`
	FoundText       string  `json:"found_text,omitempty"`
	ComplianceRatio float64 `json:"compliance_ratio"`
}

// ComplianceReport is the principal analysis output.
type ComplianceReport struct {
	OverallComplianceRatio float64           `json:"overall_compliance_ratio"` // 0-100
	Grade                  string            `json:"grade"`
	CriticalIssues         []ComplianceIssue `json:"critical_issues,omitempty"`
	Strengths              []CompliancePoint `json:"strengths,omitempty"`
	Weaknesses             []ComplianceIssue `json:"weaknesses,omitempty"`
	Summary                string            `json:"summary"`
	Recommendations        []string          `json:"recommendations,omitempty"`
}

// ImprovedPolicy is the optional regeneration output produced when
// compliance falls below the regeneration threshold.
type ImprovedPolicy struct {
	ImprovedText        string   `json:"improved_text"`
	Improvements        []string `json:"improvements,omitempty"`
	KeyAdditions        []string `json:"key_additions,omitempty"`
	EstimatedCompliance float64  `json:"estimated_compliance"` // 0-100
	Notes               string   `json:"notes,omitempty"`
}
