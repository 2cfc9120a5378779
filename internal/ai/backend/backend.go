// Package backend implements the analysis backend capability.
//
// This package contains:
//   - Backend interface: core abstraction for AI providers
//   - OpenAIBackend / GeminiBackend: HTTP implementations
//   - StatusError: provider failure carrying an HTTP status code
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// OperationKind identifies one of the typed operations a backend supports.
type OperationKind string

const (
	OpMatchCheck         OperationKind = "match_check"
	OpComplianceAnalysis OperationKind = "compliance_analysis"
	OpRegeneration       OperationKind = "regeneration"
)

// Token estimates per operation, used for quota admission before the call
// is made. Actual usage reported by the provider supersedes these when the
// call succeeds.
const (
	matchCheckTokens   = 2000
	complianceTokens   = 10000
	regenerationTokens = 12000
	defaultTokens      = 5000
)

// EstimatedTokens returns the admission-time token estimate for op.
func EstimatedTokens(op OperationKind) int {
	switch op {
	case OpMatchCheck:
		return matchCheckTokens
	case OpComplianceAnalysis:
		return complianceTokens
	case OpRegeneration:
		return regenerationTokens
	default:
		return defaultTokens
	}
}

// Response is one successful backend invocation. TokensUsed is zero when
// the provider did not report usage.
type Response struct {
	Data       json.RawMessage
	TokensUsed int
}

// Backend is the analysis backend capability. Invoke accepts a typed
// operation plus a JSON payload and returns the parsed JSON result or an
// error optionally carrying a status code (see StatusError).
type Backend interface {
	Name() string
	Invoke(ctx context.Context, op OperationKind, payload json.RawMessage) (*Response, error)
}

// StatusError is a provider failure with an HTTP status code attached so
// the classifier can decide by code before falling back to text matching.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// MatchCheckInput is the payload for OpMatchCheck.
type MatchCheckInput struct {
	PolicyType domain.PolicyType `json:"policy_type"`
	PolicyText string            `json:"policy_text"`
}

// ComplianceInput is the payload for OpComplianceAnalysis.
type ComplianceInput struct {
	ShopName           string            `json:"shop_name"`
	ShopSpecialization string            `json:"shop_specialization"`
	PolicyType         domain.PolicyType `json:"policy_type"`
	PolicyText         string            `json:"policy_text"`
}

// RegenerationInput is the payload for OpRegeneration.
type RegenerationInput struct {
	ShopName           string                   `json:"shop_name"`
	ShopSpecialization string                   `json:"shop_specialization"`
	PolicyType         domain.PolicyType        `json:"policy_type"`
	PolicyText         string                   `json:"policy_text"`
	Report             *domain.ComplianceReport `json:"compliance_report"`
}

// instruction returns the system instruction for an operation. The model is
// asked to answer with a single JSON object matching the domain schema.
func instruction(op OperationKind) (string, error) {
	switch op {
	case OpMatchCheck:
		return "You are a legal policy classifier. Given a policy type and policy text, " +
			"decide whether the text belongs to the declared type. Respond with one JSON object: " +
			`{"matched": bool, "confidence": number 0-100, "reason": string}.`, nil
	case OpComplianceAnalysis:
		return "You are a legal compliance analyst for e-commerce policies. Analyze the policy " +
			"against consumer-protection requirements for its type. Respond with one JSON object: " +
			`{"overall_compliance_ratio": number 0-100, "grade": string, "critical_issues": [], ` +
			`"strengths": [], "weaknesses": [], "summary": string, "recommendations": []}.`, nil
	case OpRegeneration:
		return "You are a legal policy writer. Rewrite the policy to fix the issues in the " +
			"attached compliance report while preserving the shop's intent. Respond with one JSON object: " +
			`{"improved_text": string, "improvements": [], "key_additions": [], ` +
			`"estimated_compliance": number 0-100, "notes": string}.`, nil
	default:
		return "", fmt.Errorf("unknown operation: %s", op)
	}
}
